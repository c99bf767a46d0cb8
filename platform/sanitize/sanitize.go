// Package sanitize provides text sanitization utilities for untrusted
// visitor input before it is stored or forwarded to a model.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxTextLength caps sanitized visitor text.
const MaxTextLength = 2000

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	// controlRegex matches null bytes and other non-printable control characters
	controlRegex = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
// This is a defense-in-depth measure; frontend should also escape output.
func StripHTML(s string) string {
	// Remove HTML tags
	result := htmlTagRegex.ReplaceAllString(s, "")
	// Decode common HTML entities
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes a string for safe storage: strips HTML tags and control
// characters, trims whitespace, and truncates to MaxTextLength runes.
func Text(s string) string {
	result := StripHTML(s)
	result = controlRegex.ReplaceAllString(result, "")
	result = strings.TrimSpace(result)
	if runes := []rune(result); len(runes) > MaxTextLength {
		result = string(runes[:MaxTextLength])
	}
	return result
}

// TextPtr is a helper for optional string pointers
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}
