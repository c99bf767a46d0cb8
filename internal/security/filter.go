// Package security screens untrusted widget input before it reaches any
// model or is persisted as a conversation turn.
package security

import (
	"regexp"
	"strings"
)

// Reason tags returned with a failed verdict.
const (
	ReasonPromptInjection = "prompt_injection"
	ReasonSpam            = "spam"
)

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ignore\s+(all\s+)?(previous\s+)?instructions?`),
	regexp.MustCompile(`system\s+prompt`),
	regexp.MustCompile(`you\s+are\s+(now\s+)?a\s+`),
	regexp.MustCompile(`new\s+(system\s+)?instructions?`),
	regexp.MustCompile(`disregard\s+(all\s+)?`),
	regexp.MustCompile(`forget\s+(everything|all|previous)`),
	regexp.MustCompile(`act\s+as\s+(if\s+)?`),
	regexp.MustCompile(`roleplay\s+as`),
	regexp.MustCompile(`pretend\s+(to\s+be|you\s+are)`),
	regexp.MustCompile(`simulate\s+`),
}

var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z\s!]{50,}$`),
	regexp.MustCompile(`(https?://\S+.*){5,}`),
}

// maxRepeatedRune is the longest allowed run of one character before the
// message counts as spam.
const maxRepeatedRune = 20

// hasExcessiveRepetition reports whether any rune repeats more than
// maxRepeatedRune times in a row.
func hasExcessiveRepetition(s string) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run > maxRepeatedRune {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}

// Verdict is the result of screening one message.
type Verdict struct {
	Passed bool
	Reason string
}

// Filter is a stateless message screen. The zero value is usable; New exists
// for symmetry with the other injected dependencies.
type Filter struct{}

func New() *Filter {
	return &Filter{}
}

// Screen checks a visitor message for injection phrasing and spam heuristics.
// Empty or whitespace-only input passes trivially. The first matching pattern
// decides the verdict.
func (f *Filter) Screen(message string) Verdict {
	if strings.TrimSpace(message) == "" {
		return Verdict{Passed: true}
	}

	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(normalized) {
			return Verdict{Passed: false, Reason: ReasonPromptInjection}
		}
	}

	if hasExcessiveRepetition(message) {
		return Verdict{Passed: false, Reason: ReasonSpam}
	}
	for _, pattern := range spamPatterns {
		if pattern.MatchString(message) {
			return Verdict{Passed: false, Reason: ReasonSpam}
		}
	}

	return Verdict{Passed: true}
}
