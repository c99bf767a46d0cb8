// Package ai provides the model gateway: a two-tier abstraction over LLM
// providers with ranked fallback, bounded retry, and code-fence stripping.
// Callers address a tier, never a concrete provider.
package ai

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Tier selects a capability class, not a vendor.
type Tier string

const (
	// TierFast serves per-turn classification and short copy generation.
	TierFast Tier = "fast"
	// TierCapable serves quote generation and other arithmetic-heavy prompts.
	TierCapable Tier = "capable"
)

// ErrModelUnavailable is returned when every ranked provider for a tier has
// been exhausted. Callers degrade to their documented fallback object.
var ErrModelUnavailable = errors.New("model unavailable")

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn passed to a provider.
type Message struct {
	Role    Role
	Content string
}

// Request is a single-shot completion request.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// ForceJSON asks the provider for a JSON-only response where supported.
	ForceJSON bool
}

// Provider is a concrete model backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

var (
	fenceOpenRegex  = regexp.MustCompile("^```(?:json)?\n?")
	fenceCloseRegex = regexp.MustCompile("\n?```$")
)

// StripCodeFence removes a surrounding markdown code fence from model output.
// Models asked for raw JSON still wrap it in ``` fences often enough that
// every JSON call site needs this.
func StripCodeFence(s string) string {
	out := strings.TrimSpace(s)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	out = fenceOpenRegex.ReplaceAllString(out, "")
	out = fenceCloseRegex.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
