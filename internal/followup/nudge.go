// Package followup implements the abandoned-conversation sweeper: it
// finds leads that went quiet mid-qualification, checks the opt-out and
// office-hours rules, and sends exactly one short re-engagement nudge.
package followup

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"leadpilot_backend/internal/ai"
	"leadpilot_backend/platform/logger"
)

const (
	StrategyPhoneNudge       = "phone_nudge"
	StrategyAddressNudge     = "address_nudge"
	StrategyDimensionRequest = "dimension_request"
)

const (
	MissingPhone      = "phone"
	MissingAddress    = "address"
	MissingDimensions = "dimensions"
)

// maxNudgeWords is the hard cap on nudge length. The model is told the
// limit in the prompt, but the count is re-checked after the response.
const maxNudgeWords = 15

// Nudge is one generated re-engagement message.
type Nudge struct {
	Message      string `json:"follow_up_message"`
	Strategy     string `json:"strategy"`
	DelayMinutes int    `json:"scheduled_delay_minutes"`
}

// FallbackNudge is substituted whenever generation fails or the model
// overshoots the word limit.
func FallbackNudge() Nudge {
	return Nudge{
		Message:      "Still interested? Let me know!",
		Strategy:     StrategyPhoneNudge,
		DelayMinutes: 15,
	}
}

// NudgeRequest carries the lead context serialized into the user prompt.
type NudgeRequest struct {
	LeadDetails  LeadDetails  `json:"lead_details"`
	BusinessInfo BusinessInfo `json:"business_info"`
}

// LeadDetails identifies the stalled conversation and the one field the
// nudge should ask for.
type LeadDetails struct {
	Name             *string `json:"name"`
	ServiceRequested string  `json:"service_requested"`
	MissingField     string  `json:"missing_field"`
	LastMessageAt    string  `json:"last_message_timestamp"`
}

// BusinessInfo names the tenant on whose behalf the nudge is sent.
type BusinessInfo struct {
	Name string `json:"name"`
}

const nudgeSystemPrompt = `You are a proactive, helpful assistant for a local home service business.

CONTEXT:
The user was in the middle of a chat but stopped responding. You have their name (if provided) and the service they were interested in.

GOAL:
Send a one-sentence "nudge" to get the missing information needed to provide a quote.

STRICT RULES:
1. MAX 15 WORDS.
2. No "salesy" language (e.g., avoid "Limited time offer" or "Act now").
3. Reference the specific service they mentioned (e.g., "deck repair").
4. If you have their name, use it.
5. Focus on the ONE missing field (Phone or Address or Dimensions).

TONE:
Helpful, local, and low-pressure.

EXAMPLES:

Missing Phone:
- "Hi John! Still interested in that deck repair? What's your phone number?"
- "Quick question about your fence project, what's the best number to reach you?"

Missing Address:
- "Hey Sarah! Need your address to estimate that roofing job."
- "Where's the deck located? I can get you a quick estimate."

Missing Dimensions:
- "How big is the deck you need repaired?"
- "What's the size of the fence you're looking to install?"

Remember: MAXIMUM 15 WORDS. Be friendly and helpful, not pushy.`

// Gateway is the model-call surface the generator needs.
type Gateway interface {
	CompleteJSON(ctx context.Context, tier ai.Tier, req ai.Request, v any) error
}

// Generator produces nudge copy through the fast model tier. It never
// returns an error: failures degrade to the fixed fallback nudge.
type Generator struct {
	gateway Gateway
	log     *logger.Logger
}

func NewGenerator(gateway Gateway, log *logger.Logger) *Generator {
	return &Generator{gateway: gateway, log: log}
}

// Generate builds one nudge for the given stalled lead.
func (g *Generator) Generate(ctx context.Context, req NudgeRequest) Nudge {
	payload, err := json.Marshal(req)
	if err != nil {
		return FallbackNudge()
	}

	var nudge Nudge
	err = g.gateway.CompleteJSON(ctx, ai.TierFast, ai.Request{
		System:    nudgeSystemPrompt,
		Messages:  []ai.Message{{Role: ai.RoleUser, Content: string(payload)}},
		MaxTokens: 256,
		ForceJSON: true,
	}, &nudge)
	if err != nil {
		g.log.Warn("nudge_generation_failed", "error", err.Error())
		return FallbackNudge()
	}

	if nudge.Message == "" || len(strings.Fields(nudge.Message)) > maxNudgeWords {
		g.log.Warn("nudge_over_word_limit", "message", nudge.Message)
		return FallbackNudge()
	}
	if nudge.DelayMinutes < 15 {
		nudge.DelayMinutes = 15
	}
	return nudge
}

// stopPhrases is the opt-out lexicon. Matching is lowercase substring.
var stopPhrases = []string{
	"nevermind",
	"never mind",
	"no thanks",
	"not interested",
	"stop",
	"cancel",
	"forget it",
	"don't call",
	"don't contact",
	"leave me alone",
	"unsubscribe",
}

// MatchStopPhrase reports whether the content contains an opt-out phrase
// and returns the phrase that matched.
func MatchStopPhrase(content string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, phrase := range stopPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// WithinOfficeHours reports whether the given instant falls inside
// [startHour, endHour) in the tenant's timezone. An unknown timezone
// fails open: a nudge during a wrongly-guessed hour beats never nudging.
func WithinOfficeHours(now time.Time, timezone string, startHour, endHour int) bool {
	if timezone == "" {
		timezone = "America/Chicago"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return true
	}
	hour := now.In(loc).Hour()
	return hour >= startHour && hour < endHour
}
