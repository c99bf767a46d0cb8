package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/logger"
)

const maxRetriesPerProvider = 1

// Gateway routes completion requests to a ranked provider list per tier.
// Each provider gets one retry with linear backoff before the gateway moves
// to the next provider in rank order.
type Gateway struct {
	providers map[Tier][]Provider
	timeout   time.Duration
	log       *logger.Logger
	sleep     func(time.Duration)
}

// New builds a Gateway from configuration. Providers named in the rank order
// but missing an API key are skipped.
func New(cfg config.AIConfig, log *logger.Logger) *Gateway {
	available := map[string]Provider{}
	if cfg.GetGroqAPIKey() != "" {
		available["groq"] = NewGroqProvider(GroqConfig{
			APIKey:  cfg.GetGroqAPIKey(),
			BaseURL: cfg.GetGroqBaseURL(),
			Model:   cfg.GetFastModel(),
		})
	}
	if cfg.GetGeminiAPIKey() != "" {
		available["gemini"] = NewGeminiProvider(cfg.GetGeminiAPIKey(), cfg.GetCapableModel())
	}

	rank := func(names []string) []Provider {
		var out []Provider
		for _, name := range names {
			if p, ok := available[name]; ok {
				out = append(out, p)
			}
		}
		return out
	}

	return &Gateway{
		providers: map[Tier][]Provider{
			TierFast:    rank(cfg.GetFastProviderOrder()),
			TierCapable: rank(cfg.GetCapableProviderOrder()),
		},
		timeout: cfg.GetModelTimeout(),
		log:     log,
		sleep:   time.Sleep,
	}
}

// NewWithProviders builds a Gateway with an explicit provider ranking.
// Used by tests and by callers composing custom stacks.
func NewWithProviders(providers map[Tier][]Provider, timeout time.Duration, log *logger.Logger) *Gateway {
	return &Gateway{
		providers: providers,
		timeout:   timeout,
		log:       log,
		sleep:     time.Sleep,
	}
}

// SetSleep overrides the retry backoff sleeper. Tests use this to avoid
// real delays.
func (g *Gateway) SetSleep(fn func(time.Duration)) {
	g.sleep = fn
}

// Complete runs the request against the tier's ranked providers.
// Returns the raw text with any surrounding code fence stripped, or
// ErrModelUnavailable once every provider and retry is exhausted.
func (g *Gateway) Complete(ctx context.Context, tier Tier, req Request) (string, error) {
	providers := g.providers[tier]
	if len(providers) == 0 {
		return "", fmt.Errorf("%w: no providers configured for tier %s", ErrModelUnavailable, tier)
	}

	var lastErr error
	for _, p := range providers {
		for attempt := 0; attempt <= maxRetriesPerProvider; attempt++ {
			out, err := g.callOnce(ctx, p, req)
			g.log.ModelCall(string(tier), p.Name(), attempt+1, err)
			if err == nil {
				return StripCodeFence(out), nil
			}
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if attempt < maxRetriesPerProvider {
				g.sleep(time.Duration(attempt+1) * time.Second)
			}
		}
	}

	return "", fmt.Errorf("%w: %v", ErrModelUnavailable, lastErr)
}

// CompleteJSON runs Complete and unmarshals the response into v.
// A malformed JSON body counts as a provider failure for the caller, so it
// is wrapped in ErrModelUnavailable as well.
func (g *Gateway) CompleteJSON(ctx context.Context, tier Tier, req Request, v any) error {
	req.ForceJSON = true
	out, err := g.Complete(ctx, tier, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		return fmt.Errorf("%w: malformed model response: %v", ErrModelUnavailable, err)
	}
	return nil
}

func (g *Gateway) callOnce(ctx context.Context, p Provider, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return p.Complete(ctx, req)
}
