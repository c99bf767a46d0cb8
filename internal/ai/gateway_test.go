package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadpilot_backend/platform/logger"
)

type fakeProvider struct {
	name    string
	replies []string
	errs    []error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(_ context.Context, _ Request) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

func newTestGateway(fast ...Provider) *Gateway {
	g := NewWithProviders(map[Tier][]Provider{TierFast: fast}, time.Second, logger.New("test"))
	g.SetSleep(func(time.Duration) {})
	return g
}

func TestCompleteFirstProviderWins(t *testing.T) {
	primary := &fakeProvider{name: "groq", replies: []string{"hello"}}
	backup := &fakeProvider{name: "gemini", replies: []string{"unused"}}
	g := newTestGateway(primary, backup)

	out, err := g.Complete(context.Background(), TierFast, Request{})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if out != "hello" {
		t.Fatalf("expected hello, got %q", out)
	}
	if backup.calls != 0 {
		t.Fatalf("backup provider should not be called, got %d calls", backup.calls)
	}
}

func TestCompleteRetriesBeforeFallingBack(t *testing.T) {
	boom := errors.New("boom")
	primary := &fakeProvider{name: "groq", errs: []error{boom, boom}}
	backup := &fakeProvider{name: "gemini", replies: []string{"rescued"}}
	g := newTestGateway(primary, backup)

	out, err := g.Complete(context.Background(), TierFast, Request{})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if out != "rescued" {
		t.Fatalf("expected rescued, got %q", out)
	}
	if primary.calls != 2 {
		t.Fatalf("expected 2 attempts on primary, got %d", primary.calls)
	}
}

func TestCompleteExhaustedReturnsModelUnavailable(t *testing.T) {
	boom := errors.New("boom")
	p := &fakeProvider{name: "groq", errs: []error{boom, boom}}
	g := newTestGateway(p)

	_, err := g.Complete(context.Background(), TierFast, Request{})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestCompleteNoProvidersConfigured(t *testing.T) {
	g := newTestGateway()

	_, err := g.Complete(context.Background(), TierFast, Request{})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestCompleteStripsCodeFence(t *testing.T) {
	p := &fakeProvider{name: "groq", replies: []string{"```json\n{\"ok\":true}\n```"}}
	g := newTestGateway(p)

	out, err := g.Complete(context.Background(), TierFast, Request{})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("fence not stripped: %q", out)
	}
}

func TestCompleteJSON(t *testing.T) {
	p := &fakeProvider{name: "groq", replies: []string{"```json\n{\"service_type\":\"roofing\"}\n```"}}
	g := newTestGateway(p)

	var got struct {
		ServiceType string `json:"service_type"`
	}
	if err := g.CompleteJSON(context.Background(), TierFast, Request{}, &got); err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if got.ServiceType != "roofing" {
		t.Fatalf("expected roofing, got %q", got.ServiceType)
	}
}

func TestCompleteJSONMalformed(t *testing.T) {
	p := &fakeProvider{name: "groq", replies: []string{"not json"}}
	g := newTestGateway(p)

	var got map[string]any
	err := g.CompleteJSON(context.Background(), TierFast, Request{}, &got)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestCompleteHonorsCanceledContext(t *testing.T) {
	boom := errors.New("boom")
	p := &fakeProvider{name: "groq", errs: []error{boom, boom}}
	g := newTestGateway(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Complete(ctx, TierFast, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.calls > 1 {
		t.Fatalf("expected at most one call after cancel, got %d", p.calls)
	}
}
