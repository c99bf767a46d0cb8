package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"leadpilot_backend/internal/events"
	"leadpilot_backend/platform/logger"
)

type fakeEnqueuer struct {
	payloads []HotLeadAlertPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueHotLeadAlert(_ context.Context, payload HotLeadAlertPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestHotLeadAlertBridgeForwardsEvent(t *testing.T) {
	enq := &fakeEnqueuer{}
	bridge := NewHotLeadAlertBridge(enq, logger.New("test"))

	event := events.HotLeadDetected{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         uuid.New(),
		CustomerID:     uuid.New(),
		VisitorName:    "Sam",
		ServiceType:    "roofing",
		Severity:       "EMERGENCY",
		UrgencyScore:   0.96,
		EstimatedValue: 1500,
	}
	if err := bridge.Handle(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	if len(enq.payloads) != 1 {
		t.Fatalf("payloads = %d", len(enq.payloads))
	}
	got := enq.payloads[0]
	if got.LeadID != event.LeadID.String() || got.UrgencyLevel != "EMERGENCY" {
		t.Errorf("payload = %+v", got)
	}
	if got.VisitorName == nil || *got.VisitorName != "Sam" {
		t.Error("visitor name not carried")
	}
}

func TestHotLeadAlertBridgeSwallowsEnqueueFailure(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	bridge := NewHotLeadAlertBridge(enq, logger.New("test"))

	event := events.HotLeadDetected{BaseEvent: events.NewBaseEvent(), LeadID: uuid.New(), CustomerID: uuid.New()}
	if err := bridge.Handle(context.Background(), event); err != nil {
		t.Fatalf("enqueue failure must not surface: %v", err)
	}
}

func TestHotLeadAlertBridgeIgnoresOtherEvents(t *testing.T) {
	enq := &fakeEnqueuer{}
	bridge := NewHotLeadAlertBridge(enq, logger.New("test"))

	other := events.LeadCaptured{BaseEvent: events.NewBaseEvent(), LeadID: uuid.New(), CustomerID: uuid.New()}
	if err := bridge.Handle(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	if len(enq.payloads) != 0 {
		t.Fatal("unrelated events must not enqueue alerts")
	}
}
