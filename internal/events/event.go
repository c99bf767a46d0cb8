// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadpilot_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Conversation Domain Events
// =============================================================================

// LeadCaptured is published when a widget session produces a new lead row.
type LeadCaptured struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	CustomerID uuid.UUID `json:"customerId"`
	SessionID  string    `json:"sessionId"`
	Category   string    `json:"category"`
}

func (e LeadCaptured) EventName() string { return "conversation.lead.captured" }

// LeadQualified is published when a lead reaches qualified status
// (service identified plus at least one contact field).
type LeadQualified struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	CustomerID  uuid.UUID `json:"customerId"`
	ServiceType string    `json:"serviceType"`
	Urgency     float64   `json:"urgency"`
	QuoteLow    float64   `json:"quoteLow,omitempty"`
	QuoteHigh   float64   `json:"quoteHigh,omitempty"`
}

func (e LeadQualified) EventName() string { return "conversation.lead.qualified" }

// HotLeadDetected is published when urgency crosses the hot threshold.
// The notification module turns this into an immediate owner alert.
type HotLeadDetected struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	CustomerID     uuid.UUID `json:"customerId"`
	VisitorName    string    `json:"visitorName"`
	ServiceType    string    `json:"serviceType"`
	Severity       string    `json:"severity"`
	UrgencyScore   float64   `json:"urgencyScore"`
	EstimatedValue int       `json:"estimatedValue"`
}

func (e HotLeadDetected) EventName() string { return "conversation.lead.hot" }

// ConversationBlocked is published when the security filter rejects a message.
type ConversationBlocked struct {
	BaseEvent
	CustomerID uuid.UUID `json:"customerId"`
	SessionID  string    `json:"sessionId"`
	Reason     string    `json:"reason"`
}

func (e ConversationBlocked) EventName() string { return "conversation.blocked" }

// =============================================================================
// Follow-Up Domain Events
// =============================================================================

// FollowUpNudgeSent is published when the sweeper sends a re-engagement nudge.
type FollowUpNudgeSent struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	CustomerID uuid.UUID `json:"customerId"`
	Channel    string    `json:"channel"`
	Body       string    `json:"body"`
}

func (e FollowUpNudgeSent) EventName() string { return "followup.nudge.sent" }

// LeadStopped is published when a visitor opts out with a stop phrase.
type LeadStopped struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	CustomerID uuid.UUID `json:"customerId"`
	Phrase     string    `json:"phrase"`
}

func (e LeadStopped) EventName() string { return "followup.lead.stopped" }
