// Package transport defines the widget API request and response shapes.
package transport

import (
	"github.com/google/uuid"

	"leadpilot_backend/internal/conversation/domain"
)

// VisitorPayload carries identity fields the widget collected this turn.
type VisitorPayload struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=300"`
}

// WidgetMessageRequest is one inbound chat message from the embedded widget.
type WidgetMessageRequest struct {
	SessionID string          `json:"session_id" validate:"required,min=8,max=128"`
	Message   string          `json:"message" validate:"required,min=1,max=2000"`
	Visitor   *VisitorPayload `json:"visitor,omitempty"`
}

// VisitorInfo converts the payload to the domain representation.
func (r WidgetMessageRequest) VisitorInfo() domain.VisitorInfo {
	if r.Visitor == nil {
		return domain.VisitorInfo{}
	}
	return domain.VisitorInfo{
		Name:    r.Visitor.Name,
		Email:   r.Visitor.Email,
		Phone:   r.Visitor.Phone,
		Address: r.Visitor.Address,
	}
}

// WidgetMessageResponse is the widget contract for one processed turn.
type WidgetMessageResponse struct {
	LeadID            string                 `json:"lead_id"`
	Classification    *domain.Classification `json:"classification"`
	Quote             *domain.Quote          `json:"quote"`
	RequiresFollowup  bool                   `json:"requires_followup"`
	ReplyMessage      string                 `json:"reply_message"`
	ConversationEnded bool                   `json:"conversation_ended"`
}

// FromOutcome maps a turn outcome onto the wire shape.
func FromOutcome(out domain.TurnOutcome) WidgetMessageResponse {
	leadID := ""
	if out.LeadID != uuid.Nil {
		leadID = out.LeadID.String()
	}
	return WidgetMessageResponse{
		LeadID:            leadID,
		Classification:    out.Classification,
		Quote:             out.Quote,
		RequiresFollowup:  out.RequiresFollowUp,
		ReplyMessage:      out.Reply,
		ConversationEnded: out.ConversationEnded,
	}
}

// ReferralConfirmRequest accepts the visitor's partner hand-off consent.
type ReferralConfirmRequest struct {
	LeadID string `json:"lead_id" validate:"required,uuid"`
}

// ReferralConfirmResponse reports the hand-off result.
type ReferralConfirmResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
