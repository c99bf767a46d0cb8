// Package domain provides core business rules for the conversation bounded context.
package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxMessagesPerSession is the hard cap on stored turns for one session.
	// The HTTP layer rate-limits earlier; this is the in-core terminal guard.
	MaxMessagesPerSession = 50

	// ConfidenceThreshold is the minimum classifier confidence before a
	// quote attempt is allowed.
	ConfidenceThreshold = 0.6

	// HotLeadThreshold is the urgency score at which an alert is raised.
	HotLeadThreshold = 0.8
)

const (
	SeverityEmergency = "EMERGENCY"
	SeverityUrgent    = "URGENT"
	SeverityHot       = "HOT"
)

// SeverityFor maps an urgency score at or above HotLeadThreshold to an
// alert severity label.
func SeverityFor(urgencyScore float64) string {
	switch {
	case urgencyScore >= 0.95:
		return SeverityEmergency
	case urgencyScore >= 0.88:
		return SeverityUrgent
	default:
		return SeverityHot
	}
}

// Classification is the fast-tier verdict on a conversation turn.
type Classification struct {
	ServiceType  string   `json:"service_type"`
	Urgency      string   `json:"urgency"`
	UrgencyScore float64  `json:"urgency_score"`
	Confidence   float64  `json:"confidence"`
	Category     string   `json:"category"`
	Location     string   `json:"location,omitempty"`
	IsQualified  bool     `json:"is_qualified"`
	IsOutOfArea  bool     `json:"out_of_area"`
	MissingInfo  []string `json:"missing_info"`
}

// IsFallback reports whether this classification came from the gateway
// fallback object rather than a live model response.
func (c Classification) IsFallback() bool {
	return c.Confidence == 0
}

// ShouldQuote applies the quote decision rule for one turn.
func (c Classification) ShouldQuote() bool {
	return c.Confidence >= ConfidenceThreshold && c.IsQualified && !c.IsFallback()
}

// QuoteBreakdown itemizes the cost components behind an estimate range.
type QuoteBreakdown struct {
	Unit           string  `json:"unit"`
	UnitValue      float64 `json:"unit_value"`
	BaseFee        float64 `json:"base_fee"`
	ServiceCallFee float64 `json:"service_call_fee"`
	LaborLow       float64 `json:"labor_low"`
	LaborHigh      float64 `json:"labor_high"`
}

// Quote is the capable-tier estimate persisted on a qualified lead.
type Quote struct {
	EstimatedRange string          `json:"estimated_range"`
	Low            float64         `json:"low"`
	High           float64         `json:"high"`
	Breakdown      *QuoteBreakdown `json:"breakdown,omitempty"`
	Disclaimers    []string        `json:"disclaimers,omitempty"`
}

// VisitorInfo carries the incrementally-collected identity fields a turn
// may supply. Nil fields mean "not provided this turn".
type VisitorInfo struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// Empty reports whether the turn supplied no visitor fields at all.
func (v VisitorInfo) Empty() bool {
	return v.Name == nil && v.Email == nil && v.Phone == nil && v.Address == nil
}

// Lead is the central mutable entity: one visitor inquiry with a tenant.
type Lead struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	SessionID  string

	VisitorName    *string
	VisitorEmail   *string
	VisitorPhone   *string
	VisitorAddress *string

	Classification *Classification
	Quote          *Quote

	IsQualified  bool
	IsComplete   bool
	FollowUpSent bool
	Stopped      bool
	NeedsReview  bool
	ReferralSent bool
	IsOutOfArea  bool

	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasDimensions reports whether a dimensional quote breakdown was captured.
func (l *Lead) HasDimensions() bool {
	return l.Quote != nil && l.Quote.Breakdown != nil
}
