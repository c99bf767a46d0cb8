package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	SenderVisitor   = "visitor"
	SenderAssistant = "assistant"
)

// Message is one stored conversation turn. Messages are append-only and
// replay in created_at order.
type Message struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	Sender     string
	Content    string
	ModelID    *string
	Confidence *float64
	CreatedAt  time.Time
}
