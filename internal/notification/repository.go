package notification

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

const (
	TypeHotLeadSMS      = "hot_lead_sms"
	TypeHotLeadEmail    = "hot_lead_email"
	TypeWeeklyDigest    = "weekly_digest"
	TypePartnerReferral = "partner_referral"
)

// Repository is the append-only notification log. Rows are never
// updated or deleted; the log is the dispatcher's audit trail.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) LogSent(ctx context.Context, customerID uuid.UUID, leadID *uuid.UUID, notificationType, channel, recipient, subject, content string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (customer_id, lead_id, notification_type, channel, recipient, subject, content, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'sent')
	`, customerID, leadID, notificationType, channel, recipient, subject, content)
	return err
}

func (r *Repository) LogFailed(ctx context.Context, customerID uuid.UUID, leadID *uuid.UUID, notificationType, channel, recipient, errorMessage string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (customer_id, lead_id, notification_type, channel, recipient, content, status, error_message)
		VALUES ($1, $2, $3, $4, $5, '', 'failed', $6)
	`, customerID, leadID, notificationType, channel, recipient, errorMessage)
	return err
}

// LogReferral records a partner hand-off. Satisfies the conversation
// service's referral audit dependency.
func (r *Repository) LogReferral(ctx context.Context, customerID, leadID uuid.UUID, recipient, content string) error {
	return r.LogSent(ctx, customerID, &leadID, TypePartnerReferral, ChannelEmail, recipient, "", content)
}
