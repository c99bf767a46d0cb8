package followup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadpilot_backend/internal/conversation/domain"
)

// Candidate is one lead eligible for a sweep, joined with the tenant
// fields the nudge policy needs.
type Candidate struct {
	domain.Lead
	Timezone    string
	CompanyName *string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SweepCandidates returns leads stalled inside the (oldest, newest)
// staleness window, oldest first so leads about to age out go first.
func (r *Repository) SweepCandidates(ctx context.Context, oldest, newest time.Time, limit int) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.customer_id, l.session_id,
		       l.visitor_name, l.visitor_email, l.visitor_phone, l.visitor_address,
		       l.classification, l.quote,
		       l.is_qualified, l.is_complete, l.follow_up_sent, l.stopped, l.needs_review,
		       l.referral_sent, l.is_out_of_area, l.message_count, l.created_at, l.updated_at,
		       c.timezone, c.company_name
		FROM leads l
		JOIN customers c ON c.id = l.customer_id
		WHERE l.is_complete = false
		  AND l.follow_up_sent = false
		  AND l.stopped = false
		  AND l.deleted_at IS NULL
		  AND l.updated_at > $1
		  AND l.updated_at < $2
		ORDER BY l.updated_at ASC
		LIMIT $3
	`, oldest, newest, limit)
	if err != nil {
		return nil, fmt.Errorf("query sweep candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		var classificationJSON, quoteJSON []byte
		err := rows.Scan(
			&c.ID, &c.CustomerID, &c.SessionID,
			&c.VisitorName, &c.VisitorEmail, &c.VisitorPhone, &c.VisitorAddress,
			&classificationJSON, &quoteJSON,
			&c.IsQualified, &c.IsComplete, &c.FollowUpSent, &c.Stopped, &c.NeedsReview,
			&c.ReferralSent, &c.IsOutOfArea, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt,
			&c.Timezone, &c.CompanyName,
		)
		if err != nil {
			return nil, err
		}
		if len(classificationJSON) > 0 {
			c.Classification = &domain.Classification{}
			_ = json.Unmarshal(classificationJSON, c.Classification)
		}
		if len(quoteJSON) > 0 {
			c.Quote = &domain.Quote{}
			_ = json.Unmarshal(quoteJSON, c.Quote)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// LastMessage returns the newest stored turn for the lead, or ok=false
// when the conversation has no messages.
func (r *Repository) LastMessage(ctx context.Context, leadID uuid.UUID) (domain.Message, bool, error) {
	var msg domain.Message
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, sender, content, model_id, confidence, created_at
		FROM messages
		WHERE lead_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, leadID).Scan(&msg.ID, &msg.LeadID, &msg.Sender, &msg.Content, &msg.ModelID, &msg.Confidence, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, false, nil
	}
	if err != nil {
		return domain.Message{}, false, err
	}
	return msg, true, nil
}

// MarkStopped records a visitor opt-out.
func (r *Repository) MarkStopped(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET stopped = true, updated_at = now() WHERE id = $1
	`, leadID)
	return err
}

// MarkComplete closes a lead the sweep found to need nothing further.
func (r *Repository) MarkComplete(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET is_complete = true, updated_at = now() WHERE id = $1
	`, leadID)
	return err
}

// RecordNudge persists one nudge atomically: the conditional flag flip,
// the assistant message, and the audit row share a transaction. It
// returns false when another writer already flipped follow_up_sent,
// which keeps the one-nudge-per-lead rule safe under a racing sweep.
func (r *Repository) RecordNudge(ctx context.Context, leadID uuid.UUID, nudge Nudge) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE leads SET follow_up_sent = true, updated_at = now()
		WHERE id = $1 AND follow_up_sent = false
	`, leadID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	modelID := "fast"
	_, err = tx.Exec(ctx, `
		INSERT INTO messages (lead_id, sender, content, model_id)
		VALUES ($1, $2, $3, $4)
	`, leadID, domain.SenderAssistant, nudge.Message, modelID)
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO followups (lead_id, content, trigger_type, status, scheduled_at, sent_at)
		VALUES ($1, $2, 'inactivity', 'sent', now() + make_interval(mins => $3), now())
	`, leadID, nudge.Message, nudge.DelayMinutes)
	if err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}
