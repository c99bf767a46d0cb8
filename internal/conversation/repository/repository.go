// Package repository persists leads and messages for the conversation
// bounded context.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadpilot_backend/internal/conversation/domain"
)

var ErrNotFound = errors.New("lead not found")

const leadColumns = `id, customer_id, session_id, visitor_name, visitor_email, visitor_phone, visitor_address,
		classification, quote, is_qualified, is_complete, follow_up_sent, stopped, needs_review,
		referral_sent, is_out_of_area, message_count, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetOrCreate resolves the unresolved lead for a (tenant, session) pair,
// creating it on the first inbound message. The partial unique index on
// (customer_id, session_id) where deleted_at is null backs the invariant
// of at most one unresolved lead per pair.
func (r *Repository) GetOrCreate(ctx context.Context, customerID uuid.UUID, sessionID string) (domain.Lead, error) {
	lead, err := r.getBySession(ctx, customerID, sessionID)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Lead{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (customer_id, session_id)
		VALUES ($1, $2)
		ON CONFLICT (customer_id, session_id) WHERE deleted_at IS NULL DO NOTHING
		RETURNING `+leadColumns+`
	`, customerID, sessionID)

	lead, err = scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the insert race; the winner's row is there now.
		return r.getBySession(ctx, customerID, sessionID)
	}
	return lead, err
}

func (r *Repository) getBySession(ctx context.Context, customerID uuid.UUID, sessionID string) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE customer_id = $1 AND session_id = $2 AND deleted_at IS NULL
	`, customerID, sessionID)
	return scanLead(row)
}

// GetByID loads a lead regardless of tenant. Callers must verify ownership
// before acting on the result.
func (r *Repository) GetByID(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND deleted_at IS NULL
	`, leadID)
	return scanLead(row)
}

// AppendMessage stores one conversation turn and bumps the lead's message
// count in the same transaction.
func (r *Repository) AppendMessage(ctx context.Context, leadID uuid.UUID, sender, content string, modelID *string, confidence *float64) (domain.Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	defer tx.Rollback(ctx)

	var msg domain.Message
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (lead_id, sender, content, model_id, confidence)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, lead_id, sender, content, model_id, confidence, created_at
	`, leadID, sender, content, modelID, confidence).Scan(
		&msg.ID, &msg.LeadID, &msg.Sender, &msg.Content, &msg.ModelID, &msg.Confidence, &msg.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE leads SET message_count = message_count + 1, updated_at = now()
		WHERE id = $1
	`, leadID)
	if err != nil {
		return domain.Message{}, err
	}

	return msg, tx.Commit(ctx)
}

// History returns the lead's messages in replay order, oldest first.
func (r *Repository) History(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, sender, content, model_id, confidence, created_at
		FROM messages
		WHERE lead_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.LeadID, &msg.Sender, &msg.Content, &msg.ModelID, &msg.Confidence, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// LastMessage returns the most recent message, or ErrNotFound for an empty
// conversation.
func (r *Repository) LastMessage(ctx context.Context, leadID uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, sender, content, model_id, confidence, created_at
		FROM messages
		WHERE lead_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, leadID).Scan(&msg.ID, &msg.LeadID, &msg.Sender, &msg.Content, &msg.ModelID, &msg.Confidence, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrNotFound
	}
	return msg, err
}

// UpdateClassification stores the latest classifier verdict.
func (r *Repository) UpdateClassification(ctx context.Context, leadID uuid.UUID, c domain.Classification) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE leads SET classification = $2, is_out_of_area = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, leadID, payload, c.IsOutOfArea)
	return err
}

// SaveQuote persists a successful quote and closes out the lead as
// qualified and complete.
func (r *Repository) SaveQuote(ctx context.Context, leadID uuid.UUID, q domain.Quote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE leads SET quote = $2, is_qualified = true, is_complete = true, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, leadID, payload)
	return err
}

// SetNeedsReview flags a lead for human attention without ending the
// conversation.
func (r *Repository) SetNeedsReview(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET needs_review = true, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, leadID)
	return err
}

// UpdateVisitorInfo fills in visitor identity fields that were supplied
// this turn; nil fields keep the stored value.
func (r *Repository) UpdateVisitorInfo(ctx context.Context, leadID uuid.UUID, info domain.VisitorInfo) error {
	if info.Empty() {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			visitor_name = COALESCE($2, visitor_name),
			visitor_email = COALESCE($3, visitor_email),
			visitor_phone = COALESCE($4, visitor_phone),
			visitor_address = COALESCE($5, visitor_address),
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, leadID, info.Name, info.Email, info.Phone, info.Address)
	return err
}

// MarkOutOfArea flags the lead after an out-of-area classification with a
// referral offer extended.
func (r *Repository) MarkOutOfArea(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET is_out_of_area = true, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, leadID)
	return err
}

// MarkReferralSent records that the visitor accepted the partner referral.
// The guard keeps the confirmation idempotent.
func (r *Repository) MarkReferralSent(ctx context.Context, leadID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET referral_sent = true, is_complete = true, updated_at = now()
		WHERE id = $1 AND referral_sent = false AND deleted_at IS NULL
	`, leadID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// TombstoneOlderThan soft-deletes leads whose last activity predates the
// retention cutoff. Returns the number of leads tombstoned.
func (r *Repository) TombstoneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET deleted_at = now()
		WHERE updated_at < $1 AND deleted_at IS NULL
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var lead domain.Lead
	var classificationJSON, quoteJSON []byte

	err := row.Scan(
		&lead.ID, &lead.CustomerID, &lead.SessionID,
		&lead.VisitorName, &lead.VisitorEmail, &lead.VisitorPhone, &lead.VisitorAddress,
		&classificationJSON, &quoteJSON,
		&lead.IsQualified, &lead.IsComplete, &lead.FollowUpSent, &lead.Stopped, &lead.NeedsReview,
		&lead.ReferralSent, &lead.IsOutOfArea, &lead.MessageCount, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}

	if len(classificationJSON) > 0 {
		lead.Classification = &domain.Classification{}
		_ = json.Unmarshal(classificationJSON, lead.Classification)
	}
	if len(quoteJSON) > 0 {
		lead.Quote = &domain.Quote{}
		_ = json.Unmarshal(quoteJSON, lead.Quote)
	}

	return lead, err
}
