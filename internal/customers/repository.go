package customers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("customer not found")

const customerColumns = `id, email, api_key, company_name, timezone, business_info, pricing_rules, ai_prompts,
		notification_email, notification_phone, alert_on_hot_lead, weekly_digest_enabled, last_digest_sent_at,
		rate_limit_messages_per_session, is_active, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByAPIKey resolves an active tenant from a widget API key.
func (r *Repository) GetByAPIKey(ctx context.Context, apiKey string) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE api_key = $1 AND is_active = true AND deleted_at IS NULL
	`, apiKey)
	return scanCustomer(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanCustomer(row)
}

// ListDigestRecipients returns active tenants with the weekly digest
// enabled and an email on file.
func (r *Repository) ListDigestRecipients(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE weekly_digest_enabled = true
			AND notification_email IS NOT NULL
			AND is_active = true
			AND deleted_at IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetLastDigestSentAt records the weekly digest dedupe timestamp.
func (r *Repository) SetLastDigestSentAt(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE customers SET last_digest_sent_at = now(), updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (Customer, error) {
	var c Customer
	var businessInfoJSON, pricingRulesJSON, aiPromptsJSON []byte

	err := row.Scan(
		&c.ID, &c.Email, &c.APIKey, &c.CompanyName, &c.Timezone,
		&businessInfoJSON, &pricingRulesJSON, &aiPromptsJSON,
		&c.NotificationEmail, &c.NotificationPhone, &c.AlertOnHotLead, &c.WeeklyDigestEnabled, &c.LastDigestSentAt,
		&c.RateLimitMessagesPerSession, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, err
	}

	_ = json.Unmarshal(businessInfoJSON, &c.BusinessInfo)
	_ = json.Unmarshal(pricingRulesJSON, &c.PricingRules)
	_ = json.Unmarshal(aiPromptsJSON, &c.AIPrompts)

	return c, nil
}
