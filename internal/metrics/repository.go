package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Window aggregates lead figures for one tenant since the given instant.
// Recovered means the Ghost Buster nudged the lead and it later closed.
func (r *Repository) Window(ctx context.Context, customerID uuid.UUID, since time.Time) (Snapshot, error) {
	var s Snapshot
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_qualified = true),
			COUNT(*) FILTER (WHERE quote IS NOT NULL),
			COUNT(*) FILTER (WHERE follow_up_sent = true AND is_complete = true),
			COALESCE(SUM((quote->>'high')::NUMERIC), 0),
			COALESCE(SUM((quote->>'high')::NUMERIC) FILTER (WHERE follow_up_sent = true AND is_complete = true), 0),
			COUNT(*) FILTER (WHERE is_out_of_area = true),
			COUNT(*) FILTER (WHERE (classification->>'urgency_score')::NUMERIC >= 0.9),
			COUNT(*) FILTER (WHERE classification->>'category' = 'Junk'),
			COUNT(*) FILTER (WHERE is_complete = false AND stopped = false AND (classification->>'urgency_score')::NUMERIC >= 0.8),
			COALESCE(SUM(message_count), 0)
		FROM leads
		WHERE customer_id = $1
		  AND created_at > $2
		  AND deleted_at IS NULL
	`, customerID, since).Scan(
		&s.TotalLeads, &s.QualifiedLeads, &s.QuotedLeads, &s.RecoveredLeads,
		&s.RevenuePipeline, &s.RecoveredRevenue,
		&s.OutOfAreaCount, &s.EmergencyCount, &s.JunkCount,
		&s.PendingHotLeads, &s.TotalMessages,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("metrics window: %w", err)
	}

	s.TopService, err = r.topService(ctx, customerID, since)
	if err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (r *Repository) topService(ctx context.Context, customerID uuid.UUID, since time.Time) (*string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT classification->>'service_type'
		FROM leads
		WHERE customer_id = $1
		  AND created_at > $2
		  AND classification IS NOT NULL
		  AND deleted_at IS NULL
		GROUP BY classification->>'service_type'
		ORDER BY COUNT(*) DESC
		LIMIT 1
	`, customerID, since)
	if err != nil {
		return nil, fmt.Errorf("metrics top service: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var service *string
	if err := rows.Scan(&service); err != nil {
		return nil, err
	}
	return service, rows.Err()
}
