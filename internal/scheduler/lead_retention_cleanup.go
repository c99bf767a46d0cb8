package scheduler

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadpilot_backend/internal/conversation/repository"
	"leadpilot_backend/platform/logger"
)

const (
	defaultRetentionInterval = 24 * time.Hour
	defaultRetentionMaxAge   = 90 * 24 * time.Hour
)

// LeadRetentionCleanup periodically tombstones leads older than the
// retention window. Leads are soft-deleted, never removed.
type LeadRetentionCleanup struct {
	repo     *repository.Repository
	log      *logger.Logger
	interval time.Duration
	maxAge   time.Duration
}

func NewLeadRetentionCleanup(pool *pgxpool.Pool, log *logger.Logger, interval, maxAge time.Duration) *LeadRetentionCleanup {
	if interval <= 0 {
		interval = defaultRetentionInterval
	}
	if maxAge <= 0 {
		maxAge = defaultRetentionMaxAge
	}

	return &LeadRetentionCleanup{
		repo:     repository.New(pool),
		log:      log,
		interval: interval,
		maxAge:   maxAge,
	}
}

func (c *LeadRetentionCleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *LeadRetentionCleanup) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-c.maxAge)

	tombstoned, err := c.repo.TombstoneOlderThan(ctx, cutoff)
	if err != nil {
		c.log.Warn("lead retention cleanup failed", "error", err)
		return
	}

	if tombstoned > 0 {
		c.log.Info("lead retention cleanup tombstoned leads", "tombstoned", tombstoned)
	}
}
