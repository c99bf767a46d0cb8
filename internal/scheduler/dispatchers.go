package scheduler

import (
	"context"
	"time"

	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/logger"
)

// SweepDispatcher enqueues a Ghost Buster sweep on a fixed interval.
type SweepDispatcher struct {
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

func NewSweepDispatcher(client *Client, cfg config.SchedulerConfig, log *logger.Logger) *SweepDispatcher {
	interval := cfg.GetSweepInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweepDispatcher{client: client, interval: interval, log: log}
}

func (d *SweepDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := d.client.EnqueueFollowUpSweep(ctx); err != nil {
			d.log.Warn("sweep enqueue failed", "error", err)
		}
	}
}

// DigestDispatcher enqueues the weekly digest run. It checks hourly and
// only fires on the configured weekday; per-tenant morning windows and
// the once-a-week dedupe are enforced downstream.
type DigestDispatcher struct {
	client   *Client
	interval time.Duration
	weekday  time.Weekday
	loc      *time.Location
	log      *logger.Logger
	now      func() time.Time
}

func NewDigestDispatcher(client *Client, cfg config.SchedulerConfig, followupCfg config.FollowUpConfig, log *logger.Logger) *DigestDispatcher {
	interval := cfg.GetDigestCheckInterval()
	if interval <= 0 {
		interval = time.Hour
	}
	loc := followupCfg.GetBusinessTimezone()
	if loc == nil {
		loc = time.UTC
	}
	return &DigestDispatcher{
		client:   client,
		interval: interval,
		weekday:  followupCfg.GetDigestWeekday(),
		loc:      loc,
		log:      log,
		now:      time.Now,
	}
}

func (d *DigestDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if d.now().In(d.loc).Weekday() != d.weekday {
			continue
		}
		if err := d.client.EnqueueWeeklyDigest(ctx); err != nil {
			d.log.Warn("digest enqueue failed", "error", err)
		}
	}
}
