package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadpilot_backend/internal/ai"
	"leadpilot_backend/internal/customers"
	"leadpilot_backend/internal/events"
	"leadpilot_backend/internal/followup"
	"leadpilot_backend/internal/metrics"
	"leadpilot_backend/internal/notification"
	"leadpilot_backend/internal/scheduler"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/db"
	"leadpilot_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	gateway := ai.New(cfg, log)

	customerRepo := customers.NewRepository(pool)
	notificationLog := notification.NewRepository(pool)

	// Hot-lead alert delivery
	smsSender := notification.NewSMSSender(cfg, log)
	emailSender := notification.NewEmailSender(cfg, log)
	dispatcher := notification.NewDispatcher(customerRepo, gateway, notificationLog, smsSender, emailSender, log)

	// Abandoned-conversation recovery
	followUpRepo := followup.NewRepository(pool)
	nudges := followup.NewGenerator(gateway, log)
	sweeper := followup.NewSweeper(followUpRepo, nudges, eventBus, cfg, log)

	// Weekly digest
	reports := metrics.NewService(metrics.NewRepository(pool))
	digests := notification.NewDigestService(customerRepo, reports, gateway, notificationLog, emailSender, cfg, log)

	queue := scheduler.NewClient(cfg)
	defer func() { _ = queue.Close() }()

	sweepDispatcher := scheduler.NewSweepDispatcher(queue, cfg, log)
	go sweepDispatcher.Run(ctx)

	digestDispatcher := scheduler.NewDigestDispatcher(queue, cfg, cfg, log)
	go digestDispatcher.Run(ctx)

	retention := scheduler.NewLeadRetentionCleanup(pool, log, cfg.GetRetentionInterval(), cfg.GetRetentionMaxAge())
	go retention.Run(ctx)

	worker := scheduler.NewWorker(cfg, dispatcher, sweeper, digests, log)
	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
