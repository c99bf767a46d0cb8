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
	"leadpilot_backend/internal/conversation"
	"leadpilot_backend/internal/customers"
	"leadpilot_backend/internal/events"
	apphttp "leadpilot_backend/internal/http"
	"leadpilot_backend/internal/http/router"
	"leadpilot_backend/internal/metrics"
	"leadpilot_backend/internal/notification"
	"leadpilot_backend/internal/ratelimit"
	"leadpilot_backend/internal/scheduler"
	"leadpilot_backend/migrations"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/db"
	"leadpilot_backend/platform/logger"
	"leadpilot_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Model gateway shared by the turn engine and copy generation
	gateway := ai.New(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	customerRepo := customers.NewRepository(pool)
	notificationLog := notification.NewRepository(pool)

	conversationModule := conversation.NewModule(pool, gateway, eventBus, notificationLog, val, log)
	metricsModule := metrics.NewModule(pool)

	// Hot leads are alerted from the worker binary; the API side only
	// enqueues. Without Redis the event is logged and dropped.
	queue := scheduler.NewClient(cfg)
	defer func() { _ = queue.Close() }()
	eventBus.Subscribe("conversation.lead.hot", scheduler.NewHotLeadAlertBridge(queue, log))

	sessionBudget := ratelimit.NewSessionBudget(cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:        cfg,
		Logger:        log,
		Health:        pool,
		EventBus:      eventBus,
		WidgetAuth:    customers.APIKeyAuth(customerRepo, log),
		SessionBudget: sessionBudget.Middleware(),
		Modules: []apphttp.Module{
			conversationModule,
			metricsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
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
