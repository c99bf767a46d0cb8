// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"leadpilot_backend/internal/events"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/logger"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
	config.RateLimitConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP, JWT and rate limit settings).
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping).
	Health HealthChecker
	// EventBus is the domain event bus for cross-module communication.
	EventBus events.Bus
	// WidgetAuth resolves the tenant from the X-API-Key header.
	WidgetAuth gin.HandlerFunc
	// SessionBudget enforces the per-session message budget on widget routes.
	SessionBudget gin.HandlerFunc
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
