// Package conversation provides the conversation bounded context module:
// the turn engine behind the embedded chat widget.
package conversation

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadpilot_backend/internal/ai"
	"leadpilot_backend/internal/conversation/handler"
	"leadpilot_backend/internal/conversation/repository"
	"leadpilot_backend/internal/conversation/service"
	"leadpilot_backend/internal/events"
	apphttp "leadpilot_backend/internal/http"
	"leadpilot_backend/internal/security"
	"leadpilot_backend/platform/logger"
	"leadpilot_backend/platform/validator"
)

// Module is the conversation bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the conversation module with all its
// dependencies.
func NewModule(pool *pgxpool.Pool, gateway *ai.Gateway, eventBus events.Bus, alerts service.NotificationLog, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, gateway, security.New(), eventBus, alerts, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "conversation"
}

// Service returns the turn engine for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the lead store for the scheduler binaries.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts the widget endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Widget)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
