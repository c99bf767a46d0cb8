package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "leadpilot_backend/internal/http"
)

// Module is the metrics bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

func NewModule(pool *pgxpool.Pool) *Module {
	svc := NewService(NewRepository(pool))
	return &Module{handler: NewHandler(svc), service: svc}
}

func (m *Module) Name() string { return "metrics" }

// Service returns the report source for the digest composer.
func (m *Module) Service() *Service { return m.service }

// RegisterRoutes mounts the dashboard endpoint on the JWT group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
