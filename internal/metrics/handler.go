package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadpilot_backend/platform/httpkit"
)

// windows the dashboard accepts via the ?period query parameter.
var reportWindows = map[string]time.Duration{
	"day":  24 * time.Hour,
	"week": 7 * 24 * time.Hour,
}

// Source produces a report for a tenant window. Satisfied by Service.
type Source interface {
	Report(ctx context.Context, customerID uuid.UUID, window time.Duration) (Report, error)
}

type Handler struct {
	src Source
}

func NewHandler(src Source) *Handler {
	return &Handler{src: src}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/metrics/dashboard", h.Dashboard)
}

func (h *Handler) Dashboard(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	window, ok := reportWindows[c.DefaultQuery("period", "day")]
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "unknown period", nil)
		return
	}

	report, err := h.src.Report(c.Request.Context(), id.CustomerID(), window)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, report)
}
