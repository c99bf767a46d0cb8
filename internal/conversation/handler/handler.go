// Package handler exposes the widget conversation endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadpilot_backend/internal/conversation/service"
	"leadpilot_backend/internal/conversation/transport"
	"leadpilot_backend/internal/customers"
	"leadpilot_backend/platform/httpkit"
	"leadpilot_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/message", h.ProcessMessage)
	rg.POST("/referral/confirm", h.ConfirmReferral)
}

func (h *Handler) ProcessMessage(c *gin.Context) {
	customer, ok := customers.CustomerFromContext(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant context", nil)
		return
	}

	var req transport.WidgetMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	outcome, err := h.svc.ProcessMessage(c.Request.Context(), customer, service.TurnRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		Visitor:   req.VisitorInfo(),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromOutcome(outcome))
}

func (h *Handler) ConfirmReferral(c *gin.Context) {
	customer, ok := customers.CustomerFromContext(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant context", nil)
		return
	}

	var req transport.ReferralConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	message, err := h.svc.ConfirmReferral(c.Request.Context(), customer, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ReferralConfirmResponse{Success: true, Message: message})
}
