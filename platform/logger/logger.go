// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// TenantIDKey is the context key for the tenant (customer) ID
	TenantIDKey contextKey = "tenant_id"
	// LeadIDKey is the context key for the lead ID
	LeadIDKey contextKey = "lead_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, tenant_id, and lead_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok && tenantID != "" {
		newLogger = newLogger.WithTenantID(tenantID)
	}

	if leadID, ok := ctx.Value(LeadIDKey).(string); ok && leadID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("lead_id", leadID))}
	}

	return newLogger
}

// WithTenantID returns a logger with the tenant ID attached.
func (l *Logger) WithTenantID(tenantID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("tenant_id", tenantID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// SecurityEvent logs a blocked message or cross-tenant access attempt.
func (l *Logger) SecurityEvent(event, tenantID, reason string) {
	l.Warn("security_event",
		slog.String("event", event),
		slog.String("tenant_id", tenantID),
		slog.String("reason", reason),
	)
}

// ModelCall logs the outcome of a model gateway invocation.
func (l *Logger) ModelCall(tier, provider string, attempt int, err error) {
	if err == nil {
		l.Debug("model_call",
			slog.String("tier", tier),
			slog.String("provider", provider),
			slog.Int("attempt", attempt),
		)
		return
	}
	l.Warn("model_call_failed",
		slog.String("tier", tier),
		slog.String("provider", provider),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(key, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("key", key),
		slog.String("path", path),
	)
}

// SweepSummary logs the outcome of one follow-up sweep.
func (l *Logger) SweepSummary(candidates, nudged, stopped, completed, skipped int) {
	l.Info("followup_sweep",
		slog.Int("candidates", candidates),
		slog.Int("nudged", nudged),
		slog.Int("stopped", stopped),
		slog.Int("completed", completed),
		slog.Int("skipped", skipped),
	)
}
