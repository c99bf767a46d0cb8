// Package ratelimit enforces the per-session message budget on widget
// routes. The counter lives in Redis so the budget holds across instances.
package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"leadpilot_backend/internal/customers"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/logger"
)

// SessionBudget counts messages per (tenant, session) with a TTL so
// abandoned sessions expire on their own.
type SessionBudget struct {
	rdb        *redis.Client
	defaultMax int
	ttl        time.Duration
	log        *logger.Logger
}

func NewSessionBudget(cfg config.SessionBudgetConfig, log *logger.Logger) *SessionBudget {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	})
	return NewSessionBudgetWithClient(rdb, cfg.GetSessionMaxMessages(), cfg.GetSessionBudgetTTL(), log)
}

// NewSessionBudgetWithClient wires an existing Redis client. Tests use this
// with miniredis.
func NewSessionBudgetWithClient(rdb *redis.Client, defaultMax int, ttl time.Duration, log *logger.Logger) *SessionBudget {
	return &SessionBudget{rdb: rdb, defaultMax: defaultMax, ttl: ttl, log: log}
}

// Allow increments the session counter and reports whether the turn is
// within budget. maxMessages = 0 falls back to the configured default.
// Each exchange stores two messages, so the budget is doubled.
func (b *SessionBudget) Allow(ctx context.Context, customerID, sessionID string, maxMessages int) (bool, error) {
	if maxMessages <= 0 {
		maxMessages = b.defaultMax
	}
	key := fmt.Sprintf("session_budget:%s:%s", customerID, sessionID)

	n, err := b.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := b.rdb.Expire(ctx, key, b.ttl).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(maxMessages*2), nil
}

// Middleware enforces the budget before the turn engine runs. The session
// id is peeked from the JSON body; Redis unavailability fails open so the
// limiter never takes the widget down with it.
func (b *SessionBudget) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer, ok := customers.CustomerFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			return
		}

		sessionID := peekSessionID(c)
		if sessionID == "" {
			// Missing session id is caught by request validation later.
			c.Next()
			return
		}

		allowed, err := b.Allow(c.Request.Context(), customer.ID.String(), sessionID, customer.RateLimitMessagesPerSession)
		if err != nil {
			b.log.Error("session_budget_check_failed", "error", err.Error())
			c.Next()
			return
		}
		if !allowed {
			b.log.RateLimitExceeded(customer.ID.String()+":"+sessionID, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded for this session",
				"code":  "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		c.Next()
	}
}

// peekSessionID reads session_id from the JSON body and restores the body
// for downstream binding.
func peekSessionID(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	var probe struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.SessionID
}
