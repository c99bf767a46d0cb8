// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides Redis connection settings shared by the job queue
// and the session budget counter.
type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

// JWTConfig provides JWT validation settings for the dashboard endpoints.
type JWTConfig interface {
	GetJWTAccessSecret() string
	GetAccessTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EmailConfig provides settings for SMTP email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SMSConfig provides settings for the SMS gateway.
type SMSConfig interface {
	GetSMSEnabled() bool
	GetSMSWebhookURL() string
	GetSMSAPIKey() string
	GetSMSFromNumber() string
}

// AIConfig provides settings for the model gateway.
type AIConfig interface {
	GetGroqAPIKey() string
	GetGroqBaseURL() string
	GetFastModel() string
	GetGeminiAPIKey() string
	GetCapableModel() string
	GetFastProviderOrder() []string
	GetCapableProviderOrder() []string
	GetModelTimeout() time.Duration
}

// SchedulerConfig provides settings for the background worker binary.
type SchedulerConfig interface {
	RedisConfig
	GetQueueName() string
	GetQueueConcurrency() int
	GetSweepInterval() time.Duration
	GetDigestCheckInterval() time.Duration
	GetRetentionInterval() time.Duration
	GetRetentionMaxAge() time.Duration
}

// SessionBudgetConfig provides settings for the per-session message budget.
type SessionBudgetConfig interface {
	RedisConfig
	GetSessionMaxMessages() int
	GetSessionBudgetTTL() time.Duration
}

// RateLimitConfig provides settings for the per-IP HTTP rate limiter.
type RateLimitConfig interface {
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// FollowUpConfig provides settings for the abandoned-conversation sweeper.
type FollowUpConfig interface {
	GetAbandonAfter() time.Duration
	GetSweepLookback() time.Duration
	GetSweepBatchSize() int
	GetNudgeHourStart() int
	GetNudgeHourEnd() int
	GetDigestHourStart() int
	GetDigestHourEnd() int
	GetDigestWeekday() time.Weekday
	GetBusinessTimezone() *time.Location
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	JWTAccessSecret      string
	AccessTokenTTL       time.Duration
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	EmailEnabled         bool
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	EmailFromName        string
	EmailFromAddress     string
	SMSEnabled           bool
	SMSWebhookURL        string
	SMSAPIKey            string
	SMSFromNumber        string
	GroqAPIKey           string
	GroqBaseURL          string
	FastModel            string
	GeminiAPIKey         string
	CapableModel         string
	FastProviderOrder    []string
	CapableProviderOrder []string
	ModelTimeout         time.Duration
	QueueName            string
	QueueConcurrency     int
	SweepInterval        time.Duration
	DigestCheckInterval  time.Duration
	RetentionInterval    time.Duration
	RetentionMaxAge      time.Duration
	SessionMaxMessages   int
	SessionBudgetTTL     time.Duration
	RateLimitRPS         float64
	RateLimitBurst       int
	AbandonAfter         time.Duration
	SweepLookback        time.Duration
	SweepBatchSize       int
	NudgeHourStart       int
	NudgeHourEnd         int
	DigestHourStart      int
	DigestHourEnd        int
	DigestWeekday        time.Weekday
	BusinessTimezone     *time.Location
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisAddr() string     { return c.RedisAddr }
func (c *Config) GetRedisPassword() string { return c.RedisPassword }
func (c *Config) GetRedisDB() int          { return c.RedisDB }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string       { return c.JWTAccessSecret }
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// SMSConfig implementation
func (c *Config) GetSMSEnabled() bool      { return c.SMSEnabled }
func (c *Config) GetSMSWebhookURL() string { return c.SMSWebhookURL }
func (c *Config) GetSMSAPIKey() string     { return c.SMSAPIKey }
func (c *Config) GetSMSFromNumber() string { return c.SMSFromNumber }

// AIConfig implementation
func (c *Config) GetGroqAPIKey() string             { return c.GroqAPIKey }
func (c *Config) GetGroqBaseURL() string            { return c.GroqBaseURL }
func (c *Config) GetFastModel() string              { return c.FastModel }
func (c *Config) GetGeminiAPIKey() string           { return c.GeminiAPIKey }
func (c *Config) GetCapableModel() string           { return c.CapableModel }
func (c *Config) GetFastProviderOrder() []string    { return c.FastProviderOrder }
func (c *Config) GetCapableProviderOrder() []string { return c.CapableProviderOrder }
func (c *Config) GetModelTimeout() time.Duration    { return c.ModelTimeout }

// SchedulerConfig implementation
func (c *Config) GetQueueName() string                  { return c.QueueName }
func (c *Config) GetQueueConcurrency() int              { return c.QueueConcurrency }
func (c *Config) GetSweepInterval() time.Duration       { return c.SweepInterval }
func (c *Config) GetDigestCheckInterval() time.Duration { return c.DigestCheckInterval }
func (c *Config) GetRetentionInterval() time.Duration   { return c.RetentionInterval }
func (c *Config) GetRetentionMaxAge() time.Duration     { return c.RetentionMaxAge }

// SessionBudgetConfig implementation
func (c *Config) GetSessionMaxMessages() int         { return c.SessionMaxMessages }
func (c *Config) GetSessionBudgetTTL() time.Duration { return c.SessionBudgetTTL }

// RateLimitConfig implementation
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// FollowUpConfig implementation
func (c *Config) GetAbandonAfter() time.Duration      { return c.AbandonAfter }
func (c *Config) GetSweepLookback() time.Duration     { return c.SweepLookback }
func (c *Config) GetSweepBatchSize() int              { return c.SweepBatchSize }
func (c *Config) GetNudgeHourStart() int              { return c.NudgeHourStart }
func (c *Config) GetNudgeHourEnd() int                { return c.NudgeHourEnd }
func (c *Config) GetDigestHourStart() int             { return c.DigestHourStart }
func (c *Config) GetDigestHourEnd() int               { return c.DigestHourEnd }
func (c *Config) GetDigestWeekday() time.Weekday      { return c.DigestWeekday }
func (c *Config) GetBusinessTimezone() *time.Location { return c.BusinessTimezone }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	tz, err := time.LoadLocation(getEnv("BUSINESS_TIMEZONE", "America/Chicago"))
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              int(mustInt64(getEnv("REDIS_DB", "0"))),
		JWTAccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:       mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		CORSAllowCreds:       strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		EmailEnabled:         emailEnabled && smtpHost != "",
		SMTPHost:             smtpHost,
		SMTPPort:             int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "LeadPilot"),
		EmailFromAddress:     getEnv("EMAIL_FROM_ADDRESS", ""),
		SMSEnabled:           strings.EqualFold(getEnv("SMS_ENABLED", "false"), "true"),
		SMSWebhookURL:        getEnv("SMS_WEBHOOK_URL", ""),
		SMSAPIKey:            getEnv("SMS_API_KEY", ""),
		SMSFromNumber:        getEnv("SMS_FROM_NUMBER", ""),
		GroqAPIKey:           getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:          getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		FastModel:            getEnv("FAST_MODEL", "llama-3.1-8b-instant"),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		CapableModel:         getEnv("CAPABLE_MODEL", "gemini-2.0-flash"),
		FastProviderOrder:    splitCSV(getEnv("FAST_PROVIDER_ORDER", "groq,gemini")),
		CapableProviderOrder: splitCSV(getEnv("CAPABLE_PROVIDER_ORDER", "gemini,groq")),
		ModelTimeout:         mustDuration(getEnv("MODEL_TIMEOUT", "30s")),
		QueueName:            getEnv("QUEUE_NAME", "default"),
		QueueConcurrency:     int(mustInt64(getEnv("QUEUE_CONCURRENCY", "10"))),
		SweepInterval:        mustDuration(getEnv("SWEEP_INTERVAL", "5m")),
		DigestCheckInterval:  mustDuration(getEnv("DIGEST_CHECK_INTERVAL", "1h")),
		RetentionInterval:    mustDuration(getEnv("RETENTION_INTERVAL", "24h")),
		RetentionMaxAge:      mustDuration(getEnv("RETENTION_MAX_AGE", "2160h")),
		SessionMaxMessages:   int(mustInt64(getEnv("SESSION_MAX_MESSAGES", "50"))),
		SessionBudgetTTL:     mustDuration(getEnv("SESSION_BUDGET_TTL", "24h")),
		RateLimitRPS:         mustFloat64(getEnv("RATE_LIMIT_RPS", "5")),
		RateLimitBurst:       int(mustInt64(getEnv("RATE_LIMIT_BURST", "10"))),
		AbandonAfter:         mustDuration(getEnv("ABANDON_AFTER", "15m")),
		SweepLookback:        mustDuration(getEnv("SWEEP_LOOKBACK", "30m")),
		SweepBatchSize:       int(mustInt64(getEnv("SWEEP_BATCH_SIZE", "50"))),
		NudgeHourStart:       int(mustInt64(getEnv("NUDGE_HOUR_START", "7"))),
		NudgeHourEnd:         int(mustInt64(getEnv("NUDGE_HOUR_END", "21"))),
		DigestHourStart:      int(mustInt64(getEnv("DIGEST_HOUR_START", "8"))),
		DigestHourEnd:        int(mustInt64(getEnv("DIGEST_HOUR_END", "20"))),
		DigestWeekday:        parseWeekday(getEnv("DIGEST_WEEKDAY", "Monday")),
		BusinessTimezone:     tz,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if emailEnabled && cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is required when EMAIL_ENABLED is true")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.SMSEnabled && cfg.SMSWebhookURL == "" {
		return nil, fmt.Errorf("SMS_WEBHOOK_URL is required when SMS_ENABLED is true")
	}
	if cfg.GroqAPIKey == "" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("at least one of GROQ_API_KEY or GEMINI_API_KEY is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.SweepLookback <= cfg.AbandonAfter {
		return nil, fmt.Errorf("SWEEP_LOOKBACK must be greater than ABANDON_AFTER")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat64(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

func parseWeekday(value string) time.Weekday {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sunday":
		return time.Sunday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	case "saturday":
		return time.Saturday
	default:
		return time.Monday
	}
}
