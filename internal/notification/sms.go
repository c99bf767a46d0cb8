package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/logger"
)

// SMSSender delivers one text message. Transport providers are external
// collaborators; implementations report success or failure only.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// LogSMSSender writes messages to the log instead of a carrier. Used
// in development and whenever no SMS gateway is configured.
type LogSMSSender struct {
	log *logger.Logger
}

func NewLogSMSSender(log *logger.Logger) *LogSMSSender {
	return &LogSMSSender{log: log}
}

func (s *LogSMSSender) Send(_ context.Context, to, body string) error {
	s.log.Info("sms_logged", "to", to, "body", body)
	return nil
}

// WebhookSMSSender posts messages to an HTTP SMS gateway.
type WebhookSMSSender struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

func NewWebhookSMSSender(cfg config.SMSConfig) *WebhookSMSSender {
	return &WebhookSMSSender{
		url:    cfg.GetSMSWebhookURL(),
		apiKey: cfg.GetSMSAPIKey(),
		from:   cfg.GetSMSFromNumber(),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSMSSender) Send(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(map[string]string{
		"from": s.from,
		"to":   to,
		"body": body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}

// NewSMSSender picks the webhook transport when configured, otherwise
// the logging fallback.
func NewSMSSender(cfg config.SMSConfig, log *logger.Logger) SMSSender {
	if cfg.GetSMSEnabled() && cfg.GetSMSWebhookURL() != "" {
		return NewWebhookSMSSender(cfg)
	}
	return NewLogSMSSender(log)
}
