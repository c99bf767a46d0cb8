package notification

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"leadpilot_backend/internal/ai"
	"leadpilot_backend/internal/customers"
	"leadpilot_backend/platform/logger"
)

// Directory resolves tenant notification preferences.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (customers.Customer, error)
}

// Gateway is the model-call surface for copy generation.
type Gateway interface {
	CompleteJSON(ctx context.Context, tier ai.Tier, req ai.Request, v any) error
}

// Log is the append-only delivery audit trail.
type Log interface {
	LogSent(ctx context.Context, customerID uuid.UUID, leadID *uuid.UUID, notificationType, channel, recipient, subject, content string) error
	LogFailed(ctx context.Context, customerID uuid.UUID, leadID *uuid.UUID, notificationType, channel, recipient, errorMessage string) error
}

// Dispatcher delivers hot-lead alerts over the tenant's configured
// channels. Transport failures are recorded, never raised: a missed
// text must not fail the task that triggered it.
type Dispatcher struct {
	directory Directory
	gateway   Gateway
	audit     Log
	sms       SMSSender
	email     EmailSender
	log       *logger.Logger
}

func NewDispatcher(directory Directory, gateway Gateway, audit Log, sms SMSSender, email EmailSender, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		directory: directory,
		gateway:   gateway,
		audit:     audit,
		sms:       sms,
		email:     email,
		log:       log,
	}
}

// SendHotLeadAlert generates channel copy and delivers it. No-ops
// silently when the tenant disabled alerts or configured no channel.
func (d *Dispatcher) SendHotLeadAlert(ctx context.Context, alert HotLeadAlert) error {
	customer, err := d.directory.GetByID(ctx, alert.CustomerID)
	if err != nil {
		return err
	}
	if !customer.AlertOnHotLead || !customer.HasAlertChannel() {
		d.log.Debug("hot_lead_alert_disabled", "customer_id", alert.CustomerID.String())
		return nil
	}

	msg := d.alertMessage(ctx, alert)
	leadID := alert.LeadID

	if customer.NotificationPhone != nil && *customer.NotificationPhone != "" {
		to := *customer.NotificationPhone
		if err := d.sms.Send(ctx, to, msg.SMS); err != nil {
			d.log.Error("hot_lead_sms_failed", "lead_id", leadID.String(), "error", err.Error())
			d.logAttempt(ctx, alert.CustomerID, &leadID, TypeHotLeadSMS, ChannelSMS, to, "", msg.SMS, err)
		} else {
			d.logAttempt(ctx, alert.CustomerID, &leadID, TypeHotLeadSMS, ChannelSMS, to, "", msg.SMS, nil)
		}
	}

	if customer.NotificationEmail != nil && *customer.NotificationEmail != "" {
		to := *customer.NotificationEmail
		if err := d.email.SendHotLeadAlert(ctx, to, msg.EmailSubject, msg.EmailBody); err != nil {
			d.log.Error("hot_lead_email_failed", "lead_id", leadID.String(), "error", err.Error())
			d.logAttempt(ctx, alert.CustomerID, &leadID, TypeHotLeadEmail, ChannelEmail, to, msg.EmailSubject, msg.EmailBody, err)
		} else {
			d.logAttempt(ctx, alert.CustomerID, &leadID, TypeHotLeadEmail, ChannelEmail, to, msg.EmailSubject, msg.EmailBody, nil)
		}
	}

	return nil
}

func (d *Dispatcher) alertMessage(ctx context.Context, alert HotLeadAlert) AlertMessage {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fallbackAlertMessage(alert)
	}

	var msg AlertMessage
	err = d.gateway.CompleteJSON(ctx, ai.TierFast, ai.Request{
		System:    alertSystemPrompt,
		Messages:  []ai.Message{{Role: ai.RoleUser, Content: string(payload)}},
		MaxTokens: 256,
		ForceJSON: true,
	}, &msg)
	if err != nil {
		d.log.Warn("alert_copy_generation_failed", "error", err.Error())
		return fallbackAlertMessage(alert)
	}
	if msg.SMS == "" || msg.EmailSubject == "" {
		return fallbackAlertMessage(alert)
	}
	msg.SMS = truncateSMS(msg.SMS)
	return msg
}

func (d *Dispatcher) logAttempt(ctx context.Context, customerID uuid.UUID, leadID *uuid.UUID, notificationType, channel, recipient, subject, content string, sendErr error) {
	var err error
	if sendErr != nil {
		err = d.audit.LogFailed(ctx, customerID, leadID, notificationType, channel, recipient, sendErr.Error())
	} else {
		err = d.audit.LogSent(ctx, customerID, leadID, notificationType, channel, recipient, subject, content)
	}
	if err != nil {
		d.log.DatabaseError("notification_log", err)
	}
}
