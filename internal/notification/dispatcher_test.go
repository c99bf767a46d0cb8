package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"leadpilot_backend/internal/ai"
	"leadpilot_backend/internal/customers"
	"leadpilot_backend/platform/logger"
)

type fakeDirectory struct {
	customer customers.Customer
}

func (f *fakeDirectory) GetByID(context.Context, uuid.UUID) (customers.Customer, error) {
	return f.customer, nil
}

type fakeAlertGateway struct {
	reply string
	err   error
	calls int
}

func (f *fakeAlertGateway) CompleteJSON(_ context.Context, _ ai.Tier, _ ai.Request, v any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), v)
}

type logEntry struct {
	notificationType string
	channel          string
	recipient        string
	content          string
	status           string
}

type fakeLog struct {
	entries []logEntry
}

func (f *fakeLog) LogSent(_ context.Context, _ uuid.UUID, _ *uuid.UUID, notificationType, channel, recipient, _, content string) error {
	f.entries = append(f.entries, logEntry{notificationType, channel, recipient, content, StatusSent})
	return nil
}

func (f *fakeLog) LogFailed(_ context.Context, _ uuid.UUID, _ *uuid.UUID, notificationType, channel, recipient, errorMessage string) error {
	f.entries = append(f.entries, logEntry{notificationType, channel, recipient, errorMessage, StatusFailed})
	return nil
}

type fakeSMS struct {
	sent []string
	err  error
}

func (f *fakeSMS) Send(_ context.Context, _, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, body)
	return nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeEmail struct {
	alerts  []sentEmail
	digests []sentEmail
	err     error
}

func (f *fakeEmail) SendHotLeadAlert(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, sentEmail{to, subject, body})
	return nil
}

func (f *fakeEmail) SendWeeklyDigest(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.digests = append(f.digests, sentEmail{to, subject, body})
	return nil
}

func alertJSON(sms, subject, body string) string {
	b, _ := json.Marshal(map[string]string{
		"sms":           sms,
		"email_subject": subject,
		"email_body":    body,
	})
	return string(b)
}

func alertCustomer(mutate func(*customers.Customer)) customers.Customer {
	phone := "+15125550199"
	email := "owner@austindecks.com"
	c := customers.Customer{
		ID:                uuid.New(),
		Timezone:          "America/Chicago",
		NotificationPhone: &phone,
		NotificationEmail: &email,
		AlertOnHotLead:    true,
	}
	if mutate != nil {
		mutate(&c)
	}
	return c
}

func testAlert(customerID uuid.UUID) HotLeadAlert {
	name := "Sarah"
	return HotLeadAlert{
		LeadID:         uuid.New(),
		CustomerID:     customerID,
		UrgencyLevel:   "URGENT",
		ServiceType:    "deck_repair",
		VisitorName:    &name,
		EstimatedValue: 1200,
		UrgencyScore:   0.9,
	}
}

func newTestDispatcher(dir *fakeDirectory, gw Gateway) (*Dispatcher, *fakeLog, *fakeSMS, *fakeEmail) {
	audit := &fakeLog{}
	sms := &fakeSMS{}
	email := &fakeEmail{}
	d := NewDispatcher(dir, gw, audit, sms, email, logger.New("test"))
	return d, audit, sms, email
}

func TestHotLeadAlertBothChannels(t *testing.T) {
	customer := alertCustomer(nil)
	gw := &fakeAlertGateway{reply: alertJSON(
		"🔥 URGENT: Deck Repair for Sarah ($1,200). View in Dashboard now.",
		"🔥 URGENT Lead: Deck Repair",
		"Sarah needs urgent deck repair, estimated $1,200. Check your dashboard.",
	)}
	d, audit, sms, email := newTestDispatcher(&fakeDirectory{customer: customer}, gw)

	if err := d.SendHotLeadAlert(context.Background(), testAlert(customer.ID)); err != nil {
		t.Fatal(err)
	}

	if len(sms.sent) != 1 || len(email.alerts) != 1 {
		t.Fatalf("sms=%d email=%d, want 1 each", len(sms.sent), len(email.alerts))
	}
	if len(audit.entries) != 2 {
		t.Fatalf("log entries = %d, want 2", len(audit.entries))
	}
	for _, e := range audit.entries {
		if e.status != StatusSent {
			t.Errorf("entry %+v not marked sent", e)
		}
	}
}

func TestHotLeadAlertDisabledIsSilent(t *testing.T) {
	customer := alertCustomer(func(c *customers.Customer) { c.AlertOnHotLead = false })
	gw := &fakeAlertGateway{reply: alertJSON("x", "y", "z")}
	d, audit, sms, email := newTestDispatcher(&fakeDirectory{customer: customer}, gw)

	if err := d.SendHotLeadAlert(context.Background(), testAlert(customer.ID)); err != nil {
		t.Fatal(err)
	}
	if gw.calls != 0 || len(sms.sent) != 0 || len(email.alerts) != 0 || len(audit.entries) != 0 {
		t.Fatal("disabled alerts must be a silent no-op")
	}
}

func TestHotLeadAlertNoChannelIsSilent(t *testing.T) {
	customer := alertCustomer(func(c *customers.Customer) {
		c.NotificationPhone = nil
		c.NotificationEmail = nil
	})
	gw := &fakeAlertGateway{}
	d, audit, _, _ := newTestDispatcher(&fakeDirectory{customer: customer}, gw)

	if err := d.SendHotLeadAlert(context.Background(), testAlert(customer.ID)); err != nil {
		t.Fatal(err)
	}
	if gw.calls != 0 || len(audit.entries) != 0 {
		t.Fatal("no configured channel must be a silent no-op")
	}
}

func TestHotLeadSMSTruncatedToSingleSegment(t *testing.T) {
	customer := alertCustomer(nil)
	long := strings.Repeat("urgent lead details ", 12)
	gw := &fakeAlertGateway{reply: alertJSON(long, "subject", "body")}
	d, _, sms, _ := newTestDispatcher(&fakeDirectory{customer: customer}, gw)

	if err := d.SendHotLeadAlert(context.Background(), testAlert(customer.ID)); err != nil {
		t.Fatal(err)
	}
	got := sms.sent[0]
	if len([]rune(got)) > 160 {
		t.Errorf("sms is %d chars", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated sms should end with ellipsis: %q", got)
	}
}

func TestHotLeadAlertFallbackCopy(t *testing.T) {
	customer := alertCustomer(nil)
	gw := &fakeAlertGateway{err: errors.New("model unavailable")}
	d, _, sms, email := newTestDispatcher(&fakeDirectory{customer: customer}, gw)

	if err := d.SendHotLeadAlert(context.Background(), testAlert(customer.ID)); err != nil {
		t.Fatal(err)
	}
	if got := sms.sent[0]; !strings.Contains(got, "URGENT: deck_repair - Sarah ($1200)") {
		t.Errorf("fallback sms = %q", got)
	}
	if got := email.alerts[0].subject; got != "🔥 URGENT Lead: deck_repair" {
		t.Errorf("fallback subject = %q", got)
	}
}

func TestHotLeadSMSFailureIsLoggedNotRaised(t *testing.T) {
	customer := alertCustomer(nil)
	gw := &fakeAlertGateway{reply: alertJSON("short alert", "subject", "body")}
	d, audit, sms, email := newTestDispatcher(&fakeDirectory{customer: customer}, gw)
	sms.err = errors.New("carrier down")

	if err := d.SendHotLeadAlert(context.Background(), testAlert(customer.ID)); err != nil {
		t.Fatalf("transport failure must not surface: %v", err)
	}
	if len(email.alerts) != 1 {
		t.Fatal("email should still be attempted after SMS failure")
	}

	var failed, sent int
	for _, e := range audit.entries {
		switch e.status {
		case StatusFailed:
			failed++
		case StatusSent:
			sent++
		}
	}
	if failed != 1 || sent != 1 {
		t.Errorf("log: failed=%d sent=%d, want 1/1", failed, sent)
	}
}
