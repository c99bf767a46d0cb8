package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadpilot_backend/internal/customers"
	"leadpilot_backend/internal/metrics"
	"leadpilot_backend/platform/logger"
)

type fakeDigestDirectory struct {
	recipients []customers.Customer
	stamped    []uuid.UUID
}

func (f *fakeDigestDirectory) ListDigestRecipients(context.Context) ([]customers.Customer, error) {
	return f.recipients, nil
}

func (f *fakeDigestDirectory) SetLastDigestSentAt(_ context.Context, id uuid.UUID) error {
	f.stamped = append(f.stamped, id)
	return nil
}

type fakeReports struct {
	report metrics.Report
	err    error
}

func (f *fakeReports) Report(context.Context, uuid.UUID, time.Duration) (metrics.Report, error) {
	return f.report, f.err
}

type digestConfig struct{}

func (digestConfig) GetAbandonAfter() time.Duration      { return 15 * time.Minute }
func (digestConfig) GetSweepLookback() time.Duration     { return 30 * time.Minute }
func (digestConfig) GetSweepBatchSize() int              { return 50 }
func (digestConfig) GetNudgeHourStart() int              { return 7 }
func (digestConfig) GetNudgeHourEnd() int                { return 21 }
func (digestConfig) GetDigestHourStart() int             { return 8 }
func (digestConfig) GetDigestHourEnd() int               { return 20 }
func (digestConfig) GetDigestWeekday() time.Weekday      { return time.Monday }
func (digestConfig) GetBusinessTimezone() *time.Location { return time.UTC }

func digestJSON(subject, body, html string) string {
	b, _ := json.Marshal(map[string]string{
		"subject_line": subject,
		"email_body":   body,
		"html_body":    html,
	})
	return string(b)
}

// mondayMorning is Monday 9:00 AM in America/Chicago.
var mondayMorning = time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)

func digestCustomer(mutate func(*customers.Customer)) customers.Customer {
	email := "owner@austindecks.com"
	company := "Austin Decks"
	c := customers.Customer{
		ID:                  uuid.New(),
		Timezone:            "America/Chicago",
		CompanyName:         &company,
		NotificationEmail:   &email,
		WeeklyDigestEnabled: true,
	}
	if mutate != nil {
		mutate(&c)
	}
	return c
}

func newTestDigest(dir *fakeDigestDirectory, gw Gateway, now time.Time) (*DigestService, *fakeLog, *fakeEmail) {
	audit := &fakeLog{}
	email := &fakeEmail{}
	reports := &fakeReports{report: metrics.Report{
		Snapshot: metrics.Snapshot{TotalLeads: 45, RecoveredLeads: 12, RecoveredRevenue: 3200, TotalMessages: 180},
		AICost:   5,
		ROI:      63900,
	}}
	svc := NewDigestService(dir, reports, gw, audit, email, digestConfig{}, logger.New("test"))
	svc.SetNow(func() time.Time { return now })
	return svc, audit, email
}

func TestDigestSentAndStamped(t *testing.T) {
	customer := digestCustomer(nil)
	dir := &fakeDigestDirectory{recipients: []customers.Customer{customer}}
	gw := &fakeAlertGateway{reply: digestJSON(
		"Last week: You recovered $3,200 with AI",
		"Great week!",
		"<h2>The Big Wins</h2><p>12 recoveries worth $3,200.</p>",
	)}
	svc, audit, email := newTestDigest(dir, gw, mondayMorning)

	if err := svc.SendAllDigests(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(email.digests) != 1 {
		t.Fatalf("digests sent = %d", len(email.digests))
	}
	if email.digests[0].subject != "Last week: You recovered $3,200 with AI" {
		t.Errorf("subject = %q", email.digests[0].subject)
	}
	if len(dir.stamped) != 1 || dir.stamped[0] != customer.ID {
		t.Error("last_digest_sent_at not stamped")
	}
	if len(audit.entries) != 1 || audit.entries[0].notificationType != TypeWeeklyDigest {
		t.Errorf("audit entries = %+v", audit.entries)
	}
}

func TestDigestDedupedWithinWeek(t *testing.T) {
	sentMonday := mondayMorning.Add(-2 * time.Hour)
	customer := digestCustomer(func(c *customers.Customer) {
		c.LastDigestSentAt = &sentMonday
	})
	dir := &fakeDigestDirectory{recipients: []customers.Customer{customer}}
	gw := &fakeAlertGateway{reply: digestJSON("s", "b", "<p>h</p>")}
	svc, _, email := newTestDigest(dir, gw, mondayMorning)

	if err := svc.SendAllDigests(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(email.digests) != 0 {
		t.Fatal("digest already sent this week must not repeat")
	}
}

func TestDigestSendsWhenLastSentPreviousWeek(t *testing.T) {
	lastWeek := mondayMorning.AddDate(0, 0, -7)
	customer := digestCustomer(func(c *customers.Customer) {
		c.LastDigestSentAt = &lastWeek
	})
	dir := &fakeDigestDirectory{recipients: []customers.Customer{customer}}
	gw := &fakeAlertGateway{reply: digestJSON("s", "b", "<p>h</p>")}
	svc, _, email := newTestDigest(dir, gw, mondayMorning)

	if err := svc.SendAllDigests(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(email.digests) != 1 {
		t.Fatal("stale digest stamp should not block this week's send")
	}
}

func TestDigestWeekBoundaryUsesTenantTimezone(t *testing.T) {
	// Sunday 22:00 UTC is already Monday 10:00 AM in Auckland. A stamp from
	// the previous tenant-local week must not block the fresh send, even
	// though the server clock still reads Sunday.
	sundayUTC := time.Date(2026, 8, 23, 22, 0, 0, 0, time.UTC)
	lastFriday := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)
	customer := digestCustomer(func(c *customers.Customer) {
		c.Timezone = "Pacific/Auckland"
		c.LastDigestSentAt = &lastFriday
	})
	dir := &fakeDigestDirectory{recipients: []customers.Customer{customer}}
	gw := &fakeAlertGateway{reply: digestJSON("s", "b", "<p>h</p>")}
	svc, _, email := newTestDigest(dir, gw, sundayUTC)

	if err := svc.SendAllDigests(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(email.digests) != 1 {
		t.Fatal("tenant-local Monday must start a fresh digest week")
	}
}

func TestDigestSkipsOutsideWindow(t *testing.T) {
	// Monday 5:00 AM in America/Chicago, before the 8 AM window opens.
	early := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	customer := digestCustomer(nil)
	dir := &fakeDigestDirectory{recipients: []customers.Customer{customer}}
	gw := &fakeAlertGateway{reply: digestJSON("s", "b", "<p>h</p>")}
	svc, _, email := newTestDigest(dir, gw, early)

	if err := svc.SendAllDigests(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(email.digests) != 0 || len(dir.stamped) != 0 {
		t.Fatal("digest must wait for the tenant's morning window")
	}
}

func TestDigestFallbackContentOnModelError(t *testing.T) {
	customer := digestCustomer(nil)
	dir := &fakeDigestDirectory{recipients: []customers.Customer{customer}}
	gw := &fakeAlertGateway{err: errors.New("model unavailable")}
	svc, _, email := newTestDigest(dir, gw, mondayMorning)

	if err := svc.SendAllDigests(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(email.digests) != 1 {
		t.Fatal("fallback digest should still be delivered")
	}
	if email.digests[0].subject != "Your Weekly Performance Report" {
		t.Errorf("subject = %q", email.digests[0].subject)
	}
}

func TestWeekStart(t *testing.T) {
	// Friday August 28th maps back to Monday the 24th.
	friday := time.Date(2026, 8, 28, 17, 30, 0, 0, time.UTC)
	want := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	if got := weekStart(friday); !got.Equal(want) {
		t.Errorf("weekStart(friday) = %v", got)
	}
	// Sunday belongs to the week that started six days earlier.
	sunday := time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC)
	if got := weekStart(sunday); !got.Equal(want) {
		t.Errorf("weekStart(sunday) = %v", got)
	}
	if got := weekStart(want.Add(time.Hour)); !got.Equal(want) {
		t.Errorf("weekStart(monday) = %v", got)
	}
}
