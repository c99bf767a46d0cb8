package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"leadpilot_backend/internal/ai"
	"leadpilot_backend/internal/customers"
	"leadpilot_backend/internal/followup"
	"leadpilot_backend/internal/metrics"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/logger"
)

// digestConcurrency bounds the tenant fan-out per run.
const digestConcurrency = 4

// DigestDirectory lists tenants opted into the weekly digest and
// records delivery.
type DigestDirectory interface {
	ListDigestRecipients(ctx context.Context) ([]customers.Customer, error)
	SetLastDigestSentAt(ctx context.Context, id uuid.UUID) error
}

// ReportSource produces the windowed figures the digest summarizes.
type ReportSource interface {
	Report(ctx context.Context, customerID uuid.UUID, window time.Duration) (metrics.Report, error)
}

// digestRequest is the payload serialized into the generation prompt.
type digestRequest struct {
	BusinessName    string        `json:"business_name"`
	WeekStart       string        `json:"week_start"`
	WeekEnd         string        `json:"week_end"`
	Metrics         digestMetrics `json:"metrics"`
	PendingHotLeads int           `json:"pending_hot_leads"`
}

type digestMetrics struct {
	TotalLeads       int     `json:"total_leads"`
	QualifiedLeads   int     `json:"qualified_leads"`
	RecoveredLeads   int     `json:"recovered_leads"`
	EstimatedRevenue float64 `json:"estimated_revenue"`
	RecoveredRevenue float64 `json:"recovered_revenue"`
	HoursSaved       int     `json:"hours_saved"`
	TopService       *string `json:"top_service"`
	EmergenciesCount int     `json:"emergencies_handled"`
	JunkFiltered     int     `json:"junk_filtered"`
	AICost           float64 `json:"ai_cost"`
	ROIPercent       int     `json:"roi"`
}

// digestContent is the generated email.
type digestContent struct {
	SubjectLine string `json:"subject_line"`
	EmailBody   string `json:"email_body"`
	HTMLBody    string `json:"html_body"`
}

const digestSystemPrompt = `You are a Senior SaaS Performance Analyst. Your goal is to write a weekly email report that justifies the subscription cost and celebrates wins.

DATA INPUT:
- Total Leads processed last week
- Total Estimated Revenue Pipeline
- 'Ghost Buster' Recoveries (number and value)
- Churn/Noise filtered (Spam/Out-of-Area)
- Hours saved (based on message count)

STRICT RULES:
1. Subject Line: Must be dynamic and compelling
   - Examples: "Last week: You recovered $3,200 with AI"
   - "Great Week: 45 leads captured, $12K pipeline"
   - "Your AI saved 8 hours of work this week"

2. Email Body Structure:
   - Section 1: "The Big Wins" (Revenue and Recoveries first)
   - Section 2: "Time Saved" (Hours saved from automation)
   - Section 3: "The Week Ahead" (Pending high-priority leads)
   - Section 4: "ROI Proof" (Show the math)

3. Tone: Celebratory, data-driven, personal

4. Format:
   - Use clear section headings
   - Include specific numbers (not ranges)
   - End with encouragement

HTML FORMATTING:
- Use simple HTML tags: <h2>, <p>, <ul>, <li>, <strong>
- Keep it clean and readable
- No complex CSS or images

Remember: The contractor should feel PROUD of their week and EXCITED about the AI's value.`

func fallbackDigestContent() digestContent {
	return digestContent{
		SubjectLine: "Your Weekly Performance Report",
		EmailBody:   "Check your dashboard for this week's performance metrics.",
		HTMLBody:    "<p>Check your dashboard for this week's performance metrics.</p>",
	}
}

// DigestService assembles and delivers the Monday morning digest.
type DigestService struct {
	directory DigestDirectory
	reports   ReportSource
	gateway   Gateway
	audit     Log
	email     EmailSender
	cfg       config.FollowUpConfig
	log       *logger.Logger
	now       func() time.Time
}

func NewDigestService(directory DigestDirectory, reports ReportSource, gateway Gateway, audit Log, email EmailSender, cfg config.FollowUpConfig, log *logger.Logger) *DigestService {
	return &DigestService{
		directory: directory,
		reports:   reports,
		gateway:   gateway,
		audit:     audit,
		email:     email,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// SetNow overrides the clock. Tests only.
func (s *DigestService) SetNow(now func() time.Time) { s.now = now }

// SendAllDigests fans out over every opted-in tenant. Per-tenant
// failures are logged and do not stop the run.
func (s *DigestService) SendAllDigests(ctx context.Context) error {
	recipients, err := s.directory.ListDigestRecipients(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(digestConcurrency)
	for _, customer := range recipients {
		customer := customer
		g.Go(func() error {
			if err := s.SendWeeklyDigest(ctx, customer); err != nil {
				s.log.Error("digest_failed", "customer_id", customer.ID.String(), "error", err.Error())
			}
			return nil
		})
	}
	return g.Wait()
}

// SendWeeklyDigest delivers one tenant's digest if it is due: inside
// the digest window in the tenant's timezone and not already sent
// since this week's Monday.
func (s *DigestService) SendWeeklyDigest(ctx context.Context, customer customers.Customer) error {
	now := s.now()
	if !followup.WithinOfficeHours(now, customer.Timezone, s.cfg.GetDigestHourStart(), s.cfg.GetDigestHourEnd()) {
		return nil
	}
	if customer.NotificationEmail == nil || *customer.NotificationEmail == "" {
		return nil
	}
	if customer.LastDigestSentAt != nil && !customer.LastDigestSentAt.Before(weekStart(tenantTime(now, customer.Timezone))) {
		return nil
	}

	report, err := s.reports.Report(ctx, customer.ID, 7*24*time.Hour)
	if err != nil {
		return err
	}

	content := s.generateContent(ctx, customer, report)
	to := *customer.NotificationEmail

	if err := s.email.SendWeeklyDigest(ctx, to, content.SubjectLine, content.HTMLBody); err != nil {
		if logErr := s.audit.LogFailed(ctx, customer.ID, nil, TypeWeeklyDigest, ChannelEmail, to, err.Error()); logErr != nil {
			s.log.DatabaseError("notification_log", logErr)
		}
		return err
	}
	if err := s.audit.LogSent(ctx, customer.ID, nil, TypeWeeklyDigest, ChannelEmail, to, content.SubjectLine, content.HTMLBody); err != nil {
		s.log.DatabaseError("notification_log", err)
	}
	return s.directory.SetLastDigestSentAt(ctx, customer.ID)
}

func (s *DigestService) generateContent(ctx context.Context, customer customers.Customer, report metrics.Report) digestContent {
	businessName := "Your Business"
	if customer.CompanyName != nil && *customer.CompanyName != "" {
		businessName = *customer.CompanyName
	}

	payload, err := json.Marshal(digestRequest{
		BusinessName: businessName,
		WeekStart:    report.WindowStart.Format("2006-01-02"),
		WeekEnd:      report.WindowEnd.Format("2006-01-02"),
		Metrics: digestMetrics{
			TotalLeads:       report.TotalLeads,
			QualifiedLeads:   report.QualifiedLeads,
			RecoveredLeads:   report.RecoveredLeads,
			EstimatedRevenue: report.RevenuePipeline,
			RecoveredRevenue: report.RecoveredRevenue,
			HoursSaved:       report.HoursSaved,
			TopService:       report.TopService,
			EmergenciesCount: report.EmergencyCount,
			JunkFiltered:     report.JunkCount,
			AICost:           report.AICost,
			ROIPercent:       report.ROI,
		},
		PendingHotLeads: report.PendingHotLeads,
	})
	if err != nil {
		return fallbackDigestContent()
	}

	var content digestContent
	err = s.gateway.CompleteJSON(ctx, ai.TierCapable, ai.Request{
		System:    digestSystemPrompt,
		Messages:  []ai.Message{{Role: ai.RoleUser, Content: string(payload)}},
		MaxTokens: 2048,
		ForceJSON: true,
	}, &content)
	if err != nil {
		s.log.Warn("digest_generation_failed", "customer_id", customer.ID.String(), "error", err.Error())
		return fallbackDigestContent()
	}
	if content.SubjectLine == "" || content.HTMLBody == "" {
		return fallbackDigestContent()
	}
	return content
}

// tenantTime converts an instant into the tenant's timezone so week
// boundaries land on the tenant's Monday, not the server's. An unknown
// timezone falls back to the server clock.
func tenantTime(t time.Time, timezone string) time.Time {
	if timezone == "" {
		timezone = "America/Chicago"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return t
	}
	return t.In(loc)
}

// weekStart is midnight on the Monday of the week containing t.
func weekStart(t time.Time) time.Time {
	day := t.Weekday()
	diff := int(day - time.Monday)
	if day == time.Sunday {
		diff = 6
	}
	monday := t.AddDate(0, 0, -diff)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
}
