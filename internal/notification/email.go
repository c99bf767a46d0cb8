package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title   string
	Heading string
}

type hotLeadEmailData struct {
	baseEmailData
	Body string
}

type digestEmailData struct {
	baseEmailData
	HTMLBody template.HTML
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// EmailSender delivers rendered notification emails.
type EmailSender interface {
	SendHotLeadAlert(ctx context.Context, toEmail, subject, body string) error
	SendWeeklyDigest(ctx context.Context, toEmail, subject, htmlBody string) error
}

// SMTPSender delivers via a direct SMTP connection using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendHotLeadAlert(ctx context.Context, toEmail, subject, body string) error {
	content, err := renderEmailTemplate("hot_lead.html", hotLeadEmailData{
		baseEmailData: baseEmailData{Title: subject, Heading: subject},
		Body:          body,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendWeeklyDigest(ctx context.Context, toEmail, subject, htmlBody string) error {
	content, err := renderEmailTemplate("digest.html", digestEmailData{
		baseEmailData: baseEmailData{Title: subject, Heading: subject},
		HTMLBody:      template.HTML(htmlBody),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

// LogEmailSender writes emails to the log. Used when SMTP is disabled.
type LogEmailSender struct {
	log *logger.Logger
}

func NewLogEmailSender(log *logger.Logger) *LogEmailSender {
	return &LogEmailSender{log: log}
}

func (s *LogEmailSender) SendHotLeadAlert(_ context.Context, toEmail, subject, _ string) error {
	s.log.Info("email_logged", "type", TypeHotLeadEmail, "to", toEmail, "subject", subject)
	return nil
}

func (s *LogEmailSender) SendWeeklyDigest(_ context.Context, toEmail, subject, _ string) error {
	s.log.Info("email_logged", "type", TypeWeeklyDigest, "to", toEmail, "subject", subject)
	return nil
}

// NewEmailSender picks SMTP when configured, otherwise the logging
// fallback.
func NewEmailSender(cfg config.EmailConfig, log *logger.Logger) EmailSender {
	if cfg.GetEmailEnabled() && cfg.GetSMTPHost() != "" {
		return NewSMTPSender(cfg)
	}
	return NewLogEmailSender(log)
}
