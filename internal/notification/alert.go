// Package notification turns structured alerts and digests into
// channel-specific messages (SMS, email) and records every delivery
// attempt in an append-only log.
package notification

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// maxSMSLength is the single-segment SMS ceiling. Model output is
// truncated at 157 plus an ellipsis when it overshoots.
const maxSMSLength = 160

// HotLeadAlert is the structured payload behind an urgent-lead
// notification. Serialized as the user prompt for copy generation.
type HotLeadAlert struct {
	LeadID         uuid.UUID `json:"lead_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	UrgencyLevel   string    `json:"urgency_level"`
	ServiceType    string    `json:"service_type"`
	VisitorName    *string   `json:"visitor_name"`
	EstimatedValue int       `json:"estimated_value"`
	UrgencyScore   float64   `json:"urgency_score"`
}

// AlertMessage is the generated channel copy for one alert.
type AlertMessage struct {
	SMS          string `json:"sms"`
	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`
}

const alertSystemPrompt = `You are an Emergency Dispatcher. Generate an ultra-concise SMS/Push notification for a contractor.

RULES:
- SMS: Limit to 160 characters (SMS compatible).
- Format: [Urgency Emoji + Level] Service Type - Name - Estimated Value.
- Include a 'Call to Action' (e.g., 'Check dashboard' or 'Call now').

URGENCY EMOJIS:
- EMERGENCY: 🚨
- URGENT: 🔥
- HOT: ⚡

EXAMPLES:

🚨 EMERGENCY: Roofing for Lisa ($1,500). Active leak! Call now: 512-555-1234

🔥 URGENT: Deck Repair for Sarah ($1,200). Safety issue. View in Dashboard now.

⚡ HOT: Fence Install for Mike ($2,000). Ready to book. Check dashboard.

EMAIL:
- Subject: Concise, includes urgency and service
- Body: 2-3 sentences with call to action

Remember: SMS MUST be ≤160 characters. Be ultra-concise but informative.`

// truncateSMS enforces the single-segment ceiling.
func truncateSMS(s string) string {
	runes := []rune(s)
	if len(runes) <= maxSMSLength {
		return s
	}
	return string(runes[:maxSMSLength-3]) + "..."
}

// fallbackAlertMessage is the fixed copy used when generation fails.
func fallbackAlertMessage(alert HotLeadAlert) AlertMessage {
	name := "Customer"
	if alert.VisitorName != nil && *alert.VisitorName != "" {
		name = *alert.VisitorName
	}
	value := ""
	if alert.EstimatedValue > 0 {
		value = fmt.Sprintf(" ($%d)", alert.EstimatedValue)
	}
	return AlertMessage{
		SMS:          truncateSMS(fmt.Sprintf("🔥 %s: %s - %s%s. Check dashboard now.", alert.UrgencyLevel, alert.ServiceType, name, value)),
		EmailSubject: fmt.Sprintf("🔥 %s Lead: %s", alert.UrgencyLevel, alert.ServiceType),
		EmailBody: fmt.Sprintf("New %s lead: %s for %s. Estimated value: $%d. Check your dashboard to respond.",
			strings.ToLower(alert.UrgencyLevel), alert.ServiceType, name, alert.EstimatedValue),
	}
}
