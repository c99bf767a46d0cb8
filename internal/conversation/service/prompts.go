package service

import (
	"encoding/json"
	"strings"

	"leadpilot_backend/internal/conversation/domain"
	"leadpilot_backend/internal/conversation/estimate"
	"leadpilot_backend/internal/customers"
)

const defaultClassifierPrompt = "You are a helpful assistant for a contracting company that specializes in home services."

// classificationResponse is the schema the fast tier must produce.
type classificationResponse struct {
	Classification domain.Classification `json:"classification"`
	ReplyMessage   string                `json:"reply_message"`
	IsQualified    bool                  `json:"is_qualified"`
	MissingInfo    []string              `json:"missing_info"`
}

// quoteReplyResponse is the schema the capable tier must produce. The
// numbers are computed before the call; the model only writes around them.
type quoteReplyResponse struct {
	ReplyMessage string `json:"reply_message"`
}

func buildClassificationSystemPrompt(customer customers.Customer) string {
	base := customer.AIPrompts.SystemPrompt
	if base == "" {
		base = defaultClassifierPrompt
	}
	serviceArea := customer.BusinessInfo.ServiceArea
	if serviceArea == "" {
		serviceArea = "Not specified"
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nAvailable services: ")
	b.WriteString(strings.Join(customer.BusinessInfo.Services, ", "))
	b.WriteString("\nService area: ")
	b.WriteString(serviceArea)
	b.WriteString(`

Your job is to:
1. Classify the visitor's service request
2. Determine urgency (low, medium, high) and an urgency_score (0.0 to 1.0)
3. Assess your confidence in the classification (0.0 to 1.0)
4. Determine if the lead is qualified (has enough info for a quote)
5. Determine if the visitor's location is outside the service area
6. Identify any missing information needed
7. Provide a helpful reply

CRITICAL RULES:
- NEVER invent prices or services not listed above
- If confidence < 0.6, ask clarifying questions instead of guessing
- Be concise and professional
- If the service requested is not in the available services list, set service_type to "other" and ask for clarification
- You MUST respond with valid JSON only, no additional text`)
	return b.String()
}

func buildClassificationUserPrompt(history []domain.Message, lead domain.Lead, currentMessage string) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, msg := range history {
			if msg.Sender == domain.SenderVisitor {
				b.WriteString("Visitor: ")
			} else {
				b.WriteString("You: ")
			}
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if lead.VisitorName != nil || lead.VisitorEmail != nil || lead.VisitorPhone != nil {
		b.WriteString("Visitor information:\n")
		if lead.VisitorName != nil {
			b.WriteString("Name: " + *lead.VisitorName + "\n")
		}
		if lead.VisitorEmail != nil {
			b.WriteString("Email: " + *lead.VisitorEmail + "\n")
		}
		if lead.VisitorPhone != nil {
			b.WriteString("Phone: " + *lead.VisitorPhone + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Current visitor message: " + currentMessage + "\n\n")
	b.WriteString(`Respond with a JSON object in this exact structure:
{
  "classification": {
    "service_type": "string",
    "urgency": "low" | "medium" | "high",
    "urgency_score": 0.0 to 1.0,
    "confidence": 0.0 to 1.0,
    "out_of_area": boolean,
    "location": "string or empty"
  },
  "reply_message": "string",
  "is_qualified": boolean,
  "missing_info": ["string"]
}`)
	return b.String()
}

func buildQuoteReplySystemPrompt(customer customers.Customer) string {
	base := customer.AIPrompts.SystemPrompt
	if base == "" {
		base = "You are a helpful assistant for a contracting company."
	}
	return base + `

You will be given an already-calculated, non-binding price range. Your job is
to write the customer-facing reply around it.

CRITICAL RULES:
- Use the provided range EXACTLY as given. Never recalculate, change, or
  invent numbers.
- Start with "Based on [dimensions], my rough estimate for [service] is between [range]."
- Mention what's included (base fee, materials, labor).
- End with a clear call to action: "Would you like to schedule an on-site visit to finalize this?"
- Mention that this is an estimate and a site visit is required for a final quote.
- Keep it conversational and professional.
- You MUST respond with valid JSON only, no additional text`
}

func buildQuoteReplyUserPrompt(history []domain.Message, c domain.Classification, q domain.Quote, rule estimate.PricingRule) string {
	var b strings.Builder

	b.WriteString("Conversation history:\n")
	for _, msg := range history {
		if msg.Sender == domain.SenderVisitor {
			b.WriteString("Visitor: ")
		} else {
			b.WriteString("You: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	b.WriteString("\nClassified service: " + c.ServiceType + "\n")
	b.WriteString("Urgency: " + c.Urgency + "\n")

	calculated := struct {
		EstimatedRange string                 `json:"estimated_range"`
		Breakdown      *domain.QuoteBreakdown `json:"breakdown"`
		Rule           estimate.PricingRule   `json:"pricing_rule"`
	}{q.EstimatedRange, q.Breakdown, rule}
	payload, _ := json.Marshal(calculated)
	b.WriteString("\nCalculated estimate (authoritative, do not alter):\n")
	b.Write(payload)

	b.WriteString(`

Respond with a JSON object in this exact structure:
{
  "reply_message": "string"
}`)
	return b.String()
}
