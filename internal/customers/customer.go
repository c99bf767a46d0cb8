// Package customers holds the tenant model and its persistence. Every other
// bounded context partitions its data by customer id.
package customers

import (
	"time"

	"github.com/google/uuid"

	"leadpilot_backend/internal/conversation/estimate"
)

// PartnerReferral is the optional out-of-area referral configuration.
type PartnerReferral struct {
	PartnerName  string `json:"partner_name"`
	PartnerEmail string `json:"partner_email,omitempty"`
	PartnerPhone string `json:"partner_phone,omitempty"`
}

// BusinessInfo describes what the tenant does and where.
type BusinessInfo struct {
	Services        []string         `json:"services,omitempty"`
	ServiceArea     string           `json:"service_area,omitempty"`
	PartnerReferral *PartnerReferral `json:"partner_referral_info,omitempty"`
}

// AIPrompts carries per-tenant prompt customization.
type AIPrompts struct {
	SystemPrompt string `json:"system_prompt,omitempty"`
	Greeting     string `json:"greeting,omitempty"`
}

// PricingRules maps a service type to its rate card entry.
type PricingRules map[string]estimate.PricingRule

// Customer is one tenant of the platform.
type Customer struct {
	ID          uuid.UUID
	Email       string
	APIKey      string
	CompanyName *string
	Timezone    string

	BusinessInfo BusinessInfo
	PricingRules PricingRules
	AIPrompts    AIPrompts

	NotificationEmail   *string
	NotificationPhone   *string
	AlertOnHotLead      bool
	WeeklyDigestEnabled bool
	LastDigestSentAt    *time.Time

	RateLimitMessagesPerSession int
	IsActive                    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PricingRuleFor returns the rate card entry for a service type.
func (c *Customer) PricingRuleFor(serviceType string) (estimate.PricingRule, bool) {
	rule, ok := c.PricingRules[serviceType]
	return rule, ok
}

// HasAlertChannel reports whether any hot-lead alert recipient is set.
func (c *Customer) HasAlertChannel() bool {
	return c.NotificationEmail != nil || c.NotificationPhone != nil
}
