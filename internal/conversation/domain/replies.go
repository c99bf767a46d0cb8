package domain

import "strings"

// Fixed visitor-facing replies. These exact strings are part of the widget
// contract and are asserted by tests.
const (
	ReplySecurityBlocked = "I'm sorry, but I can only help with questions about our services. If you have a genuine inquiry, please rephrase your message."

	ReplyMaxMessages = "Thanks for the detailed conversation! We've gathered all the information we need. One of our team members will reach out to you shortly to finalize the details."

	ReplyAlreadyQualified = "We've already captured your request! Our team will be in touch soon."

	ReplyTechnicalDifficulties = "I apologize, but I'm experiencing technical difficulties. Please try again in a moment, or feel free to call us directly if this is urgent."

	ReplyClassificationFallback = "Thanks for reaching out! We've received your message and will get back to you shortly."

	ReplyReferralConfirmed = "Perfect! I've sent your information to %s. They'll reach out to you soon!"
)

// ReferralOffer builds the out-of-area partner referral reply.
func ReferralOffer(visitorName, location, partnerName, serviceType string) string {
	greeting := "Hi! "
	if visitorName != "" {
		greeting = "Hi " + visitorName + "! "
	}
	if location == "" {
		location = "that area"
	}
	if partnerName == "" {
		partnerName = "a trusted partner"
	}
	if serviceType == "" {
		serviceType = "this service"
	} else {
		serviceType = strings.ReplaceAll(serviceType, "_", " ")
	}
	return greeting + "Unfortunately, we don't currently service " + location +
		", but I have some good news! Our partner, " + partnerName +
		", provides excellent " + serviceType +
		" in your area. Would you like me to send them your contact information so they can reach out with a quote? They're trusted professionals we work with regularly."
}

// FallbackClassification is returned when the fast tier is exhausted. The
// zero confidence marks it so downstream checks never quote from it.
func FallbackClassification() Classification {
	return Classification{
		ServiceType: "unknown",
		Urgency:     "medium",
		Confidence:  0,
		MissingInfo: []string{},
	}
}
