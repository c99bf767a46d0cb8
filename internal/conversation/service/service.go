// Package service implements the conversation turn engine: classification,
// qualification, quoting, referral, and termination for one visitor message.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"leadpilot_backend/internal/ai"
	"leadpilot_backend/internal/conversation/domain"
	"leadpilot_backend/internal/conversation/estimate"
	"leadpilot_backend/internal/customers"
	"leadpilot_backend/internal/events"
	"leadpilot_backend/internal/security"
	"leadpilot_backend/platform/apperr"
	"leadpilot_backend/platform/logger"
	"leadpilot_backend/platform/phone"
	"leadpilot_backend/platform/sanitize"
)

const (
	modelIDFast    = "fast"
	modelIDCapable = "capable"

	historyLimit = domain.MaxMessagesPerSession
)

// replyNoPricingRule degrades the quoting branch when the tenant has no
// rate card entry for the classified service.
const replyNoPricingRule = "We don't have pricing information for that service. Please contact us directly."

// LeadStore is the persistence surface the turn engine needs.
type LeadStore interface {
	GetOrCreate(ctx context.Context, customerID uuid.UUID, sessionID string) (domain.Lead, error)
	GetByID(ctx context.Context, leadID uuid.UUID) (domain.Lead, error)
	AppendMessage(ctx context.Context, leadID uuid.UUID, sender, content string, modelID *string, confidence *float64) (domain.Message, error)
	History(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.Message, error)
	UpdateClassification(ctx context.Context, leadID uuid.UUID, c domain.Classification) error
	SaveQuote(ctx context.Context, leadID uuid.UUID, q domain.Quote) error
	SetNeedsReview(ctx context.Context, leadID uuid.UUID) error
	UpdateVisitorInfo(ctx context.Context, leadID uuid.UUID, info domain.VisitorInfo) error
	MarkOutOfArea(ctx context.Context, leadID uuid.UUID) error
	MarkReferralSent(ctx context.Context, leadID uuid.UUID) (bool, error)
}

// Gateway is the slice of the model gateway the turn engine uses.
type Gateway interface {
	CompleteJSON(ctx context.Context, tier ai.Tier, req ai.Request, v any) error
}

// NotificationLog records referral hand-offs for the audit trail.
type NotificationLog interface {
	LogReferral(ctx context.Context, customerID, leadID uuid.UUID, recipient, content string) error
}

// TurnRequest is one inbound widget message.
type TurnRequest struct {
	SessionID string
	Message   string
	Visitor   domain.VisitorInfo
}

type Service struct {
	store    LeadStore
	gateway  Gateway
	filter   *security.Filter
	bus      events.Bus
	alerts   NotificationLog
	log      *logger.Logger
	sessions *sessionLocks
}

func New(store LeadStore, gateway Gateway, filter *security.Filter, bus events.Bus, alerts NotificationLog, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		gateway:  gateway,
		filter:   filter,
		bus:      bus,
		alerts:   alerts,
		log:      log,
		sessions: newSessionLocks(),
	}
}

// ProcessMessage runs the full turn algorithm for one visitor message.
// It never returns a visitor-visible error: every failure mode degrades to
// a fixed reply inside the outcome.
func (s *Service) ProcessMessage(ctx context.Context, customer customers.Customer, req TurnRequest) (outcome domain.TurnOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("turn_panic", "customer_id", customer.ID.String(), "session_id", req.SessionID, "panic", fmt.Sprint(r))
			outcome = domain.ErroredOutcome(uuid.Nil)
			err = nil
		}
	}()

	verdict := s.filter.Screen(req.Message)
	if !verdict.Passed {
		s.log.SecurityEvent("message_blocked", customer.ID.String(), verdict.Reason)
		s.bus.Publish(ctx, events.ConversationBlocked{
			BaseEvent:  events.NewBaseEvent(),
			CustomerID: customer.ID,
			SessionID:  req.SessionID,
			Reason:     verdict.Reason,
		})
		return domain.SecurityBlockedOutcome(uuid.Nil), nil
	}

	message := sanitize.Text(req.Message)

	key := customer.ID.String() + ":" + req.SessionID
	s.sessions.Lock(key)
	defer s.sessions.Unlock(key)

	lead, err := s.store.GetOrCreate(ctx, customer.ID, req.SessionID)
	if err != nil {
		s.log.DatabaseError("conversation.GetOrCreate", err)
		return domain.ErroredOutcome(uuid.Nil), nil
	}
	if lead.CustomerID != customer.ID {
		s.log.SecurityEvent("cross_tenant_access", customer.ID.String(), "lead "+lead.ID.String())
		return domain.TurnOutcome{}, apperr.Forbidden("unauthorized lead access")
	}

	if lead.MessageCount == 0 {
		s.bus.Publish(ctx, events.LeadCaptured{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     lead.ID,
			CustomerID: customer.ID,
			SessionID:  req.SessionID,
		})
	}

	if lead.MessageCount >= domain.MaxMessagesPerSession {
		return domain.MaxMessagesOutcome(lead.ID), nil
	}
	if lead.IsQualified {
		return domain.AlreadyQualifiedOutcome(lead.ID), nil
	}

	if _, err := s.store.AppendMessage(ctx, lead.ID, domain.SenderVisitor, message, nil, nil); err != nil {
		s.log.DatabaseError("conversation.AppendMessage", err)
		return domain.ErroredOutcome(lead.ID), nil
	}

	history, err := s.store.History(ctx, lead.ID, historyLimit)
	if err != nil {
		s.log.DatabaseError("conversation.History", err)
		return domain.ErroredOutcome(lead.ID), nil
	}
	// The visitor message just stored is the current turn, not prior context.
	if n := len(history); n > 0 {
		history = history[:n-1]
	}

	mergeVisitorInfo(&lead, req.Visitor)

	cls, reply := s.classify(ctx, customer, lead, history, message)
	if cls.IsFallback() {
		if err := s.store.SetNeedsReview(ctx, lead.ID); err != nil {
			s.log.DatabaseError("conversation.SetNeedsReview", err)
		}
	}

	outcome = s.resolveTurn(ctx, customer, lead, history, message, cls, reply)

	if err := s.store.UpdateVisitorInfo(ctx, lead.ID, normalizeVisitor(req.Visitor)); err != nil {
		s.log.DatabaseError("conversation.UpdateVisitorInfo", err)
	}

	modelID := modelIDFast
	if outcome.Kind == domain.OutcomeQuoted {
		modelID = modelIDCapable
	}
	confidence := cls.Confidence
	if _, err := s.store.AppendMessage(ctx, lead.ID, domain.SenderAssistant, outcome.Reply, &modelID, &confidence); err != nil {
		s.log.DatabaseError("conversation.AppendMessage", err)
	}

	return outcome, nil
}

// classify invokes the fast tier and degrades to the fixed fallback
// classification when every provider is exhausted.
func (s *Service) classify(ctx context.Context, customer customers.Customer, lead domain.Lead, history []domain.Message, message string) (domain.Classification, string) {
	var resp classificationResponse
	err := s.gateway.CompleteJSON(ctx, ai.TierFast, ai.Request{
		System:      buildClassificationSystemPrompt(customer),
		Messages:    []ai.Message{{Role: ai.RoleUser, Content: buildClassificationUserPrompt(history, lead, message)}},
		Temperature: 0.3,
		MaxTokens:   800,
	}, &resp)
	if err != nil {
		s.log.Warn("classification_fallback", "lead_id", lead.ID.String(), "error", err.Error())
		return domain.FallbackClassification(), domain.ReplyClassificationFallback
	}

	cls := resp.Classification
	cls.IsQualified = resp.IsQualified
	cls.MissingInfo = resp.MissingInfo
	return cls, resp.ReplyMessage
}

// resolveTurn runs the referral and quoting branches after classification
// and persists the resulting lead state.
func (s *Service) resolveTurn(ctx context.Context, customer customers.Customer, lead domain.Lead, history []domain.Message, message string, cls domain.Classification, reply string) domain.TurnOutcome {
	if cls.IsOutOfArea && customer.BusinessInfo.PartnerReferral != nil {
		return s.referOut(ctx, customer, lead, cls)
	}

	if !cls.ShouldQuote() {
		if err := s.store.UpdateClassification(ctx, lead.ID, cls); err != nil {
			s.log.DatabaseError("conversation.UpdateClassification", err)
		}
		return domain.AskInfoOutcome(lead.ID, cls, reply)
	}

	quote, quoteReply, err := s.generateQuote(ctx, customer, lead, history, message, cls)
	if err != nil {
		// Quote failure falls back to the classification reply and keeps
		// the conversation open for another attempt.
		s.log.Warn("quote_failed", "lead_id", lead.ID.String(), "error", err.Error())
		if dbErr := s.store.SetNeedsReview(ctx, lead.ID); dbErr != nil {
			s.log.DatabaseError("conversation.SetNeedsReview", dbErr)
		}
		if dbErr := s.store.UpdateClassification(ctx, lead.ID, cls); dbErr != nil {
			s.log.DatabaseError("conversation.UpdateClassification", dbErr)
		}
		fallbackReply := reply
		if errors.Is(err, estimate.ErrNoPricingRule) {
			fallbackReply = replyNoPricingRule
		}
		return domain.AskInfoOutcome(lead.ID, cls, fallbackReply)
	}

	if err := s.store.UpdateClassification(ctx, lead.ID, cls); err != nil {
		s.log.DatabaseError("conversation.UpdateClassification", err)
	}
	if err := s.store.SaveQuote(ctx, lead.ID, quote); err != nil {
		s.log.DatabaseError("conversation.SaveQuote", err)
		return domain.ErroredOutcome(lead.ID)
	}

	s.bus.Publish(ctx, events.LeadQualified{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		CustomerID:  customer.ID,
		ServiceType: cls.ServiceType,
		Urgency:     cls.UrgencyScore,
		QuoteLow:    quote.Low,
		QuoteHigh:   quote.High,
	})

	s.checkHotLead(ctx, customer, lead, cls, quote)

	return domain.QuotedOutcome(lead.ID, cls, quote, quoteReply)
}

// referOut handles the out-of-area branch: the conversation stays open so
// the visitor can accept or decline the partner hand-off.
func (s *Service) referOut(ctx context.Context, customer customers.Customer, lead domain.Lead, cls domain.Classification) domain.TurnOutcome {
	if err := s.store.MarkOutOfArea(ctx, lead.ID); err != nil {
		s.log.DatabaseError("conversation.MarkOutOfArea", err)
	}
	if err := s.store.UpdateClassification(ctx, lead.ID, cls); err != nil {
		s.log.DatabaseError("conversation.UpdateClassification", err)
	}

	visitorName := ""
	if lead.VisitorName != nil {
		visitorName = *lead.VisitorName
	}
	partner := customer.BusinessInfo.PartnerReferral
	reply := domain.ReferralOffer(visitorName, cls.Location, partner.PartnerName, cls.ServiceType)
	return domain.ReferredOutcome(lead.ID, cls, reply)
}

// generateQuote computes the estimate deterministically and asks the
// capable tier only for the customer-facing wording.
func (s *Service) generateQuote(ctx context.Context, customer customers.Customer, lead domain.Lead, history []domain.Message, message string, cls domain.Classification) (domain.Quote, string, error) {
	rule, ok := customer.PricingRuleFor(cls.ServiceType)
	if !ok {
		return domain.Quote{}, "", estimate.ErrNoPricingRule
	}

	dims := estimate.ValidateDimensions(conversationText(history, message))
	unitValue, measured := dims.Area()
	if !measured || rule.Unit == estimate.UnitFlatRate {
		// No usable measurement; quote a generic range from the rate card.
		unitValue = estimate.NominalUnitValue(rule)
	}

	quote, err := estimate.Compute(rule, unitValue)
	if err != nil {
		return domain.Quote{}, "", err
	}

	var resp quoteReplyResponse
	err = s.gateway.CompleteJSON(ctx, ai.TierCapable, ai.Request{
		System:    buildQuoteReplySystemPrompt(customer),
		Messages:  []ai.Message{{Role: ai.RoleUser, Content: buildQuoteReplyUserPrompt(history, cls, quote, rule)}},
		MaxTokens: 1024,
	}, &resp)
	if err != nil {
		return domain.Quote{}, "", err
	}

	// A stated-vs-computed area conflict is acknowledged, never silently
	// corrected.
	reply := dims.CorrectionMessage() + resp.ReplyMessage
	return quote, reply, nil
}

// checkHotLead raises an owner alert after a successful quote when urgency
// crosses the threshold. Alerting never fails the turn.
func (s *Service) checkHotLead(ctx context.Context, customer customers.Customer, lead domain.Lead, cls domain.Classification, quote domain.Quote) {
	if cls.UrgencyScore < domain.HotLeadThreshold {
		return
	}

	visitorName := "Someone"
	if lead.VisitorName != nil {
		visitorName = *lead.VisitorName
	}
	serviceType := cls.ServiceType
	if serviceType == "" {
		serviceType = "service request"
	}

	s.bus.Publish(ctx, events.HotLeadDetected{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		CustomerID:     customer.ID,
		VisitorName:    visitorName,
		ServiceType:    serviceType,
		Severity:       domain.SeverityFor(cls.UrgencyScore),
		UrgencyScore:   cls.UrgencyScore,
		EstimatedValue: int(quote.High),
	})
}

// ConfirmReferral marks the partner hand-off accepted and logs it. The
// conditional update makes repeated confirmations idempotent.
func (s *Service) ConfirmReferral(ctx context.Context, customer customers.Customer, leadID uuid.UUID) (string, error) {
	lead, err := s.store.GetByID(ctx, leadID)
	if err != nil {
		return "", apperr.NotFound("lead not found")
	}
	if lead.CustomerID != customer.ID {
		s.log.SecurityEvent("cross_tenant_access", customer.ID.String(), "lead "+leadID.String())
		return "", apperr.Forbidden("unauthorized lead access")
	}

	partner := customer.BusinessInfo.PartnerReferral
	if partner == nil {
		return "", apperr.Conflict("partner referral info not configured")
	}

	updated, err := s.store.MarkReferralSent(ctx, leadID)
	if err != nil {
		s.log.DatabaseError("conversation.MarkReferralSent", err)
		return "", apperr.Internal("failed to send referral")
	}

	if updated && s.alerts != nil {
		visitorName := "visitor"
		if lead.VisitorName != nil {
			visitorName = *lead.VisitorName
		}
		serviceType := ""
		if lead.Classification != nil {
			serviceType = lead.Classification.ServiceType
		}
		recipient := partner.PartnerEmail
		if recipient == "" {
			recipient = partner.PartnerPhone
		}
		content := fmt.Sprintf("Referral for %s - %s", visitorName, serviceType)
		if err := s.alerts.LogReferral(ctx, customer.ID, leadID, recipient, content); err != nil {
			s.log.Error("referral_log_failed", "lead_id", leadID.String(), "error", err.Error())
		}
	}

	return fmt.Sprintf(domain.ReplyReferralConfirmed, partner.PartnerName), nil
}

// mergeVisitorInfo overlays fields supplied this turn onto the lead copy
// used for prompt building.
func mergeVisitorInfo(lead *domain.Lead, info domain.VisitorInfo) {
	if info.Name != nil {
		lead.VisitorName = info.Name
	}
	if info.Email != nil {
		lead.VisitorEmail = info.Email
	}
	if info.Phone != nil {
		lead.VisitorPhone = info.Phone
	}
	if info.Address != nil {
		lead.VisitorAddress = info.Address
	}
}

// normalizeVisitor sanitizes free-text fields and normalizes the phone
// number to E.164 before persistence.
func normalizeVisitor(info domain.VisitorInfo) domain.VisitorInfo {
	out := domain.VisitorInfo{
		Name:    sanitize.TextPtr(info.Name),
		Email:   sanitize.TextPtr(info.Email),
		Address: sanitize.TextPtr(info.Address),
	}
	if info.Phone != nil {
		normalized := phone.NormalizeE164(*info.Phone)
		if normalized != "" {
			out.Phone = &normalized
		}
	}
	return out
}

// conversationText flattens visitor turns plus the current message for
// dimension extraction.
func conversationText(history []domain.Message, current string) string {
	var b strings.Builder
	for _, msg := range history {
		if msg.Sender == domain.SenderVisitor {
			b.WriteString(msg.Content)
			b.WriteString(" ")
		}
	}
	b.WriteString(current)
	return b.String()
}
