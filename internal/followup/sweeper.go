package followup

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadpilot_backend/internal/conversation/domain"
	"leadpilot_backend/internal/events"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/logger"
)

// dimensionalServices are the service types that cannot be quoted
// without an area, so the sweep may still ask for dimensions.
var dimensionalServices = map[string]bool{
	"deck_repair":   true,
	"fence_install": true,
	"roofing":       true,
	"flooring":      true,
}

// SweepStore is the persistence surface one sweep needs.
type SweepStore interface {
	SweepCandidates(ctx context.Context, oldest, newest time.Time, limit int) ([]Candidate, error)
	LastMessage(ctx context.Context, leadID uuid.UUID) (domain.Message, bool, error)
	MarkStopped(ctx context.Context, leadID uuid.UUID) error
	MarkComplete(ctx context.Context, leadID uuid.UUID) error
	RecordNudge(ctx context.Context, leadID uuid.UUID, nudge Nudge) (bool, error)
}

// NudgeSource produces nudge copy for a stalled lead.
type NudgeSource interface {
	Generate(ctx context.Context, req NudgeRequest) Nudge
}

type sweepOutcome int

const (
	sweepSkipped sweepOutcome = iota
	sweepStopped
	sweepCompleted
	sweepNudged
)

// Sweeper runs the periodic abandoned-conversation pass.
type Sweeper struct {
	store  SweepStore
	nudges NudgeSource
	bus    events.Bus
	cfg    config.FollowUpConfig
	log    *logger.Logger
	now    func() time.Time
}

func NewSweeper(store SweepStore, nudges NudgeSource, bus events.Bus, cfg config.FollowUpConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		nudges: nudges,
		bus:    bus,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// SetNow overrides the clock. Tests only.
func (s *Sweeper) SetNow(now func() time.Time) { s.now = now }

// Sweep processes one batch of stalled leads. Per-lead failures are
// logged and skipped so one bad row cannot stall the whole batch.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now()
	candidates, err := s.store.SweepCandidates(ctx,
		now.Add(-s.cfg.GetSweepLookback()),
		now.Add(-s.cfg.GetAbandonAfter()),
		s.cfg.GetSweepBatchSize(),
	)
	if err != nil {
		s.log.DatabaseError("sweep_candidates", err)
		return err
	}

	var nudged, stopped, completed, skipped int
	for _, candidate := range candidates {
		outcome, err := s.processLead(ctx, now, candidate)
		if err != nil {
			s.log.Error("sweep_lead_failed", "lead_id", candidate.ID.String(), "error", err.Error())
			skipped++
			continue
		}
		switch outcome {
		case sweepNudged:
			nudged++
		case sweepStopped:
			stopped++
		case sweepCompleted:
			completed++
		default:
			skipped++
		}
	}

	s.log.SweepSummary(len(candidates), nudged, stopped, completed, skipped)
	return nil
}

func (s *Sweeper) processLead(ctx context.Context, now time.Time, candidate Candidate) (sweepOutcome, error) {
	if !WithinOfficeHours(now, candidate.Timezone, s.cfg.GetNudgeHourStart(), s.cfg.GetNudgeHourEnd()) {
		return sweepSkipped, nil
	}

	last, ok, err := s.store.LastMessage(ctx, candidate.ID)
	if err != nil {
		return sweepSkipped, err
	}
	if ok {
		if phrase, matched := MatchStopPhrase(last.Content); matched {
			if err := s.store.MarkStopped(ctx, candidate.ID); err != nil {
				return sweepSkipped, err
			}
			s.bus.Publish(ctx, events.LeadStopped{
				BaseEvent:  events.NewBaseEvent(),
				LeadID:     candidate.ID,
				CustomerID: candidate.CustomerID,
				Phrase:     phrase,
			})
			return sweepStopped, nil
		}
	}

	service := serviceType(candidate)
	if service == "" {
		// Without a service there is nothing useful to ask for.
		return sweepSkipped, nil
	}

	field := missingField(candidate, service)
	if field == "" {
		if err := s.store.MarkComplete(ctx, candidate.ID); err != nil {
			return sweepSkipped, err
		}
		return sweepCompleted, nil
	}

	businessName := "Our Company"
	if candidate.CompanyName != nil && *candidate.CompanyName != "" {
		businessName = *candidate.CompanyName
	}

	nudge := s.nudges.Generate(ctx, NudgeRequest{
		LeadDetails: LeadDetails{
			Name:             candidate.VisitorName,
			ServiceRequested: service,
			MissingField:     field,
			LastMessageAt:    candidate.UpdatedAt.UTC().Format(time.RFC3339),
		},
		BusinessInfo: BusinessInfo{Name: businessName},
	})

	sent, err := s.store.RecordNudge(ctx, candidate.ID, nudge)
	if err != nil {
		return sweepSkipped, err
	}
	if !sent {
		// Another sweep or a live turn got there first.
		return sweepSkipped, nil
	}

	s.bus.Publish(ctx, events.FollowUpNudgeSent{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     candidate.ID,
		CustomerID: candidate.CustomerID,
		Channel:    "chat",
		Body:       nudge.Message,
	})
	return sweepNudged, nil
}

func serviceType(candidate Candidate) string {
	if candidate.Classification == nil {
		return ""
	}
	st := candidate.Classification.ServiceType
	if st == "unknown" {
		return ""
	}
	return st
}

// missingField picks the single most important gap: phone, then
// address, then dimensions for services that price by area.
func missingField(candidate Candidate, service string) string {
	if candidate.VisitorPhone == nil || *candidate.VisitorPhone == "" {
		return MissingPhone
	}
	if candidate.VisitorAddress == nil || *candidate.VisitorAddress == "" {
		return MissingAddress
	}
	if dimensionalServices[service] && !candidate.HasDimensions() {
		return MissingDimensions
	}
	return ""
}
