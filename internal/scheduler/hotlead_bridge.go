package scheduler

import (
	"context"

	"leadpilot_backend/internal/events"
	"leadpilot_backend/platform/logger"
)

// NewHotLeadAlertBridge forwards in-process hot-lead detections onto
// the task queue so the worker binary delivers the alert. Enqueue
// failures are logged, never raised into the publishing turn.
func NewHotLeadAlertBridge(client AlertEnqueuer, log *logger.Logger) events.HandlerFunc {
	return func(ctx context.Context, e events.Event) error {
		detected, ok := e.(events.HotLeadDetected)
		if !ok {
			return nil
		}

		var visitorName *string
		if detected.VisitorName != "" {
			visitorName = &detected.VisitorName
		}

		err := client.EnqueueHotLeadAlert(ctx, HotLeadAlertPayload{
			LeadID:         detected.LeadID.String(),
			CustomerID:     detected.CustomerID.String(),
			UrgencyLevel:   detected.Severity,
			ServiceType:    detected.ServiceType,
			VisitorName:    visitorName,
			EstimatedValue: detected.EstimatedValue,
			UrgencyScore:   detected.UrgencyScore,
		})
		if err != nil {
			log.Error("hot_lead_enqueue_failed", "lead_id", detected.LeadID.String(), "error", err.Error())
		}
		return nil
	}
}
