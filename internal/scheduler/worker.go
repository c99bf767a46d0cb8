package scheduler

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"leadpilot_backend/internal/followup"
	"leadpilot_backend/internal/notification"
	"leadpilot_backend/platform/config"
	"leadpilot_backend/platform/logger"
)

// Worker consumes background tasks: hot-lead alert delivery, the Ghost
// Buster sweep, and the weekly digest run.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	dispatcher *notification.Dispatcher
	sweeper    *followup.Sweeper
	digests    *notification.DigestService
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, dispatcher *notification.Dispatcher, sweeper *followup.Sweeper, digests *notification.DigestService, log *logger.Logger) *Worker {
	concurrency := cfg.GetQueueConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(redisClientOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		digests:    digests,
		log:        log,
	}

	mux.HandleFunc(TaskHotLeadAlert, w.handleHotLeadAlert)
	mux.HandleFunc(TaskFollowUpSweep, w.handleFollowUpSweep)
	mux.HandleFunc(TaskWeeklyDigest, w.handleWeeklyDigest)

	return w
}

func (w *Worker) handleHotLeadAlert(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseHotLeadAlertPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}
	customerID, err := uuid.Parse(payload.CustomerID)
	if err != nil {
		return err
	}

	return w.dispatcher.SendHotLeadAlert(ctx, notification.HotLeadAlert{
		LeadID:         leadID,
		CustomerID:     customerID,
		UrgencyLevel:   payload.UrgencyLevel,
		ServiceType:    payload.ServiceType,
		VisitorName:    payload.VisitorName,
		EstimatedValue: payload.EstimatedValue,
		UrgencyScore:   payload.UrgencyScore,
	})
}

func (w *Worker) handleFollowUpSweep(ctx context.Context, _ *asynq.Task) error {
	return w.sweeper.Sweep(ctx)
}

func (w *Worker) handleWeeklyDigest(ctx context.Context, _ *asynq.Task) error {
	return w.digests.SendAllDigests(ctx)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
