package scheduler

import (
	"context"

	"github.com/hibiken/asynq"

	"leadpilot_backend/platform/config"
)

// Client enqueues background tasks from the API process.
type Client struct {
	client *asynq.Client
	queue  string
}

// AlertEnqueuer is the narrow surface the conversation side needs to
// hand off a hot-lead alert.
type AlertEnqueuer interface {
	EnqueueHotLeadAlert(ctx context.Context, payload HotLeadAlertPayload) error
}

func NewClient(cfg config.SchedulerConfig) *Client {
	return &Client{
		client: asynq.NewClient(redisClientOpt(cfg)),
		queue:  queueName(cfg),
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueHotLeadAlert(ctx context.Context, payload HotLeadAlertPayload) error {
	if c == nil || c.client == nil {
		return nil
	}
	task, err := NewHotLeadAlertTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(3))
	return err
}

func (c *Client) EnqueueFollowUpSweep(ctx context.Context) error {
	_, err := c.client.EnqueueContext(ctx, NewFollowUpSweepTask(), asynq.Queue(c.queue))
	return err
}

func (c *Client) EnqueueWeeklyDigest(ctx context.Context) error {
	_, err := c.client.EnqueueContext(ctx, NewWeeklyDigestTask(), asynq.Queue(c.queue))
	return err
}

func redisClientOpt(cfg config.SchedulerConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	}
}

func queueName(cfg config.SchedulerConfig) string {
	if q := cfg.GetQueueName(); q != "" {
		return q
	}
	return "default"
}
