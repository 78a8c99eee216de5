package jobs

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/anonto42/nano-midea/notifications/pkg/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Client submits interaction events to the persistent job queue (Transport B)
type Client struct {
	client *asynq.Client
	opts   []asynq.Option
	log    zerolog.Logger
}

func NewClient(cfg config.JobsConfig, log zerolog.Logger) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt(cfg)),
		opts:   enqueueOptions(cfg),
		log:    log.With().Str("component", "jobs_client").Logger(),
	}
}

func enqueueOptions(cfg config.JobsConfig) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueName),
		asynq.MaxRetry(cfg.MaxRetry),
		asynq.Retention(cfg.Retention),
	}
}

func redisOpt(cfg config.JobsConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
}

// SubmitEvent enqueues event under its per-type job name
func (c *Client) SubmitEvent(ctx context.Context, event models.Event) error {
	task, err := NewEventTask(event)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task, c.opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	c.log.Debug().Str("task_id", info.ID).Str("task", task.Type()).Msg("job enqueued")
	return nil
}

// SubmitEventBatch enqueues each event as its own job
func (c *Client) SubmitEventBatch(ctx context.Context, events []models.Event) error {
	for i, ev := range events {
		if err := c.SubmitEvent(ctx, ev); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
