package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/anonto42/nano-midea/notifications/pkg/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Handler routes a decoded event. A message is deleted only when the returned
// result is OK and err is nil.
type Handler interface {
	Handle(ctx context.Context, event models.Event) (models.Result, error)
}

// Status is a snapshot of the consumer for health reporting and the watchdog
type Status struct {
	Running                 bool      `json:"running"`
	StartedAt               time.Time `json:"startedAt,omitempty"`
	LastPollAt              time.Time `json:"lastPollAt,omitempty"`
	LastSuccessfulDequeueAt time.Time `json:"lastSuccessfulDequeueAt,omitempty"`
	Restarts                int       `json:"restarts"`
}

// ErrPollInFlight is returned by CheckNow while a scheduled poll holds the guard
var ErrPollInFlight = errors.New("poll already in flight")

const defaultStopWait = 5 * time.Second

// pollRun is one started instance of the poll loop. A restart builds a new one,
// so a tick stuck in the old run cannot hold the new run's guard.
type pollRun struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cron     *cron.Cron
	first    *time.Timer
	inFlight atomic.Bool
}

// Consumer polls the broker on a schedule and hands each message to the router
type Consumer struct {
	broker  Broker
	handler Handler
	cfg     config.QueueConfig
	now      func() time.Time
	stopWait time.Duration
	log      zerolog.Logger

	lifecycle sync.Mutex

	mu     sync.Mutex
	parent context.Context
	run    *pollRun
	status Status
}

type ConsumerOption func(*Consumer)

func WithConsumerClock(now func() time.Time) ConsumerOption {
	return func(c *Consumer) { c.now = now }
}

// WithStopWait bounds how long Stop and Restart wait for a running tick
func WithStopWait(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.stopWait = d }
}

func NewConsumer(broker Broker, handler Handler, cfg config.QueueConfig, log zerolog.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		broker:  broker,
		handler: handler,
		cfg:     cfg,
		now:      time.Now,
		stopWait: defaultStopWait,
		log:      log.With().Str("component", "queue_consumer").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start schedules the poll loop. It is a no-op when already running.
func (c *Consumer) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.current() != nil {
		return nil
	}
	c.mu.Lock()
	c.parent = ctx
	c.mu.Unlock()
	return c.startRun()
}

func (c *Consumer) startRun() error {
	c.mu.Lock()
	parent := c.parent
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(parent)
	run := &pollRun{ctx: runCtx, cancel: cancel, cron: cron.New()}

	spec := fmt.Sprintf("@every %s", c.cfg.PollInterval)
	if _, err := run.cron.AddFunc(spec, func() { c.tick(run) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule poll loop: %w", err)
	}
	run.cron.Start()
	run.first = time.AfterFunc(c.cfg.InitialDelay, func() { c.tick(run) })

	c.mu.Lock()
	c.run = run
	c.status.Running = true
	c.status.StartedAt = c.now()
	c.mu.Unlock()

	c.log.Info().
		Dur("interval", c.cfg.PollInterval).
		Int("batch_size", c.cfg.BatchSize).
		Msg("queue consumer started")
	return nil
}

// Stop cancels in-flight polls and waits a bounded time for scheduled ticks to return
func (c *Consumer) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stopRun()
}

func (c *Consumer) stopRun() {
	c.mu.Lock()
	run := c.run
	c.run = nil
	c.status.Running = false
	c.mu.Unlock()
	if run == nil {
		return
	}

	run.first.Stop()
	run.cancel()
	// ticks update status under c.mu, so wait without holding it
	wait := time.NewTimer(c.stopWait)
	defer wait.Stop()
	select {
	case <-run.cron.Stop().Done():
		c.log.Info().Msg("queue consumer stopped")
	case <-wait.C:
		c.log.Warn().Dur("waited", c.stopWait).Msg("poll tick did not return, abandoning run")
	}
}

// Restart replaces the poll loop with a fresh one
func (c *Consumer) Restart() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	started := c.parent != nil
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("consumer was never started")
	}

	c.stopRun()
	c.mu.Lock()
	c.status.Restarts++
	c.mu.Unlock()
	return c.startRun()
}

func (c *Consumer) current() *pollRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run
}

func (c *Consumer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Consumer) tick(run *pollRun) {
	if !run.inFlight.CompareAndSwap(false, true) {
		c.log.Debug().Msg("previous poll still in flight, skipping tick")
		return
	}
	defer run.inFlight.Store(false)

	if run.ctx.Err() != nil {
		return
	}
	if _, err := c.Poll(run.ctx, c.cfg.VisibilityTimeout); err != nil {
		c.log.Error().Err(err).Msg("poll failed")
	}
}

// CheckNow runs one ad-hoc poll with the short visibility timeout. While the
// loop is running it shares the run's guard with scheduled ticks.
func (c *Consumer) CheckNow(ctx context.Context) (int, error) {
	if run := c.current(); run != nil {
		if !run.inFlight.CompareAndSwap(false, true) {
			return 0, ErrPollInFlight
		}
		defer run.inFlight.Store(false)
	}
	return c.Poll(ctx, c.cfg.CheckVisibilityTimeout)
}

// Poll receives one batch and processes it sequentially. It returns the number
// of messages received. Per-message failures are logged, never returned.
func (c *Consumer) Poll(ctx context.Context, visibility time.Duration) (int, error) {
	msgs, err := c.broker.Receive(ctx, ReceiveOptions{
		MaxMessages:       c.cfg.BatchSize,
		WaitTime:          c.cfg.WaitTime,
		VisibilityTimeout: visibility,
	})

	c.mu.Lock()
	c.status.LastPollAt = c.now()
	if err == nil && len(msgs) > 0 {
		c.status.LastSuccessfulDequeueAt = c.status.LastPollAt
	}
	c.mu.Unlock()

	if err != nil {
		return 0, err
	}
	for _, msg := range msgs {
		c.process(ctx, msg)
	}
	return len(msgs), nil
}

func (c *Consumer) process(ctx context.Context, msg Message) {
	log := c.log.With().
		Str("message_id", msg.ID).
		Str("message_type", msg.Attributes[AttrMessageType]).
		Int("receive_count", msg.ReceiveCount).
		Logger()

	res, err := c.handle(ctx, msg)
	if err == nil && res.OK() {
		if err := c.broker.Delete(ctx, msg.ReceiptHandle); err != nil {
			log.Error().Err(err).Msg("handled message could not be deleted")
		}
		return
	}
	if err == nil {
		err = fmt.Errorf("handler produced no result")
	}

	if c.cfg.MaxReceives > 0 && msg.ReceiveCount >= c.cfg.MaxReceives {
		log.Error().Err(err).Str("body", string(msg.Body)).Msg("dead-lettering message after max receives")
		if derr := c.broker.Delete(ctx, msg.ReceiptHandle); derr != nil {
			log.Error().Err(derr).Msg("dead-lettered message could not be deleted")
		}
		return
	}
	log.Warn().Err(err).Msg("message left for redelivery")
}

func (c *Consumer) handle(ctx context.Context, msg Message) (res models.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	var event models.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return models.Result{}, fmt.Errorf("malformed event body: %w", models.ErrInvalidEvent)
	}
	return c.handler.Handle(ctx, event)
}
