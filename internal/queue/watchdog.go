package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Supervised is what the watchdog needs from a consumer
type Supervised interface {
	Status() Status
	Restart() error
}

// Watchdog restarts a running consumer whose poll loop has stopped making attempts
type Watchdog struct {
	target    Supervised
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	log       zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

type WatchdogOption func(*Watchdog)

func WithWatchdogClock(now func() time.Time) WatchdogOption {
	return func(w *Watchdog) { w.now = now }
}

func NewWatchdog(target Supervised, interval, threshold time.Duration, log zerolog.Logger, opts ...WatchdogOption) *Watchdog {
	w := &Watchdog{
		target:    target,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
		log:       log.With().Str("component", "queue_watchdog").Logger(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Watchdog) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", w.interval), func() { w.Check() }); err != nil {
		return fmt.Errorf("failed to schedule watchdog: %w", err)
	}
	c.Start()
	w.cron = c
	return nil
}

func (w *Watchdog) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Check restarts the target when it is running and its last poll attempt (or its
// start, if it never polled) is older than the stall threshold. An idle queue keeps
// polling and is never restarted. Reports whether a restart happened.
func (w *Watchdog) Check() bool {
	st := w.target.Status()
	if !st.Running {
		return false
	}
	last := st.LastPollAt
	if last.IsZero() || last.Before(st.StartedAt) {
		last = st.StartedAt
	}
	stalled := w.now().Sub(last)
	if stalled <= w.threshold {
		return false
	}

	w.log.Warn().
		Dur("since_last_poll", stalled).
		Time("last_successful_dequeue_at", st.LastSuccessfulDequeueAt).
		Msg("consumer stalled, restarting")
	if err := w.target.Restart(); err != nil {
		w.log.Error().Err(err).Msg("consumer restart failed")
		return false
	}
	return true
}
