package delivery

import (
	"context"
	"sync"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/anonto42/nano-midea/notifications/internal/realtime"
	"github.com/anonto42/nano-midea/notifications/pkg/config"
	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// Publisher emits real-time payloads on a named channel
type Publisher interface {
	Publish(channel string, payload interface{})
}

// PushSender sends one mobile push. *messaging.Client satisfies it.
type PushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// TokenStore looks up and prunes push tokens. GetToken returns "" when the user has none.
type TokenStore interface {
	GetToken(ctx context.Context, userID string) (string, error)
	DeleteToken(ctx context.Context, token string) error
}

// Delivery is one receiver's share of a notification
type Delivery struct {
	ReceiverID string
	SenderID   string
	Type       models.NotificationType
	Refs       models.TargetRefs
	Title      string
	Body       string
	// RealtimeOnly skips the mobile push, used when a reaction is undone
	RealtimeOnly bool
}

// Fanout delivers notifications to the real-time hub and to FCM. Failures are
// logged per receiver and never surface to the caller.
type Fanout struct {
	publisher Publisher
	sender    PushSender
	tokens    TokenStore
	pool      *workerpool.WorkerPool
	limiter   *rate.Limiter
	chunkSize int
	pause     time.Duration
	sleep     func(time.Duration)
	staleErr  func(error) bool
	log       zerolog.Logger
}

type Option func(*Fanout)

// WithSleep replaces the pause between bulk chunks
func WithSleep(sleep func(time.Duration)) Option {
	return func(f *Fanout) { f.sleep = sleep }
}

// NewFanout builds the fan-out. sender may be nil, which disables mobile push.
func NewFanout(publisher Publisher, sender PushSender, tokens TokenStore, cfg config.DeliveryConfig, log zerolog.Logger, opts ...Option) *Fanout {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = 100
	}
	limit := rate.Inf
	burst := 1
	if cfg.PushRatePerSecond > 0 {
		limit = rate.Limit(cfg.PushRatePerSecond)
		burst = cfg.PushRatePerSecond
	}
	f := &Fanout{
		publisher: publisher,
		sender:    sender,
		tokens:    tokens,
		pool:      workerpool.New(workers),
		limiter:   rate.NewLimiter(limit, burst),
		chunkSize: chunk,
		pause:     cfg.ChunkPause,
		sleep:     time.Sleep,
		staleErr:  messaging.IsUnregistered,
		log:       log.With().Str("component", "delivery").Logger(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Deliver sends to a single receiver and waits for it to finish
func (f *Fanout) Deliver(ctx context.Context, d Delivery) {
	f.pool.SubmitWait(func() { f.deliverOne(ctx, d) })
}

// DeliverMany sends in chunks. Each chunk is fully dispatched before the next one
// starts, with a short pause in between.
func (f *Fanout) DeliverMany(ctx context.Context, ds []Delivery) {
	chunks := lo.Chunk(ds, f.chunkSize)
	for i, chunk := range chunks {
		var wg sync.WaitGroup
		for _, d := range chunk {
			d := d
			wg.Add(1)
			f.pool.Submit(func() {
				defer wg.Done()
				f.deliverOne(ctx, d)
			})
		}
		wg.Wait()

		if i < len(chunks)-1 && f.pause > 0 {
			f.sleep(f.pause)
		}
	}
	f.log.Debug().Int("receivers", len(ds)).Int("chunks", len(chunks)).Msg("bulk delivery done")
}

// Close waits for queued deliveries and stops the workers
func (f *Fanout) Close() {
	f.pool.StopWait()
}

func (f *Fanout) deliverOne(ctx context.Context, d Delivery) {
	log := f.log.With().Str("receiver_id", d.ReceiverID).Str("type", string(d.Type)).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("delivery panicked")
		}
	}()

	f.publisher.Publish(realtime.ChannelFor(d.ReceiverID), map[string]string{"type": string(d.Type)})

	if d.RealtimeOnly || f.sender == nil {
		return
	}
	token, err := f.tokens.GetToken(ctx, d.ReceiverID)
	if err != nil {
		log.Warn().Err(err).Msg("push token lookup failed")
		return
	}
	if token == "" {
		return
	}
	if err := f.limiter.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("push rate limiter aborted")
		return
	}

	if _, err := f.sender.Send(ctx, pushMessage(token, d)); err != nil {
		if f.staleErr(err) {
			if derr := f.tokens.DeleteToken(ctx, token); derr != nil {
				log.Error().Err(derr).Msg("failed to delete stale push token")
			} else {
				log.Info().Msg("deleted stale push token")
			}
			return
		}
		log.Warn().Err(err).Msg("push send failed")
	}
}

func pushMessage(token string, d Delivery) *messaging.Message {
	data := d.Refs.Map()
	data["sender_id"] = d.SenderID
	data["receiverId"] = d.ReceiverID
	data["type"] = string(d.Type)
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: d.Title,
			Body:  d.Body,
		},
		Data: data,
	}
}
