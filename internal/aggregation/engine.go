package aggregation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultMaxAttempts = 5

// Store is the subset of the notification repository the engine needs
type Store interface {
	FindByMergeKey(ctx context.Context, key models.MergeKey) (*models.Notification, error)
	Create(ctx context.Context, notification *models.Notification) error
	CreateMany(ctx context.Context, notifications []*models.Notification) error
	CompareAndSwap(ctx context.Context, notification *models.Notification, expectedVersion int64) error
}

// NameResolver turns an actor id into the name shown in message text
type NameResolver interface {
	DisplayName(ctx context.Context, actorID string) (string, error)
}

// Update is one aggregated interaction
type Update struct {
	Key      models.MergeKey
	SenderID string
	Entry    models.ActorEntry
}

// Outcome describes what a merge did to the record
type Outcome struct {
	Notification *models.Notification
	Created      bool
	Removed      bool
}

type Engine struct {
	store       Store
	names       NameResolver
	locks       keyedLocks
	now         func() time.Time
	maxAttempts int
	log         zerolog.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func NewEngine(store Store, names NameResolver, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		names:       names,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
		log:         log.With().Str("component", "aggregation").Logger(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Merge applies u to the record identified by its merge key, creating the record
// on first occurrence. Same-key merges are serialized in-process and guarded by a
// version compare-and-swap in the store, so concurrent workers never lose updates.
func (e *Engine) Merge(ctx context.Context, u Update) (*Outcome, error) {
	if !u.Key.Type.IsAggregated() {
		return nil, fmt.Errorf("type %s does not aggregate: %w", u.Key.Type, models.ErrInvalidEvent)
	}
	key := u.Key.String()
	unlock := e.locks.lock(key)
	defer unlock()

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		current, err := e.store.FindByMergeKey(ctx, u.Key)
		if errors.Is(err, models.ErrNotFound) {
			created, err := e.createAggregated(ctx, u, key)
			if errors.Is(err, models.ErrConflict) {
				e.log.Debug().Str("merge_key", key).Int("attempt", attempt).Msg("lost create race, retrying as update")
				continue
			}
			if err != nil {
				return nil, err
			}
			return &Outcome{Notification: created, Created: true}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load notification: %w", err)
		}

		next, removed, err := e.applyTo(ctx, current, u)
		if err != nil {
			return nil, err
		}
		err = e.store.CompareAndSwap(ctx, next, current.Version)
		if errors.Is(err, models.ErrConflict) {
			e.log.Debug().Str("merge_key", key).Int("attempt", attempt).Msg("version conflict, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return &Outcome{Notification: next, Removed: removed}, nil
	}
	return nil, fmt.Errorf("merge key %s after %d attempts: %w", key, e.maxAttempts, models.ErrConflict)
}

func (e *Engine) createAggregated(ctx context.Context, u Update, key string) (*models.Notification, error) {
	name, err := e.names.DisplayName(ctx, u.Entry.ActorID)
	if err != nil {
		return nil, err
	}
	n := &models.Notification{
		ID:         primitive.NewObjectID(),
		SenderID:   u.SenderID,
		ReceiverID: u.Key.ReceiverID,
		Type:       u.Key.Type,
		TargetRefs: u.Key.Refs,
		MergeKey:   key,
		ActorAggregate: &models.ActorAggregate{
			TotalCount:   1,
			RecentActors: []models.ActorEntry{u.Entry},
		},
		Message:   Message(u.Key.Type, name, 1),
		Version:   1,
		CreatedAt: e.now(),
	}
	if err := e.store.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (e *Engine) applyTo(ctx context.Context, current *models.Notification, u Update) (*models.Notification, bool, error) {
	next := current.Clone()
	var agg models.ActorAggregate
	if current.ActorAggregate != nil {
		agg = *current.ActorAggregate
	}

	updated, removed := ToggleAndBound(agg, u.Entry, u.Key.Type.IsReaction())
	next.ActorAggregate = &updated
	next.CreatedAt = e.now()
	next.Version = current.Version + 1

	if len(updated.RecentActors) == 0 {
		next.Message = ""
		return next, removed, nil
	}
	front := updated.RecentActors[0].ActorID
	name, err := e.names.DisplayName(ctx, front)
	if err != nil {
		return nil, false, err
	}
	next.SenderID = front
	next.Message = Message(next.Type, name, updated.TotalCount)
	return next, removed, nil
}

// Create inserts a standalone record for a non-aggregated type
func (e *Engine) Create(ctx context.Context, n *models.Notification) error {
	e.prepare(n)
	if err := e.store.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create %s notification: %w", n.Type, err)
	}
	return nil
}

// CreateMany inserts standalone records with one bulk write
func (e *Engine) CreateMany(ctx context.Context, ns []*models.Notification) error {
	for _, n := range ns {
		e.prepare(n)
	}
	if err := e.store.CreateMany(ctx, ns); err != nil {
		return fmt.Errorf("failed to create %d notifications: %w", len(ns), err)
	}
	return nil
}

func (e *Engine) prepare(n *models.Notification) {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	n.MergeKey = ""
	n.ActorAggregate = nil
	n.Version = 1
	n.CreatedAt = e.now()
}
