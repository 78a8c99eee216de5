package aggregation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore mirrors the Mongo repository semantics: unique merge keys and a
// version-checked update that only touches the aggregation fields.
type memStore struct {
	mu         sync.Mutex
	byKey      map[string]*models.Notification
	all        []*models.Notification
	bulkWrites int

	failNextCAS    int
	failNextCreate int
	beforeCreate   func()
}

func newMemStore() *memStore {
	return &memStore{byKey: map[string]*models.Notification{}}
}

func (s *memStore) FindByMergeKey(ctx context.Context, key models.MergeKey) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byKey[key.String()]
	if !ok {
		return nil, models.ErrNotFound
	}
	return n.Clone(), nil
}

func (s *memStore) Create(ctx context.Context, n *models.Notification) error {
	if s.beforeCreate != nil {
		hook := s.beforeCreate
		s.beforeCreate = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextCreate > 0 {
		s.failNextCreate--
		return models.ErrConflict
	}
	if n.MergeKey != "" {
		if _, exists := s.byKey[n.MergeKey]; exists {
			return models.ErrConflict
		}
		s.byKey[n.MergeKey] = n.Clone()
	}
	s.all = append(s.all, n.Clone())
	return nil
}

func (s *memStore) CreateMany(ctx context.Context, ns []*models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkWrites++
	for _, n := range ns {
		s.all = append(s.all, n.Clone())
	}
	return nil
}

func (s *memStore) CompareAndSwap(ctx context.Context, n *models.Notification, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextCAS > 0 {
		s.failNextCAS--
		s.byKey[n.MergeKey].Version++
		return models.ErrConflict
	}
	cur, ok := s.byKey[n.MergeKey]
	if !ok || cur.Version != expected {
		return models.ErrConflict
	}
	cur.SenderID = n.SenderID
	cur.Message = n.Message
	cur.ActorAggregate = n.Clone().ActorAggregate
	cur.CreatedAt = n.CreatedAt
	cur.Version = n.Version
	return nil
}

func (s *memStore) get(key models.MergeKey) *models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKey[key.String()]
}

type staticNames map[string]string

func (n staticNames) DisplayName(ctx context.Context, id string) (string, error) {
	if name, ok := n[id]; ok {
		return name, nil
	}
	return id, nil
}

func newTestEngine(store Store) *Engine {
	return NewEngine(store, staticNames{"a": "A", "b": "B"}, zerolog.Nop())
}

func postKey(postID string) models.MergeKey {
	return models.MergeKey{
		ReceiverID: "r",
		Type:       models.TypeReactedToPost,
		Refs:       models.TargetRefs{UserPostID: postID},
	}
}

func like(key models.MergeKey, actor string) Update {
	return Update{Key: key, SenderID: actor, Entry: models.ActorEntry{ActorID: actor}}
}

func TestEngine_LikeLikeUnlikeScenario(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)
	ctx := context.Background()
	key := postKey("p")

	out, err := engine.Merge(ctx, like(key, "a"))
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.Equal(t, 1, out.Notification.ActorAggregate.TotalCount)
	assert.Equal(t, "A liked your post", out.Notification.Message)

	out, err = engine.Merge(ctx, like(key, "b"))
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, 2, out.Notification.ActorAggregate.TotalCount)
	assert.Equal(t, []models.ActorEntry{{ActorID: "b"}, {ActorID: "a"}}, out.Notification.ActorAggregate.RecentActors)
	assert.Equal(t, "B and 1 others liked your post", out.Notification.Message)

	out, err = engine.Merge(ctx, like(key, "a"))
	require.NoError(t, err)
	assert.True(t, out.Removed)
	assert.Equal(t, 1, out.Notification.ActorAggregate.TotalCount)
	assert.Equal(t, []models.ActorEntry{{ActorID: "b"}}, out.Notification.ActorAggregate.RecentActors)
	assert.Equal(t, "B liked your post", out.Notification.Message)

	stored := store.get(key)
	assert.Equal(t, "B liked your post", stored.Message)
	assert.Equal(t, int64(3), stored.Version)
	assert.Equal(t, out.Notification.ID, stored.ID)
}

func TestEngine_UndoLastActorEmptiesRecord(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)
	key := postKey("p")

	first, err := engine.Merge(context.Background(), like(key, "a"))
	require.NoError(t, err)
	out, err := engine.Merge(context.Background(), like(key, "a"))
	require.NoError(t, err)

	assert.True(t, out.Removed)
	assert.Equal(t, 0, out.Notification.ActorAggregate.TotalCount)
	assert.Empty(t, out.Notification.ActorAggregate.RecentActors)
	assert.Empty(t, out.Notification.Message)
	assert.Equal(t, first.Notification.ID, store.get(key).ID)
}

func TestEngine_MergeKeyIsolation(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	_, err := engine.Merge(ctx, like(postKey("p1"), "a"))
	require.NoError(t, err)
	_, err = engine.Merge(ctx, like(postKey("p2"), "a"))
	require.NoError(t, err)

	assert.Len(t, store.all, 2)
	assert.Equal(t, 1, store.get(postKey("p1")).ActorAggregate.TotalCount)
	assert.Equal(t, 1, store.get(postKey("p2")).ActorAggregate.TotalCount)
	assert.NotEqual(t, store.get(postKey("p1")).ID, store.get(postKey("p2")).ID)
}

func TestEngine_PreservesReadAndStatus(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)
	key := postKey("p")

	_, err := engine.Merge(context.Background(), like(key, "a"))
	require.NoError(t, err)

	stored := store.get(key)
	stored.IsRead = true
	stored.Status = "seen"

	_, err = engine.Merge(context.Background(), like(key, "b"))
	require.NoError(t, err)

	stored = store.get(key)
	assert.True(t, stored.IsRead)
	assert.Equal(t, "seen", stored.Status)
	assert.Equal(t, 2, stored.ActorAggregate.TotalCount)
}

func TestEngine_UpdatesCreatedAtOnMerge(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(store, staticNames{}, zerolog.Nop(), WithClock(func() time.Time { return now }))
	key := postKey("p")

	_, err := engine.Merge(context.Background(), like(key, "a"))
	require.NoError(t, err)
	assert.Equal(t, now, store.get(key).CreatedAt)

	now = now.Add(time.Hour)
	_, err = engine.Merge(context.Background(), like(key, "b"))
	require.NoError(t, err)
	assert.Equal(t, now, store.get(key).CreatedAt)
}

func TestEngine_RetriesOnVersionConflict(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)
	key := postKey("p")

	_, err := engine.Merge(context.Background(), like(key, "a"))
	require.NoError(t, err)

	store.failNextCAS = 2
	out, err := engine.Merge(context.Background(), like(key, "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Notification.ActorAggregate.TotalCount)
}

func TestEngine_GivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, staticNames{}, zerolog.Nop(), WithMaxAttempts(2))
	key := postKey("p")

	_, err := engine.Merge(context.Background(), like(key, "a"))
	require.NoError(t, err)

	store.failNextCAS = 5
	_, err = engine.Merge(context.Background(), like(key, "b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestEngine_LostCreateRaceBecomesUpdate(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)
	key := postKey("p")

	// Another process creates the record between our lookup and our insert.
	store.beforeCreate = func() {
		store.mu.Lock()
		defer store.mu.Unlock()
		store.byKey[key.String()] = &models.Notification{
			ReceiverID:     "r",
			Type:           key.Type,
			TargetRefs:     key.Refs,
			MergeKey:       key.String(),
			ActorAggregate: &models.ActorAggregate{TotalCount: 1, RecentActors: []models.ActorEntry{{ActorID: "b"}}},
			Version:        1,
		}
	}

	out, err := engine.Merge(context.Background(), like(key, "a"))
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, 2, out.Notification.ActorAggregate.TotalCount)
	assert.Equal(t, "a", out.Notification.ActorAggregate.RecentActors[0].ActorID)
}

func TestEngine_ConcurrentMergesDoNotLoseUpdates(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)
	key := postKey("p")

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Merge(context.Background(), like(key, fmt.Sprintf("u%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored := store.get(key)
	assert.Equal(t, 40, stored.ActorAggregate.TotalCount)
	assert.Len(t, stored.ActorAggregate.RecentActors, models.MaxRecentActors)
	assert.Equal(t, int64(40), stored.Version)
}

func TestEngine_RejectsNonAggregatedType(t *testing.T) {
	engine := newTestEngine(newMemStore())
	key := models.MergeKey{ReceiverID: "r", Type: models.TypeFollow}

	_, err := engine.Merge(context.Background(), like(key, "a"))
	assert.ErrorIs(t, err, models.ErrInvalidEvent)
}

func TestEngine_CreateManyUsesOneBulkWrite(t *testing.T) {
	store := newMemStore()
	engine := newTestEngine(store)

	ns := make([]*models.Notification, 120)
	for i := range ns {
		ns[i] = &models.Notification{ReceiverID: fmt.Sprintf("r%d", i), Type: models.TypeGroupInvite}
	}
	require.NoError(t, engine.CreateMany(context.Background(), ns))

	assert.Equal(t, 1, store.bulkWrites)
	assert.Len(t, store.all, 120)
	for _, n := range ns {
		assert.False(t, n.ID.IsZero())
		assert.Empty(t, n.MergeKey)
	}
}
