package aggregation

import (
	"fmt"
	"testing"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string) models.ActorEntry {
	return models.ActorEntry{ActorID: id}
}

func ids(agg models.ActorAggregate) []string {
	out := make([]string, len(agg.RecentActors))
	for i, a := range agg.RecentActors {
		out[i] = a.ActorID
	}
	return out
}

func TestToggleAndBound_BoundedList(t *testing.T) {
	for n := 1; n <= 12; n++ {
		agg := models.ActorAggregate{}
		for i := 0; i < n; i++ {
			agg, _ = ToggleAndBound(agg, entry(fmt.Sprintf("u%d", i)), true)
		}
		want := n
		if want > models.MaxRecentActors {
			want = models.MaxRecentActors
		}
		assert.Len(t, agg.RecentActors, want, "n=%d", n)
		assert.Equal(t, n, agg.TotalCount, "n=%d", n)
		assert.Equal(t, fmt.Sprintf("u%d", n-1), agg.RecentActors[0].ActorID, "most recent first, n=%d", n)
	}
}

func TestToggleAndBound_EvictsOldest(t *testing.T) {
	agg := models.ActorAggregate{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		agg, _ = ToggleAndBound(agg, entry(id), true)
	}
	assert.Equal(t, []string{"f", "e", "d", "c", "b"}, ids(agg))
	assert.Equal(t, 6, agg.TotalCount)
}

func TestToggleAndBound_ReactionRoundTrip(t *testing.T) {
	start := models.ActorAggregate{TotalCount: 3, RecentActors: []models.ActorEntry{entry("b"), entry("c"), entry("d")}}

	once, removed := ToggleAndBound(start, entry("x"), true)
	require.False(t, removed)
	assert.Equal(t, []string{"x", "b", "c", "d"}, ids(once))
	assert.Equal(t, 4, once.TotalCount)

	twice, removed := ToggleAndBound(once, entry("x"), true)
	require.True(t, removed)
	assert.NotContains(t, ids(twice), "x")
	assert.Equal(t, start.TotalCount, twice.TotalCount)
	assert.Equal(t, ids(start), ids(twice))
}

func TestToggleAndBound_CommentMovesToFront(t *testing.T) {
	start := models.ActorAggregate{TotalCount: 3, RecentActors: []models.ActorEntry{
		{ActorID: "a", AuxiliaryRef: "c1"},
		{ActorID: "b", AuxiliaryRef: "c2"},
		{ActorID: "c", AuxiliaryRef: "c3"},
	}}

	next, removed := ToggleAndBound(start, models.ActorEntry{ActorID: "c", AuxiliaryRef: "c9"}, false)

	assert.False(t, removed)
	assert.Equal(t, []string{"c", "a", "b"}, ids(next))
	assert.Equal(t, "c9", next.RecentActors[0].AuxiliaryRef)
	assert.Equal(t, 3, next.TotalCount)
}

func TestToggleAndBound_ActorAppearsOnce(t *testing.T) {
	agg := models.ActorAggregate{}
	for _, id := range []string{"a", "b", "a", "c", "a", "b"} {
		agg, _ = ToggleAndBound(agg, entry(id), false)
	}
	seen := map[string]bool{}
	for _, id := range ids(agg) {
		assert.False(t, seen[id], "duplicate actor %s", id)
		seen[id] = true
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids(agg))
}

func TestToggleAndBound_DoesNotMutateInput(t *testing.T) {
	start := models.ActorAggregate{TotalCount: 2, RecentActors: []models.ActorEntry{entry("a"), entry("b")}}
	_, _ = ToggleAndBound(start, entry("a"), true)
	assert.Equal(t, []string{"a", "b"}, ids(start))
	assert.Equal(t, 2, start.TotalCount)
}
