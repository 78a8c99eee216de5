package aggregation

import "github.com/anonto42/nano-midea/notifications/internal/models"

// ToggleAndBound applies one actor occurrence to an aggregate and returns the new
// aggregate; the input is never mutated.
//
// A repeated actor is pulled out of the list. With undo set (reaction types) it
// stays out and totalCount drops by one; otherwise it is re-inserted at the front
// and totalCount is unchanged. A new actor evicts the oldest entry when the list
// is full and increments totalCount.
func ToggleAndBound(agg models.ActorAggregate, entry models.ActorEntry, undo bool) (next models.ActorAggregate, removed bool) {
	actors := make([]models.ActorEntry, 0, models.MaxRecentActors)
	idx := indexOf(agg.RecentActors, entry.ActorID)
	count := agg.TotalCount

	if idx >= 0 {
		actors = append(actors, agg.RecentActors[:idx]...)
		actors = append(actors, agg.RecentActors[idx+1:]...)
		if undo {
			count--
			if count < len(actors) {
				count = len(actors)
			}
			return models.ActorAggregate{TotalCount: count, RecentActors: actors}, true
		}
	} else {
		actors = append(actors, agg.RecentActors...)
		if len(actors) >= models.MaxRecentActors {
			actors = actors[:models.MaxRecentActors-1]
		}
		count++
	}

	actors = append([]models.ActorEntry{entry}, actors...)
	if count < len(actors) {
		count = len(actors)
	}
	return models.ActorAggregate{TotalCount: count, RecentActors: actors}, false
}

func indexOf(actors []models.ActorEntry, actorID string) int {
	for i, a := range actors {
		if a.ActorID == actorID {
			return i
		}
	}
	return -1
}
