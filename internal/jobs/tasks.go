package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/hibiken/asynq"
)

const (
	// TaskPrefix namespaces every notification job name
	TaskPrefix = "notification:"
	QueueName  = "notifications"
)

// TaskName returns the job name an event type is enqueued under
func TaskName(t models.EventType) string {
	return TaskPrefix + string(t)
}

// NewEventTask encodes event as the payload of its named job
func NewEventTask(event models.Event) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return asynq.NewTask(TaskName(event.Type), payload), nil
}

func decodeEvent(task *asynq.Task) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return event, fmt.Errorf("malformed payload for %s: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return event, nil
}
