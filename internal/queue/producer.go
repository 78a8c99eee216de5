package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Producer submits interaction events to Transport A
type Producer struct {
	broker Broker
	now    func() time.Time
	log    zerolog.Logger
}

func NewProducer(broker Broker, log zerolog.Logger) *Producer {
	return &Producer{
		broker: broker,
		now:    time.Now,
		log:    log.With().Str("component", "queue_producer").Logger(),
	}
}

// SubmitEvent enqueues a single event
func (p *Producer) SubmitEvent(ctx context.Context, event models.Event) error {
	msg, err := p.envelope(event)
	if err != nil {
		return err
	}
	if err := p.broker.Send(ctx, msg); err != nil {
		return err
	}
	p.log.Debug().Str("type", string(event.Type)).Str("unique_id", msg.ID).Msg("event submitted")
	return nil
}

// SubmitEventBatch enqueues events in broker-sized batches. Every entry carries its own
// uniqueId. The first failing batch stops the submit; earlier batches stay enqueued.
func (p *Producer) SubmitEventBatch(ctx context.Context, events []models.Event) error {
	msgs := make([]OutgoingMessage, 0, len(events))
	for _, ev := range events {
		msg, err := p.envelope(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	for i, chunk := range lo.Chunk(msgs, MaxBatchEntries) {
		if err := p.broker.SendBatch(ctx, chunk); err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
	}
	p.log.Debug().Int("count", len(msgs)).Msg("event batch submitted")
	return nil
}

func (p *Producer) envelope(event models.Event) (OutgoingMessage, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return OutgoingMessage{}, fmt.Errorf("failed to encode event: %w", err)
	}
	id := uuid.NewString()
	return OutgoingMessage{
		ID:   id,
		Body: body,
		Attributes: map[string]string{
			AttrTimestamp:   strconv.FormatInt(p.now().UnixMilli(), 10),
			AttrMessageType: string(event.Type),
			AttrUniqueID:    id,
		},
	}, nil
}
