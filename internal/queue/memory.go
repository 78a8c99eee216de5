package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	msg       Message
	visibleAt time.Time
}

// MemoryBroker is an in-process Broker with SQS visibility semantics. It backs
// QUEUE_DRIVER=memory and the tests; Receive never blocks.
type MemoryBroker struct {
	mu      sync.Mutex
	now     func() time.Time
	entries []*memoryEntry
	// receipt handle -> message id, replaced on every delivery
	receipts map[string]string
}

func NewMemoryBroker(now func() time.Time) *MemoryBroker {
	if now == nil {
		now = time.Now
	}
	return &MemoryBroker{now: now, receipts: map[string]string{}}
}

func (b *MemoryBroker) Send(ctx context.Context, msg OutgoingMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enqueueLocked(msg)
	return nil
}

func (b *MemoryBroker) SendBatch(ctx context.Context, msgs []OutgoingMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range msgs {
		b.enqueueLocked(m)
	}
	return nil
}

func (b *MemoryBroker) enqueueLocked(msg OutgoingMessage) {
	attrs := make(map[string]string, len(msg.Attributes))
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	b.entries = append(b.entries, &memoryEntry{
		msg: Message{
			ID:         uuid.NewString(),
			Body:       append([]byte(nil), msg.Body...),
			Attributes: attrs,
		},
		visibleAt: b.now(),
	})
}

func (b *MemoryBroker) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	limit := opts.MaxMessages
	if limit <= 0 {
		limit = 1
	}
	now := b.now()
	var out []Message
	for _, e := range b.entries {
		if len(out) == limit {
			break
		}
		if now.Before(e.visibleAt) {
			continue
		}
		for handle, id := range b.receipts {
			if id == e.msg.ID {
				delete(b.receipts, handle)
			}
		}
		e.msg.ReceiveCount++
		e.msg.ReceiptHandle = uuid.NewString()
		e.visibleAt = now.Add(opts.VisibilityTimeout)
		b.receipts[e.msg.ReceiptHandle] = e.msg.ID
		out = append(out, e.msg)
	}
	return out, nil
}

// Delete removes the message for receiptHandle. Unknown or stale handles are ignored.
func (b *MemoryBroker) Delete(ctx context.Context, receiptHandle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.receipts[receiptHandle]
	if !ok {
		return nil
	}
	delete(b.receipts, receiptHandle)
	for i, e := range b.entries {
		if e.msg.ID == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of stored messages, in flight or not
func (b *MemoryBroker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
