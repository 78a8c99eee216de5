package queue

import (
	"context"
	"time"
)

// Message attribute names carried by every envelope
const (
	AttrTimestamp   = "timestamp"
	AttrMessageType = "messageType"
	AttrUniqueID    = "uniqueId"
)

// MaxBatchEntries is the broker's per-call limit for batched submits and receives
const MaxBatchEntries = 10

// OutgoingMessage is an envelope waiting to be enqueued
type OutgoingMessage struct {
	ID         string
	Body       []byte
	Attributes map[string]string
}

// Message is an envelope handed out by Receive
type Message struct {
	ID            string
	ReceiptHandle string
	Body          []byte
	Attributes    map[string]string
	// ReceiveCount is how many times the broker has delivered this message, this delivery included
	ReceiveCount int
}

type ReceiveOptions struct {
	MaxMessages       int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
}

// Broker is the managed message broker behind Transport A. A received message stays
// invisible for the visibility timeout and comes back unless it is deleted.
type Broker interface {
	Send(ctx context.Context, msg OutgoingMessage) error
	SendBatch(ctx context.Context, msgs []OutgoingMessage) error
	Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}
