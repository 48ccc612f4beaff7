package queue

import (
	"context"
	"errors"
)

// MessageIDHeader carries the outbox row id alongside each published envelope.
const MessageIDHeader = "message_id"

// ErrClosed is returned when publishing on a transport that has been shut down.
var ErrClosed = errors.New("queue: transport closed")

// Envelope is the wire shape for a domain event. Payload holds the
// JSON-encoded event body as produced by the outbox.
type Envelope struct {
	EventType string `json:"event_type"`
	Payload   string `json:"payload"`
}

// Delivery is a single message received from the transport.
type Delivery struct {
	MessageID string
	Topic     string
	Envelope  Envelope
}

// Handler processes one delivery. Errors are recorded against the outbox row;
// the transport itself never redelivers.
type Handler func(ctx context.Context, delivery Delivery) error

// Transport moves envelopes between the outbox worker and consumers. The
// external implementation fans out across instances; the in-memory one keeps
// everything inside a single process.
type Transport interface {
	Publish(ctx context.Context, topic string, key string, messageID string, envelope Envelope) error

	// Subscribe consumes the given topics until ctx is cancelled or the
	// transport is closed.
	Subscribe(ctx context.Context, topics []string, handler Handler) error

	Close() error
	HealthCheck(ctx context.Context) error
}
