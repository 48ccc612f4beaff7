package queue

import (
	"context"
	"log"
	"sync"
)

const defaultMemoryBuffer = 256

// MemoryTransport carries envelopes over buffered channels inside a single
// process. Topics without a subscriber drop publishes; the outbox keeps the
// rows, so a released claim republishes them later.
type MemoryTransport struct {
	mu     sync.Mutex
	topics map[string]chan Delivery
	buffer int

	closed    chan struct{}
	closeOnce sync.Once
}

// NewMemoryTransport creates an in-process transport with the given buffer per
// topic. A non-positive buffer falls back to the default.
func NewMemoryTransport(buffer int) *MemoryTransport {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryTransport{
		topics: make(map[string]chan Delivery),
		buffer: buffer,
		closed: make(chan struct{}),
	}
}

func (mt *MemoryTransport) Publish(ctx context.Context, topic, key, messageID string, envelope Envelope) error {
	mt.mu.Lock()
	ch, subscribed := mt.topics[topic]
	mt.mu.Unlock()

	if !subscribed {
		log.Printf("Dropping message %s for topic %s: no subscriber", messageID, topic)
		return nil
	}

	delivery := Delivery{MessageID: messageID, Topic: topic, Envelope: envelope}
	select {
	case ch <- delivery:
		return nil
	case <-mt.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers the topics and processes deliveries until ctx is done.
func (mt *MemoryTransport) Subscribe(ctx context.Context, topics []string, handler Handler) error {
	merged := make(chan Delivery)
	for _, topic := range topics {
		go mt.forward(ctx, mt.channel(topic), merged)
	}

	for {
		select {
		case delivery := <-merged:
			if err := handler(ctx, delivery); err != nil {
				log.Printf("Error processing message %s: %v", delivery.MessageID, err)
			}
		case <-mt.closed:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (mt *MemoryTransport) channel(topic string) chan Delivery {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	ch, ok := mt.topics[topic]
	if !ok {
		ch = make(chan Delivery, mt.buffer)
		mt.topics[topic] = ch
	}
	return ch
}

func (mt *MemoryTransport) forward(ctx context.Context, from chan Delivery, to chan<- Delivery) {
	for {
		select {
		case delivery := <-from:
			select {
			case to <- delivery:
			case <-mt.closed:
				return
			case <-ctx.Done():
				return
			}
		case <-mt.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (mt *MemoryTransport) Close() error {
	mt.closeOnce.Do(func() { close(mt.closed) })
	return nil
}

func (mt *MemoryTransport) HealthCheck(ctx context.Context) error {
	select {
	case <-mt.closed:
		return ErrClosed
	default:
		return nil
	}
}
