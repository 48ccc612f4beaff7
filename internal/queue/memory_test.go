package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/queue"
)

// subscribe runs a MemoryTransport subscription in the background and gives it
// a moment to register its topic channels, so publishes are not dropped.
func subscribe(t *testing.T, transport *queue.MemoryTransport, topics []string, handler queue.Handler) (cancel func()) {
	t.Helper()

	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = transport.Subscribe(ctx, topics, handler)
	}()

	time.Sleep(10 * time.Millisecond)

	return func() {
		cancelCtx()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("subscription did not stop")
		}
	}
}

func TestMemoryTransport_PublishSubscribeRoundTrip(t *testing.T) {
	transport := queue.NewMemoryTransport(4)
	defer transport.Close()

	var mu sync.Mutex
	var got []queue.Delivery
	stop := subscribe(t, transport, []string{"gatherly.domain-events"}, func(ctx context.Context, delivery queue.Delivery) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, delivery)
		return nil
	})
	defer stop()

	envelope := queue.Envelope{EventType: "registration.created", Payload: `{"confirmed":true}`}
	require.NoError(t, transport.Publish(context.Background(), "gatherly.domain-events", "key-1", "msg-1", envelope))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "msg-1", got[0].MessageID)
	assert.Equal(t, "gatherly.domain-events", got[0].Topic)
	assert.Equal(t, envelope, got[0].Envelope)
}

func TestMemoryTransport_SubscriberOnlySeesItsTopics(t *testing.T) {
	transport := queue.NewMemoryTransport(4)
	defer transport.Close()

	var mu sync.Mutex
	var topics []string
	stop := subscribe(t, transport, []string{"topic-a", "topic-b"}, func(ctx context.Context, delivery queue.Delivery) error {
		mu.Lock()
		defer mu.Unlock()
		topics = append(topics, delivery.Topic)
		return nil
	})
	defer stop()

	ctx := context.Background()
	require.NoError(t, transport.Publish(ctx, "topic-a", "", "msg-a", queue.Envelope{EventType: "a"}))
	require.NoError(t, transport.Publish(ctx, "topic-b", "", "msg-b", queue.Envelope{EventType: "b"}))
	// Nobody listens on topic-c; the publish is dropped, not an error. The
	// outbox row it came from stays claimed and is redelivered later.
	require.NoError(t, transport.Publish(ctx, "topic-c", "", "msg-c", queue.Envelope{EventType: "c"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(topics) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"topic-a", "topic-b"}, topics)
}

func TestMemoryTransport_HandlerErrorsDoNotStopTheLoop(t *testing.T) {
	transport := queue.NewMemoryTransport(4)
	defer transport.Close()

	var mu sync.Mutex
	var seen []string
	stop := subscribe(t, transport, []string{"events"}, func(ctx context.Context, delivery queue.Delivery) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, delivery.MessageID)
		if delivery.MessageID == "msg-1" {
			return assert.AnError
		}
		return nil
	})
	defer stop()

	ctx := context.Background()
	require.NoError(t, transport.Publish(ctx, "events", "", "msg-1", queue.Envelope{}))
	require.NoError(t, transport.Publish(ctx, "events", "", "msg-2", queue.Envelope{}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryTransport_CloseUnblocksSubscribers(t *testing.T) {
	transport := queue.NewMemoryTransport(4)

	done := make(chan error, 1)
	go func() {
		done <- transport.Subscribe(context.Background(), []string{"events"}, func(ctx context.Context, delivery queue.Delivery) error {
			return nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, transport.Close())

	select {
	case err := <-done:
		assert.NoError(t, err, "a closed transport ends the subscription cleanly")
	case <-time.After(time.Second):
		t.Fatal("Subscribe did not return after Close")
	}
}

func TestMemoryTransport_CloseIsIdempotent(t *testing.T) {
	transport := queue.NewMemoryTransport(4)
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
}

func TestMemoryTransport_HealthCheck(t *testing.T) {
	transport := queue.NewMemoryTransport(4)
	require.NoError(t, transport.HealthCheck(context.Background()))

	require.NoError(t, transport.Close())
	assert.ErrorIs(t, transport.HealthCheck(context.Background()), queue.ErrClosed)
}
