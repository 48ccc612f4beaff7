package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"gatherly/internal/dispatch"
	"gatherly/internal/outbox"
	"gatherly/internal/queue"
	"gatherly/internal/shared/config"
	"gatherly/pkg/logger"
	"gatherly/pkg/metrics"
)

// Consumer drains the main queue topic and routes each decoded domain event
// to its async handlers. Acking is MarkProcessed on the originating outbox
// row; a handler failure reschedules the row with the same backoff the
// delivery worker uses, so redelivery flows through the outbox rather than
// the broker.
type Consumer struct {
	transport queue.Transport
	registry  *dispatch.Registry
	router    *dispatch.Router
	outbox    outbox.Repository
	outboxCfg config.OutboxConfig
	topics    []string
	log       *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewConsumer(transport queue.Transport, registry *dispatch.Registry, router *dispatch.Router, outboxRepo outbox.Repository, cfg *config.Config, appLogger *logger.Logger) *Consumer {
	if appLogger == nil {
		appLogger = logger.GetDefault()
	}
	return &Consumer{
		transport: transport,
		registry:  registry,
		router:    router,
		outbox:    outboxRepo,
		outboxCfg: cfg.Outbox,
		topics:    []string{cfg.Queue.Topic},
		log:       appLogger,
	}
}

// Start subscribes in the background until Stop is called
func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		for {
			err := c.transport.Subscribe(ctx, c.topics, c.Handle)
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				// transport closed underneath us
				return
			}
			log.Printf("📥 Consumer subscribe failed, retrying: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()

	log.Printf("📥 Queue consumer started - topics: %v", c.topics)
}

// Stop cancels the subscription and waits for the consume loop to exit.
func (c *Consumer) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	log.Println("📥 Queue consumer stopped")
}

func (c *Consumer) HealthCheck(ctx context.Context) error {
	return c.transport.HealthCheck(ctx)
}

// Handle processes one delivery. The message id carries the outbox row id, so
// acknowledgement and rescheduling both address the durable record.
func (c *Consumer) Handle(ctx context.Context, delivery queue.Delivery) error {
	messageID, err := uuid.Parse(delivery.MessageID)
	if err != nil {
		log.Printf("📥 Dropping delivery with malformed message id %q on topic %s", delivery.MessageID, delivery.Topic)
		return nil
	}

	evt, err := c.registry.Decode(delivery.Envelope.EventType, []byte(delivery.Envelope.Payload))
	if err != nil {
		// no decoder will ever appear for this row; park it on the DLQ status
		c.park(ctx, messageID, err)
		return nil
	}

	start := time.Now()
	handleErr := c.router.Dispatch(ctx, evt)
	metrics.HandlerDuration.WithLabelValues(delivery.Envelope.EventType).Observe(time.Since(start).Seconds())

	if handleErr != nil {
		c.log.ErrorWithContext(ctx, "Async handler failed", handleErr, map[string]interface{}{
			"message_id": messageID.String(),
			"event_type": delivery.Envelope.EventType,
		})
		c.reschedule(ctx, messageID, handleErr)
		return handleErr
	}

	if err := c.outbox.MarkProcessed(ctx, messageID); err != nil {
		return fmt.Errorf("mark processed %s: %w", messageID, err)
	}
	metrics.OutboxDeliveries.WithLabelValues("processed").Inc()
	return nil
}

// reschedule pushes the row back to Pending with the shared backoff, or to the
// dead letter queue once its tries are exhausted.
func (c *Consumer) reschedule(ctx context.Context, messageID uuid.UUID, cause error) {
	msg, err := c.outbox.GetByID(ctx, messageID)
	if err != nil {
		log.Printf("📥 Failed to load outbox row %s after handler error: %v", messageID, err)
		return
	}

	if msg.TryCount >= c.outboxCfg.MaxTries {
		if err := c.outbox.MarkDead(ctx, messageID, cause.Error()); err != nil {
			log.Printf("📥 Dead-letter failed for %s: %v", messageID, err)
			return
		}
		metrics.OutboxDeliveries.WithLabelValues("dead_lettered").Inc()
		return
	}

	next := time.Now().UTC().Add(outbox.Backoff(c.outboxCfg, msg.TryCount))
	if err := c.outbox.Reschedule(ctx, messageID, cause.Error(), next); err != nil {
		log.Printf("📥 Reschedule failed for %s: %v", messageID, err)
		return
	}
	metrics.OutboxDeliveries.WithLabelValues("retried").Inc()
}

func (c *Consumer) park(ctx context.Context, messageID uuid.UUID, cause error) {
	log.Printf("📥 Undecodable message %s parked: %v", messageID, cause)
	if err := c.outbox.MarkDead(ctx, messageID, cause.Error()); err != nil {
		log.Printf("📥 Failed to park message %s: %v", messageID, err)
	}
}
