package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// KafkaConfig contains settings shared by the producer and the consumer group.
type KafkaConfig struct {
	Brokers          []string
	GroupID          string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
	SessionTimeoutMs int
	HeartbeatMs      int
	OffsetOldest     bool
}

// DefaultKafkaConfig returns a default transport configuration
func DefaultKafkaConfig(brokers []string, groupID string) *KafkaConfig {
	return &KafkaConfig{
		Brokers:          brokers,
		GroupID:          groupID,
		RetryMax:         3,
		TimeoutMs:        10000,             // 10 seconds
		RequiredAcks:     sarama.WaitForAll, // Wait for all in-sync replicas
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
		SessionTimeoutMs: 30000,
		HeartbeatMs:      3000,
		OffsetOldest:     true,
	}
}

// KafkaTransport publishes and consumes envelopes through Kafka. The producer
// is connected up front; the consumer group is created on the first Subscribe.
type KafkaTransport struct {
	config   *KafkaConfig
	producer sarama.SyncProducer

	mu            sync.Mutex
	consumerGroup sarama.ConsumerGroup
	closed        bool
}

// NewKafkaTransport creates a new Kafka transport with a synchronous producer
func NewKafkaTransport(config *KafkaConfig) (*KafkaTransport, error) {
	saramaConfig := sarama.NewConfig()

	// Producer configuration
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	// Idempotent writes require a single in-flight request
	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps every message for one event on one partition
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Printf("📤 Kafka transport connected - Brokers: %v", config.Brokers)
	return &KafkaTransport{config: config, producer: producer}, nil
}

// Publish sends a single envelope to Kafka
func (kt *KafkaTransport) Publish(ctx context.Context, topic, key, messageID string, envelope Envelope) error {
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(MessageIDHeader), Value: []byte(messageID)},
			{Key: []byte("event_type"), Value: []byte(envelope.EventType)},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := kt.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish to Kafka: %w", err)
	}

	log.Printf("📤 Event published to Kafka - Topic: %s, Partition: %d, Offset: %d, Type: %s",
		topic, partition, offset, envelope.EventType)
	return nil
}

// Subscribe joins the consumer group and processes messages until ctx is done.
func (kt *KafkaTransport) Subscribe(ctx context.Context, topics []string, handler Handler) error {
	group, err := kt.group()
	if err != nil {
		return err
	}

	go kt.handleErrors(group)

	cgHandler := &consumerGroupHandler{handler: handler}
	for {
		select {
		case <-ctx.Done():
			log.Printf("📥 Kafka consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, topics, cgHandler); err != nil {
				log.Printf("📥 Error consuming messages: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (kt *KafkaTransport) group() (sarama.ConsumerGroup, error) {
	kt.mu.Lock()
	defer kt.mu.Unlock()

	if kt.closed {
		return nil, ErrClosed
	}
	if kt.consumerGroup != nil {
		return kt.consumerGroup, nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Session.Timeout = time.Duration(kt.config.SessionTimeoutMs) * time.Millisecond
	saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(kt.config.HeartbeatMs) * time.Millisecond
	saramaConfig.Consumer.Return.Errors = true

	if kt.config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = 1 * time.Second

	group, err := sarama.NewConsumerGroup(kt.config.Brokers, kt.config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	kt.consumerGroup = group
	return group, nil
}

func (kt *KafkaTransport) handleErrors(group sarama.ConsumerGroup) {
	for err := range group.Errors() {
		log.Printf("📥 Consumer group error: %v", err)
	}
}

// Close closes the consumer group and the producer
func (kt *KafkaTransport) Close() error {
	kt.mu.Lock()
	defer kt.mu.Unlock()

	if kt.closed {
		return nil
	}
	kt.closed = true

	if kt.consumerGroup != nil {
		if err := kt.consumerGroup.Close(); err != nil {
			return fmt.Errorf("failed to close consumer group: %w", err)
		}
		kt.consumerGroup = nil
	}
	if err := kt.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}

	log.Printf("📤 Kafka transport closed")
	return nil
}

// HealthCheck verifies the transport is still usable
func (kt *KafkaTransport) HealthCheck(ctx context.Context) error {
	kt.mu.Lock()
	defer kt.mu.Unlock()

	if kt.closed {
		return ErrClosed
	}
	return nil
}

type consumerGroupHandler struct {
	handler Handler
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Printf("📥 Consumer group session started")
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Printf("📥 Consumer group session ended")
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			delivery := deliveryFromMessage(message)
			if err := h.handler(session.Context(), delivery); err != nil {
				log.Printf("📥 Error processing message %s: %v", delivery.MessageID, err)
			}

			// Offsets always advance; redelivery is the outbox worker's job.
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func deliveryFromMessage(message *sarama.ConsumerMessage) Delivery {
	delivery := Delivery{Topic: message.Topic}
	for _, header := range message.Headers {
		if header != nil && string(header.Key) == MessageIDHeader {
			delivery.MessageID = string(header.Value)
		}
	}
	if err := json.Unmarshal(message.Value, &delivery.Envelope); err != nil {
		log.Printf("📥 Malformed envelope at topic %s, offset %d: %v", message.Topic, message.Offset, err)
	}
	return delivery
}
