package outbox

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"gatherly/internal/queue"
	"gatherly/internal/shared/config"
	"gatherly/pkg/logger"
	"gatherly/pkg/metrics"
)

// Worker drains pending outbox rows and hands them to the transport. Rows stay
// Claimed until a consumer marks them Processed; delivery failures push them
// back to Pending with a later next_attempt_at, and rows that exhaust their
// tries go to the dead letter queue.
type Worker struct {
	repo      Repository
	transport queue.Transport
	outboxCfg config.OutboxConfig
	queueCfg  config.QueueConfig
	workerID  string
	log       *logger.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates an outbox delivery worker
func NewWorker(repo Repository, transport queue.Transport, cfg *config.Config, appLogger *logger.Logger) *Worker {
	if appLogger == nil {
		appLogger = logger.GetDefault()
	}
	return &Worker{
		repo:      repo,
		transport: transport,
		outboxCfg: cfg.Outbox,
		queueCfg:  cfg.Queue,
		workerID:  cfg.Queue.WorkerID,
		log:       appLogger,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the poll and maintenance loops.
func (w *Worker) Start() {
	w.wg.Add(2)
	go w.run()
	go w.maintain()

	log.Printf("✅ Outbox worker started - worker: %s, batch: %d, poll: %s",
		w.workerID, w.outboxCfg.BatchSize, w.outboxCfg.PollInterval)
}

// Stop signals both loops and waits for them to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	log.Printf("Outbox worker stopped - worker: %s", w.workerID)
}

func (w *Worker) run() {
	defer w.wg.Done()

	interval := w.outboxCfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx := context.Background()
			w.observeBacklog(ctx)
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		claimed, err := w.RunOnce(ctx)
		if err != nil {
			log.Printf("Outbox claim failed: %v", err)
			return
		}
		if claimed < w.outboxCfg.BatchSize {
			return
		}
	}
}

// RunOnce claims and delivers a single batch. It returns the number of rows
// claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	batch, err := w.repo.ClaimBatch(ctx, w.workerID, w.outboxCfg.BatchSize)
	if err != nil {
		return 0, err
	}

	for i := range batch {
		w.deliver(ctx, &batch[i])
	}
	return len(batch), nil
}

func (w *Worker) deliver(ctx context.Context, msg *Message) {
	envelope := queue.Envelope{EventType: msg.EventType, Payload: msg.Payload}

	err := w.transport.Publish(ctx, w.queueCfg.Topic, partitionKey(msg), msg.ID.String(), envelope)
	w.log.LogOutboxDelivery(ctx, msg.ID.String(), msg.EventType, msg.TryCount, err)
	if err == nil {
		metrics.OutboxDeliveries.WithLabelValues("published").Inc()
		return
	}

	w.fail(ctx, msg, err)
}

func (w *Worker) fail(ctx context.Context, msg *Message, cause error) {
	if msg.TryCount >= w.outboxCfg.MaxTries {
		if err := w.repo.MarkDead(ctx, msg.ID, cause.Error()); err != nil {
			log.Printf("Outbox dead-letter failed for %s: %v", msg.ID, err)
			return
		}
		metrics.OutboxDeliveries.WithLabelValues("dead_lettered").Inc()
		w.publishDead(ctx, msg)
		return
	}

	next := time.Now().UTC().Add(Backoff(w.outboxCfg, msg.TryCount))
	if err := w.repo.Reschedule(ctx, msg.ID, cause.Error(), next); err != nil {
		log.Printf("Outbox reschedule failed for %s: %v", msg.ID, err)
		return
	}
	metrics.OutboxDeliveries.WithLabelValues("retried").Inc()
}

// publishDead forwards an exhausted row to the DLQ topic. The Failed row in
// outbox_messages remains the durable record either way.
func (w *Worker) publishDead(ctx context.Context, msg *Message) {
	if w.queueCfg.DLQTopic == "" {
		return
	}

	envelope := queue.Envelope{EventType: msg.EventType, Payload: msg.Payload}
	if err := w.transport.Publish(ctx, w.queueCfg.DLQTopic, partitionKey(msg), msg.ID.String(), envelope); err != nil {
		log.Printf("DLQ publish failed for %s: %v", msg.ID, err)
	}
}

// Backoff returns the delay before the next attempt: exponential in the try
// count with jitter, clamped to [base, max]. Shared by the delivery worker
// and the consumer so publish failures and handler failures reschedule the
// same way.
func Backoff(cfg config.OutboxConfig, tryCount int) time.Duration {
	base := cfg.BaseBackoff
	if base <= 0 {
		base = 5 * time.Second
	}
	max := cfg.MaxBackoff
	if max < base {
		max = base
	}

	delay := base
	for i := 1; i < tryCount && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}

	jittered := time.Duration(float64(delay) * (0.8 + rand.Float64()*0.4))
	if jittered < base {
		return base
	}
	if jittered > max {
		return max
	}
	return jittered
}

func (w *Worker) observeBacklog(ctx context.Context) {
	pending, err := w.repo.CountPending(ctx)
	if err != nil {
		return
	}
	metrics.OutboxPending.Set(float64(pending))
}

func (w *Worker) maintain() {
	defer w.wg.Done()

	claimTimeout := w.outboxCfg.ClaimTimeout
	if claimTimeout <= 0 {
		claimTimeout = 5 * time.Minute
	}
	cleanupInterval := w.outboxCfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}

	releaseTicker := time.NewTicker(claimTimeout)
	defer releaseTicker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-releaseTicker.C:
			ctx := context.Background()
			released, err := w.repo.ReleaseStuckClaims(ctx, claimTimeout)
			if err != nil {
				log.Printf("Outbox claim release failed: %v", err)
			} else if released > 0 {
				log.Printf("Released %d stuck outbox claims", released)
			}
		case <-cleanupTicker.C:
			ctx := context.Background()
			removed, err := w.repo.CleanupProcessed(ctx, w.outboxCfg.Retention)
			if err != nil {
				log.Printf("Outbox cleanup failed: %v", err)
			} else if removed > 0 {
				log.Printf("Cleaned up %d processed outbox rows", removed)
			}
		}
	}
}

// partitionKey routes every message of one event to the same partition so
// consumers see them in publish order.
func partitionKey(msg *Message) string {
	var probe struct {
		EventID uuid.UUID `json:"event_id"`
	}
	if err := json.Unmarshal([]byte(msg.Payload), &probe); err == nil && probe.EventID != uuid.Nil {
		return probe.EventID.String()
	}
	return msg.EventType
}
