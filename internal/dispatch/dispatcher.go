package dispatch

import (
	"context"
	"fmt"
	"sync"

	"gatherly/internal/domain"
	"gatherly/internal/outbox"

	"gorm.io/gorm"
)

// SyncHandler runs in-process before the raising command returns. When the
// caller supplies a transaction the handler must do its writes on it; a nil
// tx means the handler opens its own scope.
type SyncHandler func(ctx context.Context, tx *gorm.DB, evt domain.Event) error

// Dispatcher routes each domain event into one of two pipelines: the fixed
// synchronous set (and any type with registered sync handlers) runs
// in-process, everything else is encoded into an outbox row on the caller's
// transaction for the queue worker.
type Dispatcher interface {
	RegisterSync(eventType string, handler SyncHandler)
	Raise(ctx context.Context, tx *gorm.DB, events ...domain.Event) error
}

// syncEventTypes never travel through the outbox, handlers registered or not.
// Promotion and reindex must complete before the raising command returns, and
// position-change notifications are ordered.
var syncEventTypes = map[string]bool{
	domain.EventTypeRegistrationCancelled: true,
	domain.EventTypeCapacityIncreased:     true,
	domain.EventTypeWaitlistRemoval:       true,
	domain.EventTypeWaitlistPositionMoved: true,
}

type dispatcher struct {
	mu     sync.RWMutex
	sync   map[string][]SyncHandler
	outbox outbox.Repository
	db     *gorm.DB
}

func NewDispatcher(db *gorm.DB, outboxRepo outbox.Repository) Dispatcher {
	return &dispatcher{
		sync:   make(map[string][]SyncHandler),
		outbox: outboxRepo,
		db:     db,
	}
}

func (d *dispatcher) RegisterSync(eventType string, handler SyncHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sync[eventType] = append(d.sync[eventType], handler)
}

func (d *dispatcher) Raise(ctx context.Context, tx *gorm.DB, events ...domain.Event) error {
	for _, evt := range events {
		handlers := d.syncHandlers(evt.EventType())

		if syncEventTypes[evt.EventType()] || len(handlers) > 0 {
			for _, handle := range handlers {
				if err := handle(ctx, tx, evt); err != nil {
					return fmt.Errorf("sync handler for %s: %w", evt.EventType(), err)
				}
			}
			continue
		}

		msg, err := outbox.NewMessage(evt)
		if err != nil {
			return fmt.Errorf("encode %s: %w", evt.EventType(), err)
		}

		appendTx := tx
		if appendTx == nil {
			appendTx = d.db.WithContext(ctx)
		}
		if err := d.outbox.AppendTx(appendTx, msg); err != nil {
			return fmt.Errorf("append %s to outbox: %w", evt.EventType(), err)
		}
	}

	return nil
}

func (d *dispatcher) syncHandlers(eventType string) []SyncHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sync[eventType]
}
