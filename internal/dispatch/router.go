package dispatch

import (
	"context"
	"fmt"
	"sync"

	"gatherly/internal/domain"
)

// Handler consumes a decoded domain event on the async side. Handlers are
// invoked at-least-once and must be idempotent.
type Handler func(ctx context.Context, evt domain.Event) error

// Router fans a decoded event out to every handler subscribed to its type
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewHandlerRouter() *Router {
	return &Router{
		handlers: make(map[string][]Handler),
	}
}

func (r *Router) On(eventType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], handler)
}

// Dispatch runs all handlers for the event's type. The first failure aborts;
// the whole message is retried, so handlers tolerate re-delivery.
func (r *Router) Dispatch(ctx context.Context, evt domain.Event) error {
	r.mu.RLock()
	handlers := r.handlers[evt.EventType()]
	r.mu.RUnlock()

	for _, handle := range handlers {
		if err := handle(ctx, evt); err != nil {
			return fmt.Errorf("handler for %s: %w", evt.EventType(), err)
		}
	}
	return nil
}

func (r *Router) Handles(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[eventType]) > 0
}
