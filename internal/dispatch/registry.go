package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gatherly/internal/domain"
)

var ErrUnknownEventType = errors.New("unknown event type")

// Decoder turns a queue payload back into its typed domain event
type Decoder func(payload []byte) (domain.Event, error)

// Registry maps event type names to decoders. The consumer looks types up
// here instead of reflecting over payloads.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[string]Decoder),
	}
}

func (r *Registry) Register(eventType string, decoder Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[eventType] = decoder
}

func (r *Registry) Decode(eventType string, payload []byte) (domain.Event, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[eventType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	return decoder(payload)
}

// NewDefaultRegistry wires decoders for every domain event type
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(domain.EventTypeRegistrationCreated, func(payload []byte) (domain.Event, error) {
		var evt domain.RegistrationCreated
		err := json.Unmarshal(payload, &evt)
		return evt, err
	})
	r.Register(domain.EventTypeRegistrationWaitlisted, func(payload []byte) (domain.Event, error) {
		var evt domain.RegistrationWaitlisted
		err := json.Unmarshal(payload, &evt)
		return evt, err
	})
	r.Register(domain.EventTypeRegistrationCancelled, func(payload []byte) (domain.Event, error) {
		var evt domain.RegistrationCancelled
		err := json.Unmarshal(payload, &evt)
		return evt, err
	})
	r.Register(domain.EventTypeRegistrationPromoted, func(payload []byte) (domain.Event, error) {
		var evt domain.RegistrationPromoted
		err := json.Unmarshal(payload, &evt)
		return evt, err
	})
	r.Register(domain.EventTypeWaitlistRemoval, func(payload []byte) (domain.Event, error) {
		var evt domain.WaitlistRemoval
		err := json.Unmarshal(payload, &evt)
		return evt, err
	})
	r.Register(domain.EventTypeWaitlistPositionMoved, func(payload []byte) (domain.Event, error) {
		var evt domain.WaitlistPositionChanged
		err := json.Unmarshal(payload, &evt)
		return evt, err
	})
	r.Register(domain.EventTypeCapacityIncreased, func(payload []byte) (domain.Event, error) {
		var evt domain.EventCapacityIncreased
		err := json.Unmarshal(payload, &evt)
		return evt, err
	})

	return r
}
