package domain

import (
	"time"

	"github.com/google/uuid"
)

// Qualified event type names. These are persisted in outbox rows and carried
// on the wire, so they must stay stable across releases.
const (
	EventTypeRegistrationCreated    = "registration.created"
	EventTypeRegistrationWaitlisted = "registration.waitlisted"
	EventTypeRegistrationCancelled  = "registration.cancelled"
	EventTypeRegistrationPromoted   = "registration.promoted"
	EventTypeWaitlistRemoval        = "waitlist.removal"
	EventTypeWaitlistPositionMoved  = "waitlist.position_changed"
	EventTypeCapacityIncreased      = "event.capacity_increased"
)

// Event is a domain event raised by a command handler. Implementations are
// immutable value types; the dispatcher decides whether each one runs
// in-process or travels through the outbox.
type Event interface {
	EventType() string
	OccurredOn() time.Time
}

// RegistrationCreated is raised for every accepted registration, confirmed or
// waitlisted.
type RegistrationCreated struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	UserID         uuid.UUID `json:"user_id"`
	Confirmed      bool      `json:"confirmed"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e RegistrationCreated) EventType() string     { return EventTypeRegistrationCreated }
func (e RegistrationCreated) OccurredOn() time.Time { return e.Timestamp }

// RegistrationWaitlisted is raised in addition to RegistrationCreated when the
// event was at capacity and the registration entered the queue.
type RegistrationWaitlisted struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	UserID         uuid.UUID `json:"user_id"`
	Position       int       `json:"position"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e RegistrationWaitlisted) EventType() string     { return EventTypeRegistrationWaitlisted }
func (e RegistrationWaitlisted) OccurredOn() time.Time { return e.Timestamp }

// RegistrationCancelled triggers the synchronous promotion handler; the next
// waitlisted registration takes the freed slot before the command returns.
type RegistrationCancelled struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	UserID         uuid.UUID `json:"user_id"`
	WasConfirmed   bool      `json:"was_confirmed"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e RegistrationCancelled) EventType() string     { return EventTypeRegistrationCancelled }
func (e RegistrationCancelled) OccurredOn() time.Time { return e.Timestamp }

// RegistrationPromoted is raised when a waitlisted or pending registration
// becomes confirmed, either by the promotion handler or by an admin.
type RegistrationPromoted struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	UserID         uuid.UUID `json:"user_id"`
	OldPosition    *int      `json:"old_position,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e RegistrationPromoted) EventType() string     { return EventTypeRegistrationPromoted }
func (e RegistrationPromoted) OccurredOn() time.Time { return e.Timestamp }

// WaitlistRemoval is raised when a waitlisted registration leaves the queue
// without being promoted (cancellation). The reindex handler restores the
// contiguous 1..N position sequence synchronously.
type WaitlistRemoval struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	UserID         uuid.UUID `json:"user_id"`
	Position       int       `json:"position"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e WaitlistRemoval) EventType() string     { return EventTypeWaitlistRemoval }
func (e WaitlistRemoval) OccurredOn() time.Time { return e.Timestamp }

// WaitlistPositionChanged is raised per moved registration during a reindex.
type WaitlistPositionChanged struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	UserID         uuid.UUID `json:"user_id"`
	OldPosition    int       `json:"old_position"`
	NewPosition    int       `json:"new_position"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e WaitlistPositionChanged) EventType() string     { return EventTypeWaitlistPositionMoved }
func (e WaitlistPositionChanged) OccurredOn() time.Time { return e.Timestamp }

// EventCapacityIncreased is raised once per capacity-growing update with the
// number of newly available slots; the promotion handler consumes it
// synchronously.
type EventCapacityIncreased struct {
	EventID    uuid.UUID `json:"event_id"`
	Additional int       `json:"additional"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e EventCapacityIncreased) EventType() string     { return EventTypeCapacityIncreased }
func (e EventCapacityIncreased) OccurredOn() time.Time { return e.Timestamp }
