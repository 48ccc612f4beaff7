package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action names the registration transition a notification describes
type Action string

const (
	ActionRegistered Action = "registered"
	ActionWaitlisted Action = "waitlisted"
	ActionPromoted   Action = "promoted"
)

// TopicPrefix addresses the per-event fan-out topics. Subscribers interested
// in a single event consume TopicFor(eventID) only.
const TopicPrefix = "eventRegistration_"

func TopicFor(eventID uuid.UUID) string {
	return TopicPrefix + eventID.String()
}

// EventRegistrationNotification is the subscriber-facing payload published for
// each registration transition. Title and name are resolved at publish time so
// subscribers need no database access.
type EventRegistrationNotification struct {
	EventID    uuid.UUID `json:"event_id"`
	EventTitle string    `json:"event_title"`
	UserID     uuid.UUID `json:"user_id"`
	UserName   string    `json:"user_name"`
	Action     Action    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`

	// RegistrationID is carried for deduplication; it is not part of the
	// subscriber contract.
	RegistrationID uuid.UUID `json:"registration_id"`
}

// DedupKey is the notification's natural identity. A redelivered domain event
// produces the same key, so the idempotency store suppresses the duplicate.
func (n *EventRegistrationNotification) DedupKey() string {
	return fmt.Sprintf("notify:%s:%s:%d", n.RegistrationID, n.Action, n.Timestamp.UTC().UnixNano())
}

func (n *EventRegistrationNotification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}
