package outbox

import (
	"encoding/json"
	"time"

	"gatherly/internal/domain"

	"github.com/google/uuid"
)

type Status int

const (
	StatusPending   Status = 0
	StatusClaimed   Status = 1
	StatusProcessed Status = 2
	StatusFailed    Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusClaimed:
		return "CLAIMED"
	case StatusProcessed:
		return "PROCESSED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Message is one durable domain event awaiting delivery. Rows are written in
// the same transaction as the state change that produced them.
type Message struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	EventType     string     `json:"event_type" gorm:"not null;size:128"`
	Payload       string     `json:"payload" gorm:"type:jsonb;not null"`
	OccurredOn    time.Time  `json:"occurred_on" gorm:"not null"`
	Status        Status     `json:"status" gorm:"type:smallint;not null;default:0"`
	TryCount      int        `json:"try_count" gorm:"not null;default:0"`
	LastError     string     `json:"last_error,omitempty" gorm:"type:text"`
	NextAttemptAt time.Time  `json:"next_attempt_at" gorm:"not null"`
	ClaimedBy     string     `json:"claimed_by,omitempty" gorm:"size:128"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "outbox_messages"
}

// NewMessage encodes a domain event into a pending outbox row
func NewMessage(evt domain.Event) (*Message, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:            uuid.New(),
		EventType:     evt.EventType(),
		Payload:       string(payload),
		OccurredOn:    evt.OccurredOn(),
		Status:        StatusPending,
		NextAttemptAt: time.Now().UTC(),
	}, nil
}
