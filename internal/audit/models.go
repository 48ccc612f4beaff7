package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable audit trail row. Entries are written by the recorder
// handlers and never updated or deleted by application code.
type Entry struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Action     string     `json:"action" gorm:"not null;size:64;index"`
	EntityType string     `json:"entity_type" gorm:"not null;size:64"`
	EntityID   uuid.UUID  `json:"entity_id" gorm:"type:uuid;not null;index"`
	UserID     *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;index"`
	Metadata   string     `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for GORM
func (Entry) TableName() string {
	return "audit_entries"
}

const (
	EntityTypeRegistration = "registration"
	EntityTypeEvent        = "event"
)

// newEntry builds a row with encoded metadata. Metadata that fails to encode
// is dropped rather than blocking the audit write.
func newEntry(action, entityType string, entityID uuid.UUID, userID *uuid.UUID, occurredOn time.Time, metadata map[string]interface{}) *Entry {
	entry := &Entry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		CreatedAt:  occurredOn.UTC(),
	}
	if len(metadata) > 0 {
		if encoded, err := json.Marshal(metadata); err == nil {
			entry.Metadata = string(encoded)
		}
	}
	return entry
}

// ListQuery filters the admin trail listing. Zero values mean "any".
type ListQuery struct {
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	UserID     *uuid.UUID
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

func (q *ListQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}
}

// ListResult is the paginated admin response shape
type ListResult struct {
	Entries    []Entry `json:"entries"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"total_pages"`
}
