package registrations

import (
	"time"

	"github.com/google/uuid"

	"gatherly/internal/events"
	"gatherly/internal/users"
)

// Registration connects a user to an event with lifecycle status. Rows are
// never physically deleted; cancellation is a status change.
type Registration struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID         uuid.UUID `gorm:"type:uuid;not null" json:"event_id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	Status          Status    `gorm:"type:smallint;not null;default:0" json:"status"`
	PositionInQueue *int      `gorm:"column:position_in_queue" json:"position_in_queue,omitempty"`
	Notes           string    `gorm:"size:1000" json:"notes,omitempty"`
	RegisteredAt    time.Time `gorm:"column:registered_at;not null;autoCreateTime" json:"registered_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Relationships
	Event *events.Event `json:"event,omitempty" gorm:"foreignKey:EventID"`
	User  *users.User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (Registration) TableName() string {
	return "event_registrations"
}

// IsWaitlisted reports whether the row currently holds a queue position.
func (r *Registration) IsWaitlisted() bool {
	return r.Status == StatusWaitlisted
}
