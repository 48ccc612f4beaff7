package users

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Profile is the outward-facing user shape, always decrypted
type Profile struct {
	ID         uuid.UUID `json:"id"`
	IdentityID uuid.UUID `json:"identity_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// RegistrationRecord is the registration slice of a data export. The
// registrations package adapts its rows into this shape so the export
// does not depend on registration internals.
type RegistrationRecord struct {
	ID           uuid.UUID `json:"id"`
	EventID      uuid.UUID `json:"event_id"`
	EventName    string    `json:"event_name"`
	Status       string    `json:"status"`
	Position     *int      `json:"position_in_queue,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// RegistrationSource feeds registration history into data exports
type RegistrationSource interface {
	UserRegistrations(ctx context.Context, userID uuid.UUID) ([]RegistrationRecord, error)
}

// ExportBundle is the DSAR payload: everything we hold about one user
type ExportBundle struct {
	GeneratedAt   time.Time            `json:"generated_at"`
	User          Profile              `json:"user"`
	Registrations []RegistrationRecord `json:"registrations"`
}

func ToProfile(u *User) Profile {
	return Profile{
		ID:         u.ID,
		IdentityID: u.IdentityID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Phone:      u.Phone,
		Role:       string(u.Role),
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt,
	}
}
