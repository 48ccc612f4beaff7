package users

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:uuid_generate_v4()"`
	IdentityID uuid.UUID `json:"identity_id" gorm:"type:uuid;uniqueIndex;not null"`
	FirstName  string    `json:"first_name" gorm:"not null"`
	LastName   string    `json:"last_name" gorm:"not null"`
	Password   string    `json:"-" gorm:"not null"` // hide in json
	Role       Role      `json:"role" gorm:"not null;default:'USER'"`
	Email      string    `json:"email" gorm:"not null"`
	EmailIndex string    `json:"-" gorm:"uniqueIndex;not null"` // deterministic lookup column, survives encryption
	Phone      string    `json:"phone,omitempty"`
	IsActive   bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func IsValidRole(role string) bool {
	switch role {
	case string(RoleUser), string(RoleAdmin):
		return true
	default:
		return false
	}
}

// FullName joins the name parts the way notification payloads expect
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
