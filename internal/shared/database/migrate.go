package database

import (
	"gatherly/internal/audit"
	"gatherly/internal/events"
	"gatherly/internal/outbox"
	"gatherly/internal/registrations"
	"gatherly/internal/users"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&events.Event{},
		&registrations.Registration{},
		&outbox.Message{},
		&audit.Entry{},
	)
}
