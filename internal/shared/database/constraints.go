package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds critical database constraints for concurrency control
func MigrateConstraints(db *gorm.DB) error {
	// One active registration per user per event (cancelled rows excluded)
	err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uq_registrations_active_user_event
		ON event_registrations (event_id, user_id)
		WHERE status <> 3;
	`).Error
	if err != nil {
		return err
	}

	// Waitlist ordering scans
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_registrations_event_status_position
		ON event_registrations (event_id, status, position_in_queue);
	`).Error
	if err != nil {
		return err
	}

	// Waitlisted rows only, for promotion and reindex passes
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_registrations_waitlist_positions
		ON event_registrations (event_id, position_in_queue)
		WHERE status = 2;
	`).Error
	if err != nil {
		return err
	}

	// Arrival-order reads within an event
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_registrations_event_status_registered
		ON event_registrations (event_id, status, registered_at);
	`).Error
	if err != nil {
		return err
	}

	// Per-user registration lookups
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_registrations_user_status
		ON event_registrations (user_id, status);
	`).Error
	if err != nil {
		return err
	}

	// Upcoming event listings
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_published_start
		ON events (is_published, start_utc);
	`).Error
	if err != nil {
		return err
	}

	// Organizer dashboards
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_organizer_start
		ON events (organizer_id, start_utc);
	`).Error
	if err != nil {
		return err
	}

	// Outbox claim scans
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_outbox_status_next_attempt
		ON outbox_messages (status, next_attempt_at);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
