package registrations

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gatherly/internal/domain"
	"gatherly/internal/events"
)

type Repository interface {
	// Scoped mutation path; all writes go through an EventScope
	WithEventScope(ctx context.Context, eventID uuid.UUID, fn func(scope EventScope) error) error

	// Read paths (no row locking, no change tracking)
	GetByID(ctx context.Context, id uuid.UUID) (*Registration, error)
	List(ctx context.Context, spec *Specification) ([]Registration, error)
	Count(ctx context.Context, spec *Specification) (int64, error)
	GetWaitlist(ctx context.Context, eventID uuid.UUID) ([]Registration, error)
	GetUserRegistrations(ctx context.Context, userID uuid.UUID) ([]Registration, error)
	FindActive(ctx context.Context, eventID, userID uuid.UUID) (*Registration, error)
	CountByStatus(ctx context.Context, eventID uuid.UUID, status Status) (int, error)
	HasAnyForEvent(ctx context.Context, eventID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// AdvisoryLockKey derives the 64-bit per-event lock key from the event UUID.
// The mapping is part of the runtime contract: every process mutating one
// event's registrations must compute the same key.
func AdvisoryLockKey(eventID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(eventID[:])
	return int64(h.Sum64())
}

// WithEventScope opens a transaction, takes the event's advisory lock and runs
// fn. The lock is transaction-scoped, so commit, rollback and panic all
// release it.
func (r *repository) WithEventScope(ctx context.Context, eventID uuid.UUID, fn func(scope EventScope) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", AdvisoryLockKey(eventID)).Error; err != nil {
			return fmt.Errorf("failed to acquire event lock: %w", err)
		}
		return fn(&txScope{tx: tx, eventID: eventID})
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	var registration Registration
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&registration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRegistrationNotFound
		}
		return nil, err
	}
	return &registration, nil
}

func (r *repository) List(ctx context.Context, spec *Specification) ([]Registration, error) {
	var registrations []Registration
	err := spec.Apply(r.db.WithContext(ctx).Model(&Registration{})).Find(&registrations).Error
	return registrations, err
}

func (r *repository) Count(ctx context.Context, spec *Specification) (int64, error) {
	var count int64
	err := spec.applyWhere(r.db.WithContext(ctx).Model(&Registration{})).Count(&count).Error
	return count, err
}

func (r *repository) GetWaitlist(ctx context.Context, eventID uuid.UUID) ([]Registration, error) {
	return r.List(ctx, WaitlistOf(eventID).Preload("User"))
}

func (r *repository) GetUserRegistrations(ctx context.Context, userID uuid.UUID) ([]Registration, error) {
	return r.List(ctx, ByUser(userID).Preload("Event"))
}

// FindActive returns the user's non-Cancelled registration for the event, or
// ErrRegistrationNotFound when there is none.
func (r *repository) FindActive(ctx context.Context, eventID, userID uuid.UUID) (*Registration, error) {
	return findActive(r.db.WithContext(ctx), eventID, userID)
}

func (r *repository) CountByStatus(ctx context.Context, eventID uuid.UUID, status Status) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Registration{}).
		Where("event_id = ? AND status = ?", eventID, status).
		Count(&count).Error
	return int(count), err
}

func (r *repository) HasAnyForEvent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Registration{}).
		Where("event_id = ?", eventID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func findActive(db *gorm.DB, eventID, userID uuid.UUID) (*Registration, error) {
	var registration Registration
	err := db.
		Where("event_id = ? AND user_id = ? AND status <> ?", eventID, userID, StatusCancelled).
		First(&registration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRegistrationNotFound
		}
		return nil, err
	}
	return &registration, nil
}

// EventScope is a unit of work holding the per-event advisory lock. Every
// registration mutation for the event goes through one.
type EventScope interface {
	// Tx exposes the underlying transaction so outbox rows commit atomically
	// with the registration changes. Nil outside a database-backed scope.
	Tx() *gorm.DB
	EventID() uuid.UUID

	// Event reads the scoped event row inside the transaction.
	Event() (*events.Event, error)

	GetByID(id uuid.UUID) (*Registration, error)
	FindActive(userID uuid.UUID) (*Registration, error)
	Create(registration *Registration) error
	Update(id uuid.UUID, updates map[string]interface{}) error
	ConfirmedCount() (int, error)

	// Waitlisted returns the scoped event's queue in position order; rows
	// without a trustworthy position fall back to registration time, then id.
	Waitlisted() ([]Registration, error)

	// NextWaitlistPosition computes max(position_in_queue)+1 over the event's
	// waitlisted rows. Only valid under the scope's advisory lock.
	NextWaitlistPosition() (int, error)
}

type txScope struct {
	tx      *gorm.DB
	eventID uuid.UUID
}

// scopeOn wraps an open transaction that already holds the event's advisory
// lock. Used by sync handlers invoked from inside another scope.
func scopeOn(tx *gorm.DB, eventID uuid.UUID) EventScope {
	return &txScope{tx: tx, eventID: eventID}
}

func (s *txScope) Tx() *gorm.DB { return s.tx }

func (s *txScope) EventID() uuid.UUID { return s.eventID }

func (s *txScope) Event() (*events.Event, error) {
	var event events.Event
	err := s.tx.Where("id = ?", s.eventID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (s *txScope) GetByID(id uuid.UUID) (*Registration, error) {
	var registration Registration
	err := s.tx.Where("id = ? AND event_id = ?", id, s.eventID).First(&registration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRegistrationNotFound
		}
		return nil, err
	}
	return &registration, nil
}

func (s *txScope) FindActive(userID uuid.UUID) (*Registration, error) {
	return findActive(s.tx, s.eventID, userID)
}

func (s *txScope) Create(registration *Registration) error {
	return s.tx.Create(registration).Error
}

func (s *txScope) Update(id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	result := s.tx.Model(&Registration{}).
		Where("id = ? AND event_id = ?", id, s.eventID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

func (s *txScope) ConfirmedCount() (int, error) {
	var count int64
	err := s.tx.Model(&Registration{}).
		Where("event_id = ? AND status = ?", s.eventID, StatusConfirmed).
		Count(&count).Error
	return int(count), err
}

func (s *txScope) Waitlisted() ([]Registration, error) {
	var registrations []Registration
	err := WaitlistOf(s.eventID).Apply(s.tx.Model(&Registration{})).Find(&registrations).Error
	return registrations, err
}

func (s *txScope) NextWaitlistPosition() (int, error) {
	var next int
	err := s.tx.Model(&Registration{}).
		Where("event_id = ? AND status = ?", s.eventID, StatusWaitlisted).
		Select("COALESCE(MAX(position_in_queue), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute next waitlist position: %w", err)
	}
	return next, nil
}
