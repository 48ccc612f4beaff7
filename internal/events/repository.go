package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"gatherly/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetAll(ctx context.Context, query EventListQuery) ([]Event, int64, error)
	GetUpcoming(ctx context.Context, limit int) ([]Event, error)
	SetPublished(ctx context.Context, id uuid.UUID, published bool) (*Event, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, event *Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*Event, error) {
	var event Event

	// First, get the current event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}

	// Update the event
	if err := r.db.WithContext(ctx).Model(&event).Updates(updates).Error; err != nil {
		return nil, err
	}

	// Return updated event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}

	return &event, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Event{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *repository) GetAll(ctx context.Context, query EventListQuery) ([]Event, int64, error) {
	var events []Event
	var totalCount int64

	// Build the query
	db := r.db.WithContext(ctx).Model(&Event{})

	// Apply filters
	if query.Search != "" {
		searchTerm := "%" + strings.ToLower(query.Search) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(location) LIKE ?",
			searchTerm, searchTerm, searchTerm)
	}

	if query.Location != "" {
		db = db.Where("LOWER(location) LIKE ?", "%"+strings.ToLower(query.Location)+"%")
	}

	if query.PublishedOnly {
		db = db.Where("is_published = ?", true)
	}

	// Date filters
	if query.DateFrom != "" {
		if dateFrom, err := time.Parse("2006-01-02", query.DateFrom); err == nil {
			db = db.Where("start_utc >= ?", dateFrom)
		}
	}

	if query.DateTo != "" {
		if dateTo, err := time.Parse("2006-01-02", query.DateTo); err == nil {
			// Add 24 hours to include the entire day
			dateTo = dateTo.Add(24 * time.Hour)
			db = db.Where("start_utc < ?", dateTo)
		}
	}

	// Count total records
	if err := db.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 10
	}

	offset := (query.Page - 1) * query.Limit

	// Get paginated results
	err := db.Order("start_utc ASC").
		Offset(offset).
		Limit(query.Limit).
		Find(&events).Error

	return events, totalCount, err
}

func (r *repository) GetUpcoming(ctx context.Context, limit int) ([]Event, error) {
	var events []Event
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).
		Where("start_utc > ? AND is_published = ?", now, true).
		Order("start_utc ASC").
		Limit(limit).
		Find(&events).Error

	return events, err
}

// SetPublished toggles visibility; writing the current value again is a no-op
func (r *repository) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*Event, error) {
	var event Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}

	if event.IsPublished == published {
		return &event, nil
	}

	if err := r.db.WithContext(ctx).Model(&event).Update("is_published", published).Error; err != nil {
		return nil, err
	}

	event.IsPublished = published
	return &event, nil
}
