package events

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name           string    `json:"name" gorm:"not null;size:200"`
	Description    string    `json:"description" gorm:"type:text"`
	Location       string    `json:"location" gorm:"size:500"`
	Timezone       string    `json:"timezone" gorm:"size:64;default:'UTC'"`
	StartUTC       time.Time `json:"start_utc" gorm:"column:start_utc;not null"`
	EndUTC         time.Time `json:"end_utc" gorm:"column:end_utc;not null"`
	Capacity       int       `json:"capacity" gorm:"not null;check:capacity > 0"`
	OrganizerID    uuid.UUID `json:"organizer_id" gorm:"type:uuid;not null"`
	IsPublished    bool      `json:"is_published" gorm:"not null;default:false"`
	IsWaitlistOpen bool      `json:"is_waitlist_open" gorm:"not null;default:true"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type EventResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	Timezone       string    `json:"timezone"`
	StartUTC       time.Time `json:"start_utc"`
	EndUTC         time.Time `json:"end_utc"`
	Capacity       int       `json:"capacity"`
	OrganizerID    string    `json:"organizer_id"`
	IsPublished    bool      `json:"is_published"`
	IsWaitlistOpen bool      `json:"is_waitlist_open"`
	ConfirmedCount int       `json:"confirmed_count"`
	AvailableSpots int       `json:"available_spots"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateEventRequest struct {
	Name           string    `json:"name" binding:"required,min=3,max=200"`
	Description    string    `json:"description" binding:"max=4000"`
	Location       string    `json:"location" binding:"max=500"`
	Timezone       string    `json:"timezone" binding:"omitempty,max=64"`
	StartUTC       time.Time `json:"start_utc" binding:"required"`
	EndUTC         time.Time `json:"end_utc" binding:"required"`
	Capacity       int       `json:"capacity" binding:"required,min=1"`
	IsWaitlistOpen *bool     `json:"is_waitlist_open"`
}

type UpdateEventRequest struct {
	Name           *string    `json:"name" binding:"omitempty,min=3,max=200"`
	Description    *string    `json:"description" binding:"omitempty,max=4000"`
	Location       *string    `json:"location" binding:"omitempty,max=500"`
	Timezone       *string    `json:"timezone" binding:"omitempty,max=64"`
	StartUTC       *time.Time `json:"start_utc"`
	EndUTC         *time.Time `json:"end_utc"`
	Capacity       *int       `json:"capacity" binding:"omitempty,min=1"`
	IsWaitlistOpen *bool      `json:"is_waitlist_open"`
}

type EventListQuery struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	Limit         int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Search        string `form:"search"`
	Location      string `form:"location"`
	PublishedOnly bool   `form:"published_only"`
	DateFrom      string `form:"date_from"`
	DateTo        string `form:"date_to"`
}

type PaginatedEvents struct {
	Events     []EventResponse `json:"events"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// Helper method to convert Event to EventResponse
// Note: registration counts are populated separately by the service layer
func (e *Event) ToResponse() EventResponse {
	return EventResponse{
		ID:             e.ID.String(),
		Name:           e.Name,
		Description:    e.Description,
		Location:       e.Location,
		Timezone:       e.Timezone,
		StartUTC:       e.StartUTC,
		EndUTC:         e.EndUTC,
		Capacity:       e.Capacity,
		OrganizerID:    e.OrganizerID.String(),
		IsPublished:    e.IsPublished,
		IsWaitlistOpen: e.IsWaitlistOpen,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}
