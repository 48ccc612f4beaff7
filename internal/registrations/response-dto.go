package registrations

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type RegistrationResponse struct {
	ID              uuid.UUID `json:"id"`
	EventID         uuid.UUID `json:"event_id"`
	UserID          uuid.UUID `json:"user_id"`
	Status          string    `json:"status"`
	PositionInQueue *int      `json:"position_in_queue,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	RegisteredAt    time.Time `json:"registered_at"`
	UserName        string    `json:"user_name,omitempty"`
	EventName       string    `json:"event_name,omitempty"`
}

type PaginatedRegistrations struct {
	Registrations []RegistrationResponse `json:"registrations"`
	TotalCount    int64                  `json:"total_count"`
	Page          int                    `json:"page"`
	Limit         int                    `json:"limit"`
	TotalPages    int                    `json:"total_pages"`
}

type WaitlistEntry struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	UserID         uuid.UUID `json:"user_id"`
	UserName       string    `json:"user_name,omitempty"`
	Position       int       `json:"position"`
	RegisteredAt   time.Time `json:"registered_at"`
}

type WaitlistSnapshot struct {
	EventID uuid.UUID       `json:"event_id"`
	Count   int             `json:"count"`
	Entries []WaitlistEntry `json:"entries"`
}

func (r *Registration) ToResponse() RegistrationResponse {
	resp := RegistrationResponse{
		ID:              r.ID,
		EventID:         r.EventID,
		UserID:          r.UserID,
		Status:          r.Status.String(),
		PositionInQueue: r.PositionInQueue,
		Notes:           r.Notes,
		RegisteredAt:    r.RegisteredAt,
	}
	if r.User != nil {
		resp.UserName = r.User.FullName()
	}
	if r.Event != nil {
		resp.EventName = r.Event.Name
	}
	return resp
}

func toPaginated(rows []Registration, total int64, page, limit int) *PaginatedRegistrations {
	responses := make([]RegistrationResponse, 0, len(rows))
	for i := range rows {
		responses = append(responses, rows[i].ToResponse())
	}
	return &PaginatedRegistrations{
		Registrations: responses,
		TotalCount:    total,
		Page:          page,
		Limit:         limit,
		TotalPages:    int(math.Ceil(float64(total) / float64(limit))),
	}
}
