package registrations

import (
	"context"

	"github.com/google/uuid"

	"gatherly/internal/users"
)

// CounterAdapter implements the events.RegistrationCounter interface using the
// registration repository. The adapter prevents import cycles while letting
// the events service read registration counts.
type CounterAdapter struct {
	repo Repository
}

func NewCounterAdapter(repo Repository) *CounterAdapter {
	return &CounterAdapter{repo: repo}
}

func (a *CounterAdapter) ConfirmedCount(ctx context.Context, eventID uuid.UUID) (int, error) {
	return a.repo.CountByStatus(ctx, eventID, StatusConfirmed)
}

func (a *CounterAdapter) HasAny(ctx context.Context, eventID uuid.UUID) (bool, error) {
	return a.repo.HasAnyForEvent(ctx, eventID)
}

// ExportAdapter implements the users.RegistrationSource interface so the DSAR
// export can include registration history without an import cycle.
type ExportAdapter struct {
	repo Repository
}

func NewExportAdapter(repo Repository) *ExportAdapter {
	return &ExportAdapter{repo: repo}
}

func (a *ExportAdapter) UserRegistrations(ctx context.Context, userID uuid.UUID) ([]users.RegistrationRecord, error) {
	rows, err := a.repo.GetUserRegistrations(ctx, userID)
	if err != nil {
		return nil, err
	}

	records := make([]users.RegistrationRecord, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		record := users.RegistrationRecord{
			ID:           row.ID,
			EventID:      row.EventID,
			Status:       row.Status.String(),
			Position:     row.PositionInQueue,
			RegisteredAt: row.RegisteredAt,
		}
		if row.Event != nil {
			record.EventName = row.Event.Name
		}
		records = append(records, record)
	}
	return records, nil
}
