package registrations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gatherly/internal/dispatch"
	"gatherly/internal/domain"
	"gatherly/pkg/logger"
	"gatherly/pkg/metrics"
)

// syncHandlers fills freed slots and keeps waitlist positions contiguous.
// These are the only code paths that mutate registrations other than the
// requester's own.
type syncHandlers struct {
	repo       Repository
	dispatcher dispatch.Dispatcher
	logger     *logger.Logger
}

// RegisterSyncHandlers wires promotion and reindex into the dispatcher's
// synchronous routing.
func RegisterSyncHandlers(d dispatch.Dispatcher, repo Repository, appLogger *logger.Logger) {
	if appLogger == nil {
		appLogger = logger.GetDefault()
	}
	h := &syncHandlers{repo: repo, dispatcher: d, logger: appLogger}

	d.RegisterSync(domain.EventTypeRegistrationCancelled, h.PromoteOnCancel)
	d.RegisterSync(domain.EventTypeCapacityIncreased, h.PromoteOnCapacityIncrease)
	d.RegisterSync(domain.EventTypeWaitlistRemoval, h.ReindexOnRemoval)
}

// PromoteOnCancel fills whatever slots the cancellation freed. The promotion
// algorithm recomputes free slots itself, so a cancelled waitlisted row simply
// results in a reindex.
func (h *syncHandlers) PromoteOnCancel(ctx context.Context, tx *gorm.DB, evt domain.Event) error {
	cancelled, ok := evt.(domain.RegistrationCancelled)
	if !ok {
		return fmt.Errorf("promotion handler: unexpected event %T", evt)
	}
	return h.promote(ctx, tx, cancelled.EventID, "cancellation")
}

// PromoteOnCapacityIncrease fills the slots a capacity increase opened.
func (h *syncHandlers) PromoteOnCapacityIncrease(ctx context.Context, tx *gorm.DB, evt domain.Event) error {
	increased, ok := evt.(domain.EventCapacityIncreased)
	if !ok {
		return fmt.Errorf("promotion handler: unexpected event %T", evt)
	}
	return h.promote(ctx, tx, increased.EventID, "capacity")
}

// ReindexOnRemoval restores the contiguous 1..N position sequence after a
// waitlisted row left the queue.
func (h *syncHandlers) ReindexOnRemoval(ctx context.Context, tx *gorm.DB, evt domain.Event) error {
	removal, ok := evt.(domain.WaitlistRemoval)
	if !ok {
		return fmt.Errorf("reindex handler: unexpected event %T", evt)
	}
	return h.withScope(ctx, tx, removal.EventID, func(scope EventScope) error {
		waitlisted, err := scope.Waitlisted()
		if err != nil {
			return err
		}

		moved, err := renumber(scope, waitlisted, time.Now().UTC())
		if err != nil {
			return err
		}
		if len(moved) == 0 {
			return nil
		}
		return h.dispatcher.Raise(ctx, scope.Tx(), moved...)
	})
}

// promote runs the promotion algorithm: confirm the first free-slot many
// waitlisted rows in position order, then renumber the remainder. Applying it
// twice to the same state is a no-op the second time.
func (h *syncHandlers) promote(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, trigger string) error {
	return h.withScope(ctx, tx, eventID, func(scope EventScope) error {
		event, err := scope.Event()
		if err != nil {
			return err
		}
		confirmed, err := scope.ConfirmedCount()
		if err != nil {
			return err
		}
		waitlisted, err := scope.Waitlisted()
		if err != nil {
			return err
		}

		slots := event.Capacity - confirmed
		if slots < 0 {
			slots = 0
		}
		promoted := slots
		if promoted > len(waitlisted) {
			promoted = len(waitlisted)
		}

		now := time.Now().UTC()
		raised := make([]domain.Event, 0, len(waitlisted))

		for i := 0; i < promoted; i++ {
			row := &waitlisted[i]
			oldPosition := row.PositionInQueue

			if err := scope.Update(row.ID, map[string]interface{}{
				"status":            StatusConfirmed,
				"position_in_queue": nil,
			}); err != nil {
				return err
			}

			raised = append(raised, domain.RegistrationPromoted{
				RegistrationID: row.ID,
				EventID:        eventID,
				UserID:         row.UserID,
				OldPosition:    oldPosition,
				Timestamp:      now,
			})
			metrics.Promotions.WithLabelValues(trigger).Inc()
			h.logger.LogWaitlistPromotion(ctx, row.ID.String(), eventID.String(), derefPosition(oldPosition))
		}

		moved, err := renumber(scope, waitlisted[promoted:], now)
		if err != nil {
			return err
		}
		raised = append(raised, moved...)

		if len(raised) == 0 {
			return nil
		}
		return h.dispatcher.Raise(ctx, scope.Tx(), raised...)
	})
}

// withScope runs fn on the caller's transaction when one is supplied (it
// already holds the event's advisory lock) and opens a fresh scope otherwise.
func (h *syncHandlers) withScope(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, fn func(scope EventScope) error) error {
	if tx != nil {
		return fn(scopeOn(tx, eventID))
	}
	return h.repo.WithEventScope(ctx, eventID, fn)
}

// renumber assigns contiguous positions 1..N to rows already in queue order,
// raising a position change for every row that moved.
func renumber(scope EventScope, rows []Registration, now time.Time) ([]domain.Event, error) {
	var raised []domain.Event
	for i := range rows {
		row := &rows[i]
		want := i + 1
		if row.PositionInQueue != nil && *row.PositionInQueue == want {
			continue
		}

		oldPosition := derefPosition(row.PositionInQueue)
		if err := scope.Update(row.ID, map[string]interface{}{"position_in_queue": want}); err != nil {
			return nil, err
		}

		raised = append(raised, domain.WaitlistPositionChanged{
			RegistrationID: row.ID,
			EventID:        scope.EventID(),
			UserID:         row.UserID,
			OldPosition:    oldPosition,
			NewPosition:    want,
			Timestamp:      now,
		})
	}
	return raised, nil
}
