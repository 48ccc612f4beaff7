package audit

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"gatherly/internal/dispatch"
	"gatherly/internal/domain"
	"gatherly/pkg/logger"
)

// Recorder turns domain events into audit entries. Registration lifecycle
// events arrive through the outbox and are recorded by async handlers;
// cancellations and capacity changes never travel through the outbox, so the
// recorder also subscribes synchronously and writes those entries on the
// command's own transaction.
//
// Position-change events are not recorded: a single reindex can move the
// whole queue and the promotion entry already captures the cause.
type Recorder struct {
	repo Repository
	log  *logger.Logger
}

func NewRecorder(repo Repository, appLogger *logger.Logger) *Recorder {
	if appLogger == nil {
		appLogger = logger.GetDefault()
	}
	return &Recorder{repo: repo, log: appLogger}
}

// RegisterAsyncHandlers subscribes the recorder to outbox-delivered events
func (r *Recorder) RegisterAsyncHandlers(router *dispatch.Router) {
	router.On(domain.EventTypeRegistrationCreated, r.record)
	router.On(domain.EventTypeRegistrationWaitlisted, r.record)
	router.On(domain.EventTypeRegistrationPromoted, r.record)
}

// RegisterSyncHandlers subscribes the recorder to the in-process event types
func (r *Recorder) RegisterSyncHandlers(d dispatch.Dispatcher) {
	d.RegisterSync(domain.EventTypeRegistrationCancelled, r.recordSync)
	d.RegisterSync(domain.EventTypeCapacityIncreased, r.recordSync)
}

func (r *Recorder) record(ctx context.Context, evt domain.Event) error {
	entry, err := entryFor(evt)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("audit: record %s: %w", entry.Action, err)
	}
	return nil
}

func (r *Recorder) recordSync(ctx context.Context, tx *gorm.DB, evt domain.Event) error {
	entry, err := entryFor(evt)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	if tx != nil {
		err = r.repo.CreateTx(tx, entry)
	} else {
		err = r.repo.Create(ctx, entry)
	}
	if err != nil {
		return fmt.Errorf("audit: record %s: %w", entry.Action, err)
	}
	return nil
}

// entryFor maps a domain event onto an audit row. Unknown types record
// nothing; the dispatcher routes them here only when another handler shares
// the subscription.
func entryFor(evt domain.Event) (*Entry, error) {
	switch e := evt.(type) {
	case domain.RegistrationCreated:
		return newEntry(e.EventType(), EntityTypeRegistration, e.RegistrationID, &e.UserID, e.Timestamp, map[string]interface{}{
			"event_id":  e.EventID,
			"confirmed": e.Confirmed,
		}), nil

	case domain.RegistrationWaitlisted:
		return newEntry(e.EventType(), EntityTypeRegistration, e.RegistrationID, &e.UserID, e.Timestamp, map[string]interface{}{
			"event_id": e.EventID,
			"position": e.Position,
		}), nil

	case domain.RegistrationPromoted:
		metadata := map[string]interface{}{"event_id": e.EventID}
		if e.OldPosition != nil {
			metadata["old_position"] = *e.OldPosition
		}
		return newEntry(e.EventType(), EntityTypeRegistration, e.RegistrationID, &e.UserID, e.Timestamp, metadata), nil

	case domain.RegistrationCancelled:
		return newEntry(e.EventType(), EntityTypeRegistration, e.RegistrationID, &e.UserID, e.Timestamp, map[string]interface{}{
			"event_id":      e.EventID,
			"was_confirmed": e.WasConfirmed,
		}), nil

	case domain.EventCapacityIncreased:
		return newEntry(e.EventType(), EntityTypeEvent, e.EventID, nil, e.Timestamp, map[string]interface{}{
			"additional": e.Additional,
		}), nil

	default:
		return nil, nil
	}
}
