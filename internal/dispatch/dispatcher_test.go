package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormtests "gorm.io/gorm/utils/tests"

	"gatherly/internal/dispatch"
	"gatherly/internal/domain"
	"gatherly/internal/outbox"
)

// appendRecorder captures outbox appends along with the transaction handle
// they arrived on.
type appendRecorder struct {
	appended []*outbox.Message
	seenTx   []*gorm.DB
	err      error
}

func (r *appendRecorder) AppendTx(tx *gorm.DB, messages ...*outbox.Message) error {
	if r.err != nil {
		return r.err
	}
	r.appended = append(r.appended, messages...)
	r.seenTx = append(r.seenTx, tx)
	return nil
}

func (r *appendRecorder) ClaimBatch(ctx context.Context, workerID string, limit int) ([]outbox.Message, error) {
	return nil, nil
}
func (r *appendRecorder) MarkProcessed(ctx context.Context, id uuid.UUID) error { return nil }
func (r *appendRecorder) Reschedule(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	return nil
}
func (r *appendRecorder) MarkDead(ctx context.Context, id uuid.UUID, lastError string) error {
	return nil
}
func (r *appendRecorder) ReleaseStuckClaims(ctx context.Context, claimTimeout time.Duration) (int64, error) {
	return 0, nil
}
func (r *appendRecorder) CleanupProcessed(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}
func (r *appendRecorder) CountPending(ctx context.Context) (int64, error) { return 0, nil }
func (r *appendRecorder) GetByID(ctx context.Context, id uuid.UUID) (*outbox.Message, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *appendRecorder) eventTypes() []string {
	types := make([]string, 0, len(r.appended))
	for _, msg := range r.appended {
		types = append(types, msg.EventType)
	}
	return types
}

func newDispatcher(t *testing.T, recorder *appendRecorder) dispatch.Dispatcher {
	t.Helper()
	db, err := gorm.Open(gormtests.DummyDialector{}, &gorm.Config{})
	require.NoError(t, err)
	return dispatch.NewDispatcher(db, recorder)
}

func createdEvent() domain.RegistrationCreated {
	return domain.RegistrationCreated{
		RegistrationID: uuid.New(),
		EventID:        uuid.New(),
		UserID:         uuid.New(),
		Confirmed:      true,
		Timestamp:      time.Now().UTC(),
	}
}

func cancelledEvent() domain.RegistrationCancelled {
	return domain.RegistrationCancelled{
		RegistrationID: uuid.New(),
		EventID:        uuid.New(),
		UserID:         uuid.New(),
		WasConfirmed:   true,
		Timestamp:      time.Now().UTC(),
	}
}

func TestDispatcher_AppendsAsyncEventsToOutbox(t *testing.T) {
	recorder := &appendRecorder{}
	d := newDispatcher(t, recorder)

	evt := createdEvent()
	require.NoError(t, d.Raise(context.Background(), nil, evt))

	require.Len(t, recorder.appended, 1)
	msg := recorder.appended[0]
	assert.Equal(t, domain.EventTypeRegistrationCreated, msg.EventType)
	assert.Equal(t, outbox.StatusPending, msg.Status)
	assert.Contains(t, msg.Payload, evt.RegistrationID.String())
	require.Len(t, recorder.seenTx, 1)
	assert.NotNil(t, recorder.seenTx[0], "nil caller tx falls back to the dispatcher's db handle")
}

func TestDispatcher_AppendsOnCallerTransaction(t *testing.T) {
	recorder := &appendRecorder{}
	db, err := gorm.Open(gormtests.DummyDialector{}, &gorm.Config{})
	require.NoError(t, err)
	d := dispatch.NewDispatcher(db, recorder)

	tx := db.WithContext(context.Background())
	require.NoError(t, d.Raise(context.Background(), tx, createdEvent()))

	require.Len(t, recorder.seenTx, 1)
	assert.Same(t, tx, recorder.seenTx[0], "outbox rows must ride the caller's transaction")
}

func TestDispatcher_RunsSyncHandlersInProcess(t *testing.T) {
	recorder := &appendRecorder{}
	db, err := gorm.Open(gormtests.DummyDialector{}, &gorm.Config{})
	require.NoError(t, err)
	d := dispatch.NewDispatcher(db, recorder)

	var handled []domain.Event
	var handledTx []*gorm.DB
	d.RegisterSync(domain.EventTypeRegistrationCancelled, func(ctx context.Context, tx *gorm.DB, evt domain.Event) error {
		handled = append(handled, evt)
		handledTx = append(handledTx, tx)
		return nil
	})

	tx := db.WithContext(context.Background())
	evt := cancelledEvent()
	require.NoError(t, d.Raise(context.Background(), tx, evt))

	require.Len(t, handled, 1)
	assert.Equal(t, evt, handled[0])
	assert.Same(t, tx, handledTx[0])
	assert.Empty(t, recorder.appended, "sync events never reach the outbox")
}

func TestDispatcher_SyncTypesNeverOutboxed(t *testing.T) {
	recorder := &appendRecorder{}
	d := newDispatcher(t, recorder)

	// No handlers registered at all: the fixed sync set is still handled
	// in-process (as a no-op) rather than queued.
	err := d.Raise(context.Background(), nil,
		cancelledEvent(),
		domain.EventCapacityIncreased{EventID: uuid.New(), Additional: 2, Timestamp: time.Now().UTC()},
		domain.WaitlistRemoval{RegistrationID: uuid.New(), EventID: uuid.New(), UserID: uuid.New(), Position: 1, Timestamp: time.Now().UTC()},
		domain.WaitlistPositionChanged{RegistrationID: uuid.New(), EventID: uuid.New(), UserID: uuid.New(), OldPosition: 2, NewPosition: 1, Timestamp: time.Now().UTC()},
	)
	require.NoError(t, err)
	assert.Empty(t, recorder.appended)
}

func TestDispatcher_SyncHandlersPullTypeOutOfOutbox(t *testing.T) {
	recorder := &appendRecorder{}
	d := newDispatcher(t, recorder)

	handled := 0
	d.RegisterSync(domain.EventTypeRegistrationCreated, func(ctx context.Context, tx *gorm.DB, evt domain.Event) error {
		handled++
		return nil
	})

	require.NoError(t, d.Raise(context.Background(), nil, createdEvent()))
	assert.Equal(t, 1, handled)
	assert.Empty(t, recorder.appended, "a registered sync handler overrides the async default")
}

func TestDispatcher_SyncHandlerFailureAbortsBatch(t *testing.T) {
	recorder := &appendRecorder{}
	d := newDispatcher(t, recorder)

	secondRan := false
	d.RegisterSync(domain.EventTypeRegistrationCancelled, func(ctx context.Context, tx *gorm.DB, evt domain.Event) error {
		return errors.New("deadlock detected")
	})
	d.RegisterSync(domain.EventTypeRegistrationCancelled, func(ctx context.Context, tx *gorm.DB, evt domain.Event) error {
		secondRan = true
		return nil
	})

	err := d.Raise(context.Background(), nil, cancelledEvent(), createdEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync handler for "+domain.EventTypeRegistrationCancelled)
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.False(t, secondRan)
	assert.Empty(t, recorder.appended, "later events in the batch must not be raised")
}

func TestDispatcher_MixedBatchKeepsOutboxOrder(t *testing.T) {
	recorder := &appendRecorder{}
	d := newDispatcher(t, recorder)

	created := createdEvent()
	waitlisted := domain.RegistrationWaitlisted{
		RegistrationID: created.RegistrationID,
		EventID:        created.EventID,
		UserID:         created.UserID,
		Position:       1,
		Timestamp:      created.Timestamp,
	}

	require.NoError(t, d.Raise(context.Background(), nil, created, cancelledEvent(), waitlisted))
	assert.Equal(t, []string{
		domain.EventTypeRegistrationCreated,
		domain.EventTypeRegistrationWaitlisted,
	}, recorder.eventTypes())
}

func TestDispatcher_AppendFailurePropagates(t *testing.T) {
	recorder := &appendRecorder{err: errors.New("connection refused")}
	d := newDispatcher(t, recorder)

	err := d.Raise(context.Background(), nil, createdEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append "+domain.EventTypeRegistrationCreated+" to outbox")
}
