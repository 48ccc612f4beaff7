package registrations_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/domain"
	"gatherly/internal/registrations"
)

func TestSyncHandlers_CapacityIncreasePromotesInOrder(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(1)
	alice := f.seedUser("Alice", "Nguyen")
	bob := f.seedUser("Bob", "Singh")
	carol := f.seedUser("Carol", "Okafor")
	dave := f.seedUser("Dave", "Larsen")

	f.seedRegistration(eventID, alice, registrations.StatusConfirmed, nil)
	bobReg := f.seedRegistration(eventID, bob, registrations.StatusWaitlisted, pos(1))
	carolReg := f.seedRegistration(eventID, carol, registrations.StatusWaitlisted, pos(2))
	daveReg := f.seedRegistration(eventID, dave, registrations.StatusWaitlisted, pos(3))

	moves := captureMoves(f)

	// The capacity update itself is an events-service concern; the handler only
	// sees the raised fact.
	f.store.events[eventID].Capacity = 3
	err := f.dispatcher.Raise(context.Background(), nil, domain.EventCapacityIncreased{
		EventID:    eventID,
		Additional: 2,
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, registrations.StatusConfirmed, f.row(bobReg).Status)
	assert.Equal(t, registrations.StatusConfirmed, f.row(carolReg).Status)
	assert.Equal(t, registrations.StatusWaitlisted, f.row(daveReg).Status)
	require.NotNil(t, f.row(daveReg).PositionInQueue)
	assert.Equal(t, 1, *f.row(daveReg).PositionInQueue)

	require.Equal(t, []string{
		domain.EventTypeRegistrationPromoted,
		domain.EventTypeRegistrationPromoted,
	}, f.outbox.eventTypes())

	var first, second domain.RegistrationPromoted
	decodePayload(t, f.outbox.appended[0], &first)
	decodePayload(t, f.outbox.appended[1], &second)
	assert.Equal(t, bobReg, first.RegistrationID, "lowest position promotes first")
	assert.Equal(t, carolReg, second.RegistrationID)

	require.Len(t, *moves, 1)
	assert.Equal(t, daveReg, (*moves)[0].RegistrationID)
	assert.Equal(t, 3, (*moves)[0].OldPosition)
	assert.Equal(t, 1, (*moves)[0].NewPosition)
}

func TestSyncHandlers_PromotionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(1)
	f.seedRegistration(eventID, f.seedUser("Alice", "Nguyen"), registrations.StatusConfirmed, nil)
	bobReg := f.seedRegistration(eventID, f.seedUser("Bob", "Singh"), registrations.StatusWaitlisted, pos(1))
	daveReg := f.seedRegistration(eventID, f.seedUser("Dave", "Larsen"), registrations.StatusWaitlisted, pos(2))

	f.store.events[eventID].Capacity = 2
	increase := domain.EventCapacityIncreased{EventID: eventID, Additional: 1, Timestamp: time.Now().UTC()}

	require.NoError(t, f.dispatcher.Raise(context.Background(), nil, increase))
	require.Len(t, f.outbox.appended, 1)

	// A redelivered capacity event finds no free slots and a contiguous queue,
	// so the second run changes nothing.
	require.NoError(t, f.dispatcher.Raise(context.Background(), nil, increase))

	assert.Len(t, f.outbox.appended, 1)
	assert.Equal(t, registrations.StatusConfirmed, f.row(bobReg).Status)
	require.NotNil(t, f.row(daveReg).PositionInQueue)
	assert.Equal(t, 1, *f.row(daveReg).PositionInQueue)
}

func TestSyncHandlers_ReindexClosesGaps(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(1)
	f.seedRegistration(eventID, f.seedUser("Alice", "Nguyen"), registrations.StatusConfirmed, nil)
	bobReg := f.seedRegistration(eventID, f.seedUser("Bob", "Singh"), registrations.StatusWaitlisted, pos(1))
	carolReg := f.seedRegistration(eventID, f.seedUser("Carol", "Okafor"), registrations.StatusWaitlisted, pos(3))
	daveReg := f.seedRegistration(eventID, f.seedUser("Dave", "Larsen"), registrations.StatusWaitlisted, pos(5))

	moves := captureMoves(f)

	err := f.dispatcher.Raise(context.Background(), nil, domain.WaitlistRemoval{
		RegistrationID: uuid.New(),
		EventID:        eventID,
		UserID:         uuid.New(),
		Position:       2,
		Timestamp:      time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NotNil(t, f.row(bobReg).PositionInQueue)
	assert.Equal(t, 1, *f.row(bobReg).PositionInQueue)
	require.NotNil(t, f.row(carolReg).PositionInQueue)
	assert.Equal(t, 2, *f.row(carolReg).PositionInQueue)
	require.NotNil(t, f.row(daveReg).PositionInQueue)
	assert.Equal(t, 3, *f.row(daveReg).PositionInQueue)

	// Only the rows that actually moved raise position changes.
	require.Len(t, *moves, 2)
	assert.Equal(t, carolReg, (*moves)[0].RegistrationID)
	assert.Equal(t, 3, (*moves)[0].OldPosition)
	assert.Equal(t, 2, (*moves)[0].NewPosition)
	assert.Equal(t, daveReg, (*moves)[1].RegistrationID)
	assert.Equal(t, 5, (*moves)[1].OldPosition)
	assert.Equal(t, 3, (*moves)[1].NewPosition)

	assert.Empty(t, f.outbox.appended, "reindex alone promotes nobody")
}

func TestSyncHandlers_CancellationWithGapPromotesAndRenumbers(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(2)
	alice := f.seedUser("Alice", "Nguyen")
	aliceReg := f.seedRegistration(eventID, alice, registrations.StatusConfirmed, nil)
	f.seedRegistration(eventID, f.seedUser("Zoe", "Quinn"), registrations.StatusConfirmed, nil)
	bobReg := f.seedRegistration(eventID, f.seedUser("Bob", "Singh"), registrations.StatusWaitlisted, pos(1))
	carolReg := f.seedRegistration(eventID, f.seedUser("Carol", "Okafor"), registrations.StatusWaitlisted, pos(2))

	require.NoError(t, f.service.Cancel(context.Background(), aliceReg, alice, false))

	assert.Equal(t, registrations.StatusConfirmed, f.row(bobReg).Status)
	assert.Equal(t, registrations.StatusWaitlisted, f.row(carolReg).Status)
	require.NotNil(t, f.row(carolReg).PositionInQueue)
	assert.Equal(t, 1, *f.row(carolReg).PositionInQueue)
}

type mislabeledEvent struct{}

func (mislabeledEvent) EventType() string     { return domain.EventTypeRegistrationCancelled }
func (mislabeledEvent) OccurredOn() time.Time { return time.Now().UTC() }

func TestSyncHandlers_RejectUnexpectedPayload(t *testing.T) {
	f := newFixture(t)

	err := f.dispatcher.Raise(context.Background(), nil, mislabeledEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected event")
}
