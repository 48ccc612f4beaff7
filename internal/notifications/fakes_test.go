package notifications_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gatherly/internal/domain"
	"gatherly/internal/events"
	"gatherly/internal/outbox"
	"gatherly/internal/queue"
	"gatherly/internal/users"
)

// fakeOutbox mirrors the Postgres outbox semantics in memory. It is shared by
// the consumer goroutine, the worker goroutines and the test, so every access
// locks.
type fakeOutbox struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*outbox.Message
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{rows: make(map[uuid.UUID]*outbox.Message)}
}

func (f *fakeOutbox) add(msg *outbox.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[msg.ID] = msg
}

func (f *fakeOutbox) row(t *testing.T, id uuid.UUID) outbox.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	require.True(t, ok, "outbox row %s not found", id)
	return *row
}

func (f *fakeOutbox) status(id uuid.UUID) outbox.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		return row.Status
	}
	return outbox.Status(-1)
}

func (f *fakeOutbox) AppendTx(tx *gorm.DB, messages ...*outbox.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range messages {
		f.rows[msg.ID] = msg
	}
	return nil
}

func (f *fakeOutbox) ClaimBatch(ctx context.Context, workerID string, limit int) ([]outbox.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	var due []*outbox.Message
	for _, row := range f.rows {
		if row.Status == outbox.StatusPending && !row.NextAttemptAt.After(now) {
			due = append(due, row)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].OccurredOn.Before(due[j].OccurredOn) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]outbox.Message, 0, len(due))
	for _, row := range due {
		row.Status = outbox.StatusClaimed
		row.TryCount++
		row.ClaimedBy = workerID
		claimedAt := now
		row.ClaimedAt = &claimedAt
		claimed = append(claimed, *row)
	}
	return claimed, nil
}

func (f *fakeOutbox) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		row.Status = outbox.StatusProcessed
	}
	return nil
}

func (f *fakeOutbox) Reschedule(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		row.Status = outbox.StatusPending
		row.LastError = lastError
		row.NextAttemptAt = nextAttemptAt
		row.ClaimedBy = ""
		row.ClaimedAt = nil
	}
	return nil
}

func (f *fakeOutbox) MarkDead(ctx context.Context, id uuid.UUID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		row.Status = outbox.StatusFailed
		row.LastError = lastError
	}
	return nil
}

func (f *fakeOutbox) ReleaseStuckClaims(ctx context.Context, claimTimeout time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeOutbox) CleanupProcessed(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeOutbox) CountPending(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, row := range f.rows {
		if row.Status == outbox.StatusPending {
			count++
		}
	}
	return count, nil
}

func (f *fakeOutbox) GetByID(ctx context.Context, id uuid.UUID) (*outbox.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

type publishRecord struct {
	Topic     string
	Key       string
	MessageID string
	Envelope  queue.Envelope
}

// recordTransport captures publishes; the first `failures` calls fail.
type recordTransport struct {
	mu        sync.Mutex
	failures  int
	published []publishRecord
}

func (t *recordTransport) Publish(ctx context.Context, topic, key, messageID string, envelope queue.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures > 0 {
		t.failures--
		return errors.New("broker unavailable")
	}
	t.published = append(t.published, publishRecord{Topic: topic, Key: key, MessageID: messageID, Envelope: envelope})
	return nil
}

func (t *recordTransport) Subscribe(ctx context.Context, topics []string, handler queue.Handler) error {
	return nil
}

func (t *recordTransport) Close() error { return nil }

func (t *recordTransport) HealthCheck(ctx context.Context) error { return nil }

func (t *recordTransport) records() []publishRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]publishRecord, len(t.published))
	copy(out, t.published)
	return out
}

// stubUsersRepo serves GetByID from a fixed map; every other method is unused
// by the notifier.
type stubUsersRepo struct {
	users map[uuid.UUID]*users.User
	err   error
}

func (s *stubUsersRepo) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if user, ok := s.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUsersRepo) Create(ctx context.Context, user *users.User) error { return nil }
func (s *stubUsersRepo) GetByIdentityID(ctx context.Context, identityID uuid.UUID) (*users.User, error) {
	return nil, domain.ErrUserNotFound
}
func (s *stubUsersRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return nil, domain.ErrUserNotFound
}
func (s *stubUsersRepo) Update(ctx context.Context, user *users.User) error { return nil }
func (s *stubUsersRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	return nil
}
func (s *stubUsersRepo) Anonymize(ctx context.Context, id uuid.UUID) error { return nil }
func (s *stubUsersRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return false, nil
}

type stubEventsRepo struct {
	events map[uuid.UUID]*events.Event
	err    error
}

func (s *stubEventsRepo) GetByID(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	if event, ok := s.events[id]; ok {
		clone := *event
		return &clone, nil
	}
	return nil, domain.ErrEventNotFound
}

func (s *stubEventsRepo) Create(ctx context.Context, event *events.Event) error { return nil }
func (s *stubEventsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*events.Event, error) {
	return nil, domain.ErrEventNotFound
}
func (s *stubEventsRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (s *stubEventsRepo) GetAll(ctx context.Context, query events.EventListQuery) ([]events.Event, int64, error) {
	return nil, 0, nil
}
func (s *stubEventsRepo) GetUpcoming(ctx context.Context, limit int) ([]events.Event, error) {
	return nil, nil
}
func (s *stubEventsRepo) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*events.Event, error) {
	return nil, domain.ErrEventNotFound
}
