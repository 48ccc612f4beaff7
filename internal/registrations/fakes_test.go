package registrations_test

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormtests "gorm.io/gorm/utils/tests"

	"gatherly/internal/dispatch"
	"gatherly/internal/domain"
	"gatherly/internal/events"
	"gatherly/internal/idempotency"
	"gatherly/internal/outbox"
	"gatherly/internal/registrations"
	"gatherly/internal/shared/config"
	"gatherly/internal/users"
)

// fakeStore keeps events, users and registrations in memory and hands out
// scopes the way the Postgres repository does, minus transactions and locking.
type fakeStore struct {
	events        map[uuid.UUID]*events.Event
	users         map[uuid.UUID]*users.User
	registrations map[uuid.UUID]*registrations.Registration
	clock         time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:        make(map[uuid.UUID]*events.Event),
		users:         make(map[uuid.UUID]*users.User),
		registrations: make(map[uuid.UUID]*registrations.Registration),
		clock:         time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing timestamps so registration order is stable.
func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type fakeScope struct {
	store   *fakeStore
	eventID uuid.UUID
}

func (s *fakeScope) Tx() *gorm.DB { return nil }

func (s *fakeScope) EventID() uuid.UUID { return s.eventID }

func (s *fakeScope) Event() (*events.Event, error) {
	event, ok := s.store.events[s.eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	clone := *event
	return &clone, nil
}

func (s *fakeScope) GetByID(id uuid.UUID) (*registrations.Registration, error) {
	row, ok := s.store.registrations[id]
	if !ok || row.EventID != s.eventID {
		return nil, domain.ErrRegistrationNotFound
	}
	clone := *row
	return &clone, nil
}

func (s *fakeScope) FindActive(userID uuid.UUID) (*registrations.Registration, error) {
	for _, row := range s.store.registrations {
		if row.EventID == s.eventID && row.UserID == userID && row.Status.IsActive() {
			clone := *row
			return &clone, nil
		}
	}
	return nil, domain.ErrRegistrationNotFound
}

func (s *fakeScope) Create(registration *registrations.Registration) error {
	if registration.ID == uuid.Nil {
		registration.ID = uuid.New()
	}
	if registration.RegisteredAt.IsZero() {
		registration.RegisteredAt = s.store.tick()
	}
	clone := *registration
	s.store.registrations[registration.ID] = &clone
	return nil
}

func (s *fakeScope) Update(id uuid.UUID, updates map[string]interface{}) error {
	row, ok := s.store.registrations[id]
	if !ok || row.EventID != s.eventID {
		return domain.ErrRegistrationNotFound
	}
	if v, ok := updates["status"]; ok {
		row.Status = v.(registrations.Status)
	}
	if v, ok := updates["position_in_queue"]; ok {
		if v == nil {
			row.PositionInQueue = nil
		} else {
			p := v.(int)
			row.PositionInQueue = &p
		}
	}
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakeScope) ConfirmedCount() (int, error) {
	count := 0
	for _, row := range s.store.registrations {
		if row.EventID == s.eventID && row.Status == registrations.StatusConfirmed {
			count++
		}
	}
	return count, nil
}

func (s *fakeScope) Waitlisted() ([]registrations.Registration, error) {
	var rows []registrations.Registration
	for _, row := range s.store.registrations {
		if row.EventID == s.eventID && row.Status == registrations.StatusWaitlisted {
			rows = append(rows, *row)
		}
	}
	sortWaitlist(rows)
	return rows, nil
}

func (s *fakeScope) NextWaitlistPosition() (int, error) {
	next := 1
	for _, row := range s.store.registrations {
		if row.EventID == s.eventID && row.Status == registrations.StatusWaitlisted &&
			row.PositionInQueue != nil && *row.PositionInQueue >= next {
			next = *row.PositionInQueue + 1
		}
	}
	return next, nil
}

// sortWaitlist mirrors the queue ordering: position first, ties broken by
// registration time, then id. Rows without a position sort last.
func sortWaitlist(rows []registrations.Registration) {
	sort.Slice(rows, func(i, j int) bool {
		pi, pj := queueOrder(&rows[i]), queueOrder(&rows[j])
		if pi != pj {
			return pi < pj
		}
		if !rows[i].RegisteredAt.Equal(rows[j].RegisteredAt) {
			return rows[i].RegisteredAt.Before(rows[j].RegisteredAt)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
}

func queueOrder(row *registrations.Registration) int {
	if row.PositionInQueue == nil {
		return math.MaxInt
	}
	return *row.PositionInQueue
}

type fakeRepo struct {
	store *fakeStore
}

func (r *fakeRepo) WithEventScope(ctx context.Context, eventID uuid.UUID, fn func(scope registrations.EventScope) error) error {
	return fn(&fakeScope{store: r.store, eventID: eventID})
}

func (r *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*registrations.Registration, error) {
	row, ok := r.store.registrations[id]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	clone := *row
	return &clone, nil
}

func (r *fakeRepo) List(ctx context.Context, spec *registrations.Specification) ([]registrations.Registration, error) {
	return nil, nil
}

func (r *fakeRepo) Count(ctx context.Context, spec *registrations.Specification) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) GetWaitlist(ctx context.Context, eventID uuid.UUID) ([]registrations.Registration, error) {
	scope := &fakeScope{store: r.store, eventID: eventID}
	rows, err := scope.Waitlisted()
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if user, ok := r.store.users[rows[i].UserID]; ok {
			clone := *user
			rows[i].User = &clone
		}
	}
	return rows, nil
}

func (r *fakeRepo) GetUserRegistrations(ctx context.Context, userID uuid.UUID) ([]registrations.Registration, error) {
	var rows []registrations.Registration
	for _, row := range r.store.registrations {
		if row.UserID != userID {
			continue
		}
		clone := *row
		if event, ok := r.store.events[row.EventID]; ok {
			eventClone := *event
			clone.Event = &eventClone
		}
		rows = append(rows, clone)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RegisteredAt.Before(rows[j].RegisteredAt) })
	return rows, nil
}

func (r *fakeRepo) FindActive(ctx context.Context, eventID, userID uuid.UUID) (*registrations.Registration, error) {
	scope := &fakeScope{store: r.store, eventID: eventID}
	return scope.FindActive(userID)
}

func (r *fakeRepo) CountByStatus(ctx context.Context, eventID uuid.UUID, status registrations.Status) (int, error) {
	count := 0
	for _, row := range r.store.registrations {
		if row.EventID == eventID && row.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) HasAnyForEvent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	for _, row := range r.store.registrations {
		if row.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

// fakeEventsRepo serves event reads from the store; the registration service
// never writes events.
type fakeEventsRepo struct {
	store *fakeStore
}

func (r *fakeEventsRepo) Create(ctx context.Context, event *events.Event) error { return nil }

func (r *fakeEventsRepo) GetByID(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	event, ok := r.store.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	clone := *event
	return &clone, nil
}

func (r *fakeEventsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*events.Event, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeEventsRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (r *fakeEventsRepo) GetAll(ctx context.Context, query events.EventListQuery) ([]events.Event, int64, error) {
	return nil, 0, nil
}

func (r *fakeEventsRepo) GetUpcoming(ctx context.Context, limit int) ([]events.Event, error) {
	return nil, nil
}

func (r *fakeEventsRepo) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*events.Event, error) {
	return r.GetByID(ctx, id)
}

type fakeUsersRepo struct {
	store *fakeStore
}

func (r *fakeUsersRepo) Create(ctx context.Context, user *users.User) error { return nil }

func (r *fakeUsersRepo) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	user, ok := r.store.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUsersRepo) GetByIdentityID(ctx context.Context, identityID uuid.UUID) (*users.User, error) {
	return nil, domain.ErrUserNotFound
}

func (r *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return nil, domain.ErrUserNotFound
}

func (r *fakeUsersRepo) Update(ctx context.Context, user *users.User) error { return nil }

func (r *fakeUsersRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	return nil
}

func (r *fakeUsersRepo) Anonymize(ctx context.Context, id uuid.UUID) error { return nil }

func (r *fakeUsersRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return false, nil
}

// recordingOutbox captures appended messages instead of writing rows, so tests
// can assert which events left through the async pipeline.
type recordingOutbox struct {
	appended []*outbox.Message
}

func (r *recordingOutbox) AppendTx(tx *gorm.DB, messages ...*outbox.Message) error {
	r.appended = append(r.appended, messages...)
	return nil
}

func (r *recordingOutbox) ClaimBatch(ctx context.Context, workerID string, limit int) ([]outbox.Message, error) {
	return nil, nil
}

func (r *recordingOutbox) MarkProcessed(ctx context.Context, id uuid.UUID) error { return nil }

func (r *recordingOutbox) Reschedule(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	return nil
}

func (r *recordingOutbox) MarkDead(ctx context.Context, id uuid.UUID, lastError string) error {
	return nil
}

func (r *recordingOutbox) ReleaseStuckClaims(ctx context.Context, claimTimeout time.Duration) (int64, error) {
	return 0, nil
}

func (r *recordingOutbox) CleanupProcessed(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

func (r *recordingOutbox) CountPending(ctx context.Context) (int64, error) { return 0, nil }

func (r *recordingOutbox) GetByID(ctx context.Context, id uuid.UUID) (*outbox.Message, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *recordingOutbox) eventTypes() []string {
	types := make([]string, 0, len(r.appended))
	for _, msg := range r.appended {
		types = append(types, msg.EventType)
	}
	return types
}

// fixture wires the real service, dispatcher and sync handlers onto in-memory
// storage so promotion and reindex run exactly as they do against Postgres.
type fixture struct {
	t          *testing.T
	store      *fakeStore
	outbox     *recordingOutbox
	dispatcher dispatch.Dispatcher
	repo       *fakeRepo
	service    registrations.Service
	cfg        *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newFakeStore()
	outboxRepo := &recordingOutbox{}

	db, err := gorm.Open(gormtests.DummyDialector{}, &gorm.Config{})
	require.NoError(t, err)

	d := dispatch.NewDispatcher(db, outboxRepo)
	repo := &fakeRepo{store: store}
	registrations.RegisterSyncHandlers(d, repo, nil)

	cfg := config.Load()
	svc := registrations.NewService(repo, &fakeEventsRepo{store: store}, &fakeUsersRepo{store: store}, d, idempotency.NewMemoryStore(), cfg, nil)

	return &fixture{
		t:          t,
		store:      store,
		outbox:     outboxRepo,
		dispatcher: d,
		repo:       repo,
		service:    svc,
		cfg:        cfg,
	}
}

// withIdempotencyStore rebuilds the service around a different claim store.
func (f *fixture) withIdempotencyStore(store idempotency.Store) {
	f.service = registrations.NewService(f.repo, &fakeEventsRepo{store: f.store}, &fakeUsersRepo{store: f.store}, f.dispatcher, store, f.cfg, nil)
}

func (f *fixture) seedEvent(capacity int, mutate ...func(*events.Event)) uuid.UUID {
	now := time.Now().UTC()
	event := &events.Event{
		ID:             uuid.New(),
		Name:           "Distributed Systems Meetup",
		Timezone:       "UTC",
		StartUTC:       now.Add(24 * time.Hour),
		EndUTC:         now.Add(27 * time.Hour),
		Capacity:       capacity,
		OrganizerID:    uuid.New(),
		IsPublished:    true,
		IsWaitlistOpen: true,
	}
	for _, m := range mutate {
		m(event)
	}
	f.store.events[event.ID] = event
	return event.ID
}

func (f *fixture) seedUser(firstName, lastName string) uuid.UUID {
	user := &users.User{
		ID:         uuid.New(),
		IdentityID: uuid.New(),
		FirstName:  firstName,
		LastName:   lastName,
		Role:       users.RoleUser,
		Email:      firstName + "@example.com",
		IsActive:   true,
	}
	f.store.users[user.ID] = user
	return user.ID
}

func (f *fixture) seedRegistration(eventID, userID uuid.UUID, status registrations.Status, position *int) uuid.UUID {
	row := &registrations.Registration{
		ID:              uuid.New(),
		EventID:         eventID,
		UserID:          userID,
		Status:          status,
		PositionInQueue: position,
		RegisteredAt:    f.store.tick(),
	}
	f.store.registrations[row.ID] = row
	return row.ID
}

func (f *fixture) row(id uuid.UUID) *registrations.Registration {
	f.t.Helper()
	row, ok := f.store.registrations[id]
	require.True(f.t, ok, "registration %s not in store", id)
	return row
}

func pos(p int) *int { return &p }

func decodePayload(t *testing.T, msg *outbox.Message, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), dest))
}

// captureMoves subscribes to position changes so tests can see each reindex
// step the queue performed.
func captureMoves(f *fixture) *[]domain.WaitlistPositionChanged {
	moves := &[]domain.WaitlistPositionChanged{}
	f.dispatcher.RegisterSync(domain.EventTypeWaitlistPositionMoved, func(ctx context.Context, tx *gorm.DB, evt domain.Event) error {
		*moves = append(*moves, evt.(domain.WaitlistPositionChanged))
		return nil
	})
	return moves
}
