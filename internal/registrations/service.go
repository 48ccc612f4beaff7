package registrations

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"gatherly/internal/dispatch"
	"gatherly/internal/domain"
	"gatherly/internal/events"
	"gatherly/internal/idempotency"
	"gatherly/internal/shared/config"
	"gatherly/internal/shared/constants"
	"gatherly/internal/users"
	"gatherly/pkg/cache"
	"gatherly/pkg/logger"
	"gatherly/pkg/metrics"
)

// Service interface defines the contract for registration business logic
type Service interface {
	Register(ctx context.Context, eventID, userID uuid.UUID, notes, idemKey string) (*RegistrationResponse, error)
	Cancel(ctx context.Context, registrationID, requesterID uuid.UUID, isAdmin bool) error
	Confirm(ctx context.Context, registrationID uuid.UUID) (*RegistrationResponse, error)

	GetRegistration(ctx context.Context, registrationID uuid.UUID) (*RegistrationResponse, error)
	GetEventRegistrations(ctx context.Context, eventID uuid.UUID, query ListQuery) (*PaginatedRegistrations, error)
	GetWaitlist(ctx context.Context, eventID uuid.UUID) (*WaitlistSnapshot, error)
	GetUserRegistrations(ctx context.Context, userID uuid.UUID) ([]RegistrationResponse, error)

	SetCacheService(cacheService cache.Service)
}

type service struct {
	repo         Repository
	eventsRepo   events.Repository
	usersRepo    users.Repository
	dispatcher   dispatch.Dispatcher
	idem         idempotency.Store
	cacheService cache.Service
	config       *config.Config
	logger       *logger.Logger
}

// NewService creates a new registration service instance. A nil idempotency
// store disables replay detection; a nil cache disables snapshots.
func NewService(
	repo Repository,
	eventsRepo events.Repository,
	usersRepo users.Repository,
	dispatcher dispatch.Dispatcher,
	idem idempotency.Store,
	cfg *config.Config,
	appLogger *logger.Logger,
) Service {
	if appLogger == nil {
		appLogger = logger.GetDefault()
	}
	return &service{
		repo:       repo,
		eventsRepo: eventsRepo,
		usersRepo:  usersRepo,
		dispatcher: dispatcher,
		idem:       idem,
		config:     cfg,
		logger:     appLogger,
	}
}

// SetCacheService injects the cache service dependency
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

// registerClaimKey builds the adapter-side idempotency key for Register.
func registerClaimKey(eventID, userID uuid.UUID, nonce string) string {
	return fmt.Sprintf("register:%s:%s:%s", eventID, userID, nonce)
}

// Register places a user on an event: Confirmed while capacity remains,
// Waitlisted with the next queue position otherwise. A repeated idempotency
// key within TTL returns the original registration instead of a new row.
func (s *service) Register(ctx context.Context, eventID, userID uuid.UUID, notes, idemKey string) (*RegistrationResponse, error) {
	claimKey := ""
	if idemKey != "" && s.idem != nil {
		claimKey = registerClaimKey(eventID, userID, idemKey)
		claimed, err := s.idem.TryClaim(ctx, claimKey, s.config.Idempotency.TTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !claimed {
			return s.replay(ctx, eventID, userID)
		}
	}

	resp, err := s.register(ctx, eventID, userID, notes)
	if err != nil && claimKey != "" {
		// Free the claim so the client can retry a rejected command.
		if releaseErr := s.idem.Release(ctx, claimKey); releaseErr != nil {
			log.Printf("Warning: failed to release idempotency claim %s: %v", claimKey, releaseErr)
		}
	}
	return resp, err
}

// replay resolves a duplicate idempotency key: the row the first request
// created is the result.
func (s *service) replay(ctx context.Context, eventID, userID uuid.UUID) (*RegistrationResponse, error) {
	existing, err := s.repo.FindActive(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRegistrationNotFound) {
			// Claim held but no row yet: the first request is still in flight.
			return nil, domain.ErrDuplicateRequest
		}
		return nil, err
	}
	resp := existing.ToResponse()
	return &resp, nil
}

func (s *service) register(ctx context.Context, eventID, userID uuid.UUID, notes string) (*RegistrationResponse, error) {
	pipe := newPipeline(
		validateStage(func(ctx context.Context) error {
			event, err := s.eventsRepo.GetByID(ctx, eventID)
			if err != nil {
				return err
			}
			if !event.IsPublished {
				return domain.ErrEventNotPublished
			}
			if event.HasStarted(time.Now().UTC()) {
				return domain.ErrEventStarted
			}
			return nil
		}),
		authorizeStage(func(ctx context.Context) error {
			user, err := s.usersRepo.GetByID(ctx, userID)
			if err != nil {
				return err
			}
			if !user.IsActive {
				return domain.ErrNotAuthorized
			}
			return nil
		}),
	)

	var created *Registration
	err := pipe.run(ctx, func(ctx context.Context) error {
		return s.repo.WithEventScope(ctx, eventID, func(scope EventScope) error {
			existing, err := scope.FindActive(userID)
			if err != nil && !errors.Is(err, domain.ErrRegistrationNotFound) {
				return err
			}
			if existing != nil {
				return domain.ErrAlreadyRegistered
			}

			// Capacity decisions read the event inside the scope so a
			// concurrent capacity change cannot slip between check and insert.
			event, err := scope.Event()
			if err != nil {
				return err
			}
			confirmed, err := scope.ConfirmedCount()
			if err != nil {
				return err
			}

			registration := &Registration{
				EventID: eventID,
				UserID:  userID,
				Notes:   notes,
			}

			if confirmed < event.Capacity {
				registration.Status = StatusConfirmed
			} else {
				if !event.IsWaitlistOpen {
					return domain.ErrWaitlistClosed
				}
				position, err := scope.NextWaitlistPosition()
				if err != nil {
					return err
				}
				registration.Status = StatusWaitlisted
				registration.PositionInQueue = &position
			}

			if err := scope.Create(registration); err != nil {
				return err
			}

			now := time.Now().UTC()
			raised := []domain.Event{domain.RegistrationCreated{
				RegistrationID: registration.ID,
				EventID:        eventID,
				UserID:         userID,
				Confirmed:      registration.Status == StatusConfirmed,
				Timestamp:      now,
			}}
			if registration.IsWaitlisted() {
				raised = append(raised, domain.RegistrationWaitlisted{
					RegistrationID: registration.ID,
					EventID:        eventID,
					UserID:         userID,
					Position:       *registration.PositionInQueue,
					Timestamp:      now,
				})
			}

			if err := s.dispatcher.Raise(ctx, scope.Tx(), raised...); err != nil {
				return err
			}

			created = registration
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateEventCaches(ctx, eventID)
	metrics.Registrations.WithLabelValues(created.Status.String()).Inc()
	s.logger.LogRegistrationCreated(ctx, created.ID.String(), eventID.String(), userID.String(), created.Status.String())

	resp := created.ToResponse()
	return &resp, nil
}

// Cancel moves a registration to Cancelled from any non-Cancelled state. The
// freed slot is filled by the promotion handler before this call returns.
func (s *service) Cancel(ctx context.Context, registrationID, requesterID uuid.UUID, isAdmin bool) error {
	registration, err := s.repo.GetByID(ctx, registrationID)
	if err != nil {
		return err
	}

	pipe := newPipeline(
		validateStage(func(ctx context.Context) error {
			if !registration.Status.CanTransitionTo(StatusCancelled) {
				return domain.ErrInvalidTransition
			}
			return nil
		}),
		authorizeStage(func(ctx context.Context) error {
			if !isAdmin && registration.UserID != requesterID {
				return domain.ErrNotAuthorized
			}
			return nil
		}),
	)

	err = pipe.run(ctx, func(ctx context.Context) error {
		return s.repo.WithEventScope(ctx, registration.EventID, func(scope EventScope) error {
			current, err := scope.GetByID(registrationID)
			if err != nil {
				return err
			}
			if !current.Status.CanTransitionTo(StatusCancelled) {
				return domain.ErrInvalidTransition
			}

			wasConfirmed := current.Status == StatusConfirmed
			var removedPosition *int
			if current.IsWaitlisted() {
				removedPosition = current.PositionInQueue
			}

			if err := scope.Update(registrationID, map[string]interface{}{
				"status":            StatusCancelled,
				"position_in_queue": nil,
			}); err != nil {
				return err
			}

			now := time.Now().UTC()
			raised := []domain.Event{domain.RegistrationCancelled{
				RegistrationID: registrationID,
				EventID:        current.EventID,
				UserID:         current.UserID,
				WasConfirmed:   wasConfirmed,
				Timestamp:      now,
			}}
			if removedPosition != nil {
				raised = append(raised, domain.WaitlistRemoval{
					RegistrationID: registrationID,
					EventID:        current.EventID,
					UserID:         current.UserID,
					Position:       *removedPosition,
					Timestamp:      now,
				})
			}

			return s.dispatcher.Raise(ctx, scope.Tx(), raised...)
		})
	})
	if err != nil {
		return err
	}

	s.invalidateEventCaches(ctx, registration.EventID)
	s.logger.LogRegistrationCancelled(ctx, registrationID.String(), registration.EventID.String(), registration.UserID.String())
	return nil
}

// Confirm is the admin-initiated promotion of one Pending or Waitlisted row.
// No capacity check applies; an administrator may confirm past capacity.
func (s *service) Confirm(ctx context.Context, registrationID uuid.UUID) (*RegistrationResponse, error) {
	registration, err := s.repo.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	pipe := newPipeline(
		validateStage(func(ctx context.Context) error {
			if registration.Status != StatusPending && registration.Status != StatusWaitlisted {
				return domain.ErrInvalidTransition
			}
			return nil
		}),
	)

	var confirmed *Registration
	err = pipe.run(ctx, func(ctx context.Context) error {
		return s.repo.WithEventScope(ctx, registration.EventID, func(scope EventScope) error {
			current, err := scope.GetByID(registrationID)
			if err != nil {
				return err
			}
			if current.Status != StatusPending && current.Status != StatusWaitlisted {
				return domain.ErrInvalidTransition
			}

			oldPosition := current.PositionInQueue

			if err := scope.Update(registrationID, map[string]interface{}{
				"status":            StatusConfirmed,
				"position_in_queue": nil,
			}); err != nil {
				return err
			}

			now := time.Now().UTC()
			raised := []domain.Event{domain.RegistrationPromoted{
				RegistrationID: registrationID,
				EventID:        current.EventID,
				UserID:         current.UserID,
				OldPosition:    oldPosition,
				Timestamp:      now,
			}}
			// Confirming a waitlisted row leaves a hole in the queue; the
			// removal event lets the reindexer close it.
			if current.IsWaitlisted() && oldPosition != nil {
				raised = append(raised, domain.WaitlistRemoval{
					RegistrationID: registrationID,
					EventID:        current.EventID,
					UserID:         current.UserID,
					Position:       *oldPosition,
					Timestamp:      now,
				})
			}

			if err := s.dispatcher.Raise(ctx, scope.Tx(), raised...); err != nil {
				return err
			}

			updated := *current
			updated.Status = StatusConfirmed
			updated.PositionInQueue = nil
			confirmed = &updated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateEventCaches(ctx, registration.EventID)
	metrics.Promotions.WithLabelValues("admin").Inc()
	s.logger.LogWaitlistPromotion(ctx, registrationID.String(), registration.EventID.String(), derefPosition(registration.PositionInQueue))

	resp := confirmed.ToResponse()
	return &resp, nil
}

func (s *service) GetRegistration(ctx context.Context, registrationID uuid.UUID) (*RegistrationResponse, error) {
	registration, err := s.repo.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	resp := registration.ToResponse()
	return &resp, nil
}

func (s *service) GetEventRegistrations(ctx context.Context, eventID uuid.UUID, query ListQuery) (*PaginatedRegistrations, error) {
	if _, err := s.eventsRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	// Set defaults
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}
	if query.Limit > 100 {
		query.Limit = 100
	}

	spec := ByEvent(eventID)
	if query.Status != nil {
		spec = spec.Where("status = ?", *query.Status)
	}

	total, err := s.repo.Count(ctx, spec)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.List(ctx, spec.
		Preload("User").
		Skip((query.Page-1)*query.Limit).
		Take(query.Limit))
	if err != nil {
		return nil, err
	}

	return toPaginated(rows, total, query.Page, query.Limit), nil
}

func (s *service) GetWaitlist(ctx context.Context, eventID uuid.UUID) (*WaitlistSnapshot, error) {
	if _, err := s.eventsRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	cacheKey := constants.BuildWaitlistSnapshotKey(eventID.String())

	var cached WaitlistSnapshot
	if err := s.getCache(ctx, cacheKey, &cached); err == nil {
		return &cached, nil
	}

	rows, err := s.repo.GetWaitlist(ctx, eventID)
	if err != nil {
		return nil, err
	}

	snapshot := buildWaitlistSnapshot(eventID, rows)
	if err := s.setCache(ctx, cacheKey, snapshot, s.config.Cache.ListTTL); err != nil {
		log.Printf("Warning: failed to cache waitlist snapshot: %v", err)
	}
	return snapshot, nil
}

func (s *service) GetUserRegistrations(ctx context.Context, userID uuid.UUID) ([]RegistrationResponse, error) {
	rows, err := s.repo.GetUserRegistrations(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]RegistrationResponse, 0, len(rows))
	for i := range rows {
		responses = append(responses, rows[i].ToResponse())
	}
	return responses, nil
}

// Cache helper methods
func (s *service) setCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.cacheService == nil {
		return nil // Skip caching if cache service is not available
	}

	return s.cacheService.Set(ctx, key, value, ttl)
}

func (s *service) getCache(ctx context.Context, key string, dest interface{}) error {
	if s.cacheService == nil {
		return fmt.Errorf("cache service not available")
	}

	return s.cacheService.Get(ctx, key, dest)
}

// invalidateEventCaches drops every cached view a registration change can
// stale: the event detail (it embeds counts), the list pages and the waitlist
// snapshot.
func (s *service) invalidateEventCaches(ctx context.Context, eventID uuid.UUID) {
	if s.cacheService == nil {
		return
	}

	if err := s.cacheService.Delete(ctx, constants.BuildEventDetailKey(eventID.String())); err != nil {
		log.Printf("Warning: failed to invalidate event detail cache: %v", err)
	}
	if err := s.cacheService.Delete(ctx, constants.BuildWaitlistSnapshotKey(eventID.String())); err != nil {
		log.Printf("Warning: failed to invalidate waitlist snapshot: %v", err)
	}
	if err := s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_EVENTS_LISTS); err != nil {
		log.Printf("Warning: failed to invalidate event list caches: %v", err)
	}
}

func buildWaitlistSnapshot(eventID uuid.UUID, rows []Registration) *WaitlistSnapshot {
	entries := make([]WaitlistEntry, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		entry := WaitlistEntry{
			RegistrationID: row.ID,
			UserID:         row.UserID,
			RegisteredAt:   row.RegisteredAt,
		}
		if row.PositionInQueue != nil {
			entry.Position = *row.PositionInQueue
		}
		if row.User != nil {
			entry.UserName = row.User.FullName()
		}
		entries = append(entries, entry)
	}
	return &WaitlistSnapshot{
		EventID: eventID,
		Count:   len(entries),
		Entries: entries,
	}
}

func derefPosition(position *int) int {
	if position == nil {
		return 0
	}
	return *position
}
