package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gatherly/internal/dispatch"
	"gatherly/internal/domain"
	"gatherly/internal/shared/config"
	"gatherly/internal/shared/constants"
	"gatherly/pkg/cache"

	"github.com/google/uuid"
)

type Service interface {
	// Service dependency injection
	SetRegistrationCounter(counter RegistrationCounter)
	SetCacheService(cacheService cache.Service)
	SetDispatcher(dispatcher dispatch.Dispatcher)
	CreateEvent(ctx context.Context, organizerID uuid.UUID, req CreateEventRequest) (*EventResponse, error)
	GetEventByID(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID, req UpdateEventRequest) (*EventResponse, error)
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	Publish(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	Unpublish(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	GetAllEvents(ctx context.Context, query EventListQuery) (*PaginatedEvents, error)
	GetUpcomingEvents(ctx context.Context, limit int) ([]EventResponse, error)
}

// RegistrationCounter reports registration aggregates for an event. The
// registrations package implements it; an interface keeps the dependency
// pointing one way.
type RegistrationCounter interface {
	ConfirmedCount(ctx context.Context, eventID uuid.UUID) (int, error)
	HasAny(ctx context.Context, eventID uuid.UUID) (bool, error)
}

type service struct {
	repo         Repository
	counter      RegistrationCounter
	cacheService cache.Service
	dispatcher   dispatch.Dispatcher
	config       *config.Config
}

func NewService(repo Repository, cfg *config.Config) Service {
	return &service{
		repo:   repo,
		config: cfg,
	}
}

func (s *service) SetRegistrationCounter(counter RegistrationCounter) {
	s.counter = counter
}

// SetCacheService injects the cache service dependency
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

// SetDispatcher injects the domain event dispatcher
func (s *service) SetDispatcher(dispatcher dispatch.Dispatcher) {
	s.dispatcher = dispatcher
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

func (s *service) invalidateEventCache(ctx context.Context, eventID *uuid.UUID) error {
	if s.cacheService == nil {
		return nil
	}

	// List pages are keyed by page/limit/filter, so invalidate by pattern
	if err := s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_EVENTS_LISTS); err != nil {
		return err
	}

	if eventID != nil {
		if err := s.cacheService.Delete(ctx, constants.BuildEventDetailKey(eventID.String())); err != nil {
			return err
		}
	}

	return nil
}

// Helper function to populate registration counts in event response
func (s *service) populateCounts(ctx context.Context, response *EventResponse) {
	if s.counter == nil {
		return
	}

	eventID, err := uuid.Parse(response.ID)
	if err != nil {
		return
	}

	confirmed, err := s.counter.ConfirmedCount(ctx, eventID)
	if err != nil {
		// Counts are decoration; the event itself is still served
		return
	}

	response.ConfirmedCount = confirmed
	available := response.Capacity - confirmed
	if available < 0 {
		available = 0
	}
	response.AvailableSpots = available
}

func (s *service) validateSchedule(start, end time.Time, capacity int) error {
	if !end.After(start) {
		return errors.New("event end time must be after start time")
	}
	if capacity <= 0 {
		return errors.New("capacity must be positive")
	}
	if capacity > s.config.Limits.CapacityMax {
		return fmt.Errorf("capacity must not exceed %d", s.config.Limits.CapacityMax)
	}
	return nil
}

func (s *service) CreateEvent(ctx context.Context, organizerID uuid.UUID, req CreateEventRequest) (*EventResponse, error) {
	// Validate date is in the future
	if req.StartUTC.Before(time.Now().UTC()) {
		return nil, errors.New("event start must be in the future")
	}

	if err := s.validateSchedule(req.StartUTC, req.EndUTC, req.Capacity); err != nil {
		return nil, err
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	waitlistOpen := true
	if req.IsWaitlistOpen != nil {
		waitlistOpen = *req.IsWaitlistOpen
	}

	event := &Event{
		Name:           req.Name,
		Description:    req.Description,
		Location:       req.Location,
		Timezone:       timezone,
		StartUTC:       req.StartUTC.UTC(),
		EndUTC:         req.EndUTC.UTC(),
		Capacity:       req.Capacity,
		OrganizerID:    organizerID,
		IsPublished:    false,
		IsWaitlistOpen: waitlistOpen,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	response := event.ToResponse()
	response.AvailableSpots = event.Capacity

	// Invalidate event cache after creation
	if err := s.invalidateEventCache(ctx, nil); err != nil {
		log.Printf("Warning: failed to invalidate event cache after creation: %v", err)
	}

	return &response, nil
}

func (s *service) GetEventByID(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	cacheKey := constants.BuildEventDetailKey(id.String())

	// Try to get from cache first
	var cachedEvent EventResponse
	if err := s.getCache(ctx, cacheKey, &cachedEvent); err == nil {
		return &cachedEvent, nil
	}

	// Cache miss - get from database
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	response := event.ToResponse()
	s.populateCounts(ctx, &response)

	// Cache the result
	if err := s.setCache(ctx, cacheKey, response, s.config.Cache.EventTTL); err != nil {
		log.Printf("Warning: failed to cache event detail: %v", err)
	}

	return &response, nil
}

func (s *service) UpdateEvent(ctx context.Context, id uuid.UUID, updatedBy uuid.UUID, req UpdateEventRequest) (*EventResponse, error) {
	// Get current event
	currentEvent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Build updates map
	updates := make(map[string]interface{})

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Timezone != nil {
		updates["timezone"] = *req.Timezone
	}

	start := currentEvent.StartUTC
	end := currentEvent.EndUTC
	if req.StartUTC != nil {
		start = req.StartUTC.UTC()
		updates["start_utc"] = start
	}
	if req.EndUTC != nil {
		end = req.EndUTC.UTC()
		updates["end_utc"] = end
	}

	capacity := currentEvent.Capacity
	if req.Capacity != nil {
		capacity = *req.Capacity
		updates["capacity"] = capacity
	}

	if err := s.validateSchedule(start, end, capacity); err != nil {
		return nil, err
	}

	if req.IsWaitlistOpen != nil {
		updates["is_waitlist_open"] = *req.IsWaitlistOpen
	}

	if len(updates) == 0 {
		response := currentEvent.ToResponse()
		s.populateCounts(ctx, &response)
		return &response, nil
	}

	updatedEvent, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	// Invalidate before raising so promotion reads fresh state
	if err := s.invalidateEventCache(ctx, &id); err != nil {
		log.Printf("Warning: failed to invalidate event cache after update: %v", err)
	}

	// Growing capacity frees slots; the promotion handler fills them before
	// this command returns. Shrinking never cancels anyone.
	if capacity < currentEvent.Capacity && s.counter != nil {
		if confirmed, err := s.counter.ConfirmedCount(ctx, id); err == nil && confirmed > capacity {
			log.Printf("Warning: event %s capacity reduced to %d with %d confirmed registrations; none were cancelled", id, capacity, confirmed)
		}
	}
	if additional := capacity - currentEvent.Capacity; additional > 0 && s.dispatcher != nil {
		evt := domain.EventCapacityIncreased{
			EventID:    id,
			Additional: additional,
			Timestamp:  time.Now().UTC(),
		}
		if err := s.dispatcher.Raise(ctx, nil, evt); err != nil {
			return nil, fmt.Errorf("capacity increased but promotion failed: %w", err)
		}
	}

	response := updatedEvent.ToResponse()
	s.populateCounts(ctx, &response)

	return &response, nil
}

func (s *service) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	// Check the event exists first
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	// Events with registration history are never hard-deleted
	if s.counter != nil {
		hasAny, err := s.counter.HasAny(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check event registrations: %w", err)
		}
		if hasAny {
			return domain.ErrHasRegistrations
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if err := s.invalidateEventCache(ctx, &id); err != nil {
		log.Printf("Warning: failed to invalidate event cache after delete: %v", err)
	}

	return nil
}

// Publish makes the event visible; publishing a published event is a no-op
func (s *service) Publish(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	return s.setPublished(ctx, id, true)
}

// Unpublish hides the event; unpublishing a hidden event is a no-op
func (s *service) Unpublish(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	return s.setPublished(ctx, id, false)
}

func (s *service) setPublished(ctx context.Context, id uuid.UUID, published bool) (*EventResponse, error) {
	event, err := s.repo.SetPublished(ctx, id, published)
	if err != nil {
		return nil, err
	}

	if err := s.invalidateEventCache(ctx, &id); err != nil {
		log.Printf("Warning: failed to invalidate event cache after publish toggle: %v", err)
	}

	response := event.ToResponse()
	s.populateCounts(ctx, &response)

	return &response, nil
}

func (s *service) GetAllEvents(ctx context.Context, query EventListQuery) (*PaginatedEvents, error) {
	// Set defaults
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}

	cacheKey := constants.BuildEventListKey(query.Page, query.Limit, query.PublishedOnly)

	// Only plain paginated queries are cached; filtered ones go to the store
	cacheable := query.Search == "" && query.Location == "" && query.DateFrom == "" && query.DateTo == ""

	if cacheable {
		var cachedResult PaginatedEvents
		if err := s.getCache(ctx, cacheKey, &cachedResult); err == nil {
			log.Printf("Cache HIT for event list: %s", cacheKey)
			return &cachedResult, nil
		}
	}

	// Cache miss - get from database
	events, totalCount, err := s.repo.GetAll(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	eventResponses := make([]EventResponse, len(events))
	for i, event := range events {
		response := event.ToResponse()
		s.populateCounts(ctx, &response)
		eventResponses[i] = response
	}

	// Calculate total pages
	totalPages := int(math.Ceil(float64(totalCount) / float64(query.Limit)))

	result := &PaginatedEvents{
		Events:     eventResponses,
		TotalCount: totalCount,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: totalPages,
	}

	if cacheable {
		if err := s.setCache(ctx, cacheKey, result, s.config.Cache.ListTTL); err != nil {
			log.Printf("Warning: failed to cache event list: %v", err)
		}
	}

	return result, nil
}

func (s *service) GetUpcomingEvents(ctx context.Context, limit int) ([]EventResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	cacheKey := constants.BuildEventUpcomingKey(limit)

	// Try to get from cache first
	var cachedResult []EventResponse
	if err := s.getCache(ctx, cacheKey, &cachedResult); err == nil {
		return cachedResult, nil
	}

	// Cache miss - get from database
	events, err := s.repo.GetUpcoming(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get upcoming events: %w", err)
	}

	responses := make([]EventResponse, len(events))
	for i, event := range events {
		response := event.ToResponse()
		s.populateCounts(ctx, &response)
		responses[i] = response
	}

	if err := s.setCache(ctx, cacheKey, responses, s.config.Cache.ListTTL); err != nil {
		log.Printf("Warning: failed to cache upcoming events: %v", err)
	}

	return responses, nil
}
