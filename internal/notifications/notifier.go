package notifications

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
	"gatherly/internal/queue"
	"gatherly/internal/users"
	"gatherly/pkg/logger"
)

// dedupTTL bounds how long a delivered notification's claim is remembered.
// Outbox redelivery happens within minutes; a day of memory is plenty.
const dedupTTL = 24 * time.Hour

// Notifier fans registration transitions out to per-event topics. It runs on
// the async side of the dispatcher, so every handler tolerates redelivery:
// the idempotency claim on the notification's natural key suppresses
// duplicates.
type Notifier struct {
	transport queue.Transport
	idem      idempotency.Store
	users     users.Repository
	events    events.Repository
	log       *logger.Logger
}

func NewNotifier(transport queue.Transport, idem idempotency.Store, usersRepo users.Repository, eventsRepo events.Repository, appLogger *logger.Logger) *Notifier {
	if appLogger == nil {
		appLogger = logger.GetDefault()
	}
	return &Notifier{
		transport: transport,
		idem:      idem,
		users:     usersRepo,
		events:    eventsRepo,
		log:       appLogger,
	}
}

// RegisterHandlers subscribes the notifier to every async registration event
func (n *Notifier) RegisterHandlers(router *dispatch.Router) {
	router.On(domain.EventTypeRegistrationCreated, n.OnRegistrationCreated)
	router.On(domain.EventTypeRegistrationWaitlisted, n.OnRegistrationWaitlisted)
	router.On(domain.EventTypeRegistrationPromoted, n.OnRegistrationPromoted)
}

func (n *Notifier) OnRegistrationCreated(ctx context.Context, evt domain.Event) error {
	created, ok := evt.(domain.RegistrationCreated)
	if !ok {
		return fmt.Errorf("notifier: unexpected payload for %s", evt.EventType())
	}
	if !created.Confirmed {
		// the companion registration.waitlisted event covers this row
		return nil
	}
	return n.publish(ctx, created.EventID, created.UserID, created.RegistrationID, ActionRegistered, created.Timestamp)
}

func (n *Notifier) OnRegistrationWaitlisted(ctx context.Context, evt domain.Event) error {
	waitlisted, ok := evt.(domain.RegistrationWaitlisted)
	if !ok {
		return fmt.Errorf("notifier: unexpected payload for %s", evt.EventType())
	}
	return n.publish(ctx, waitlisted.EventID, waitlisted.UserID, waitlisted.RegistrationID, ActionWaitlisted, waitlisted.Timestamp)
}

func (n *Notifier) OnRegistrationPromoted(ctx context.Context, evt domain.Event) error {
	promoted, ok := evt.(domain.RegistrationPromoted)
	if !ok {
		return fmt.Errorf("notifier: unexpected payload for %s", evt.EventType())
	}
	return n.publish(ctx, promoted.EventID, promoted.UserID, promoted.RegistrationID, ActionPromoted, promoted.Timestamp)
}

func (n *Notifier) publish(ctx context.Context, eventID, userID, registrationID uuid.UUID, action Action, occurredOn time.Time) error {
	notification := &EventRegistrationNotification{
		EventID:        eventID,
		UserID:         userID,
		RegistrationID: registrationID,
		Action:         action,
		Timestamp:      occurredOn.UTC(),
	}

	claimed, err := n.idem.TryClaim(ctx, notification.DedupKey(), dedupTTL)
	if err != nil {
		return fmt.Errorf("notifier: claim dedup key: %w", err)
	}
	if !claimed {
		log.Printf("📤 Notification already published, skipping - registration: %s, action: %s", registrationID, action)
		return nil
	}

	if err := n.resolveDisplayFields(ctx, notification); err != nil {
		n.releaseClaim(ctx, notification)
		return err
	}

	payload, err := notification.ToJSON()
	if err != nil {
		n.releaseClaim(ctx, notification)
		return fmt.Errorf("notifier: encode notification: %w", err)
	}

	envelope := queue.Envelope{
		EventType: "notification.event_registration",
		Payload:   string(payload),
	}
	if err := n.transport.Publish(ctx, TopicFor(eventID), eventID.String(), notification.DedupKey(), envelope); err != nil {
		n.releaseClaim(ctx, notification)
		return fmt.Errorf("notifier: publish to %s: %w", TopicFor(eventID), err)
	}

	log.Printf("📤 Notification published - topic: %s, action: %s, user: %s", TopicFor(eventID), action, userID)
	return nil
}

// resolveDisplayFields fills the event title and user name. A row that no
// longer exists (erased user, deleted event) is not an error; subscribers get
// the ids either way.
func (n *Notifier) resolveDisplayFields(ctx context.Context, notification *EventRegistrationNotification) error {
	event, err := n.events.GetByID(ctx, notification.EventID)
	switch {
	case err == nil:
		notification.EventTitle = event.Name
	case errors.Is(err, domain.ErrEventNotFound):
	default:
		return fmt.Errorf("notifier: resolve event %s: %w", notification.EventID, err)
	}

	user, err := n.users.GetByID(ctx, notification.UserID)
	switch {
	case err == nil:
		notification.UserName = user.FullName()
	case errors.Is(err, domain.ErrUserNotFound):
	default:
		return fmt.Errorf("notifier: resolve user %s: %w", notification.UserID, err)
	}

	return nil
}

// releaseClaim frees the dedup key after a failed publish so the redelivered
// event can try again.
func (n *Notifier) releaseClaim(ctx context.Context, notification *EventRegistrationNotification) {
	if err := n.idem.Release(ctx, notification.DedupKey()); err != nil {
		log.Printf("Warning: failed to release notification claim %s: %v", notification.DedupKey(), err)
	}
}
