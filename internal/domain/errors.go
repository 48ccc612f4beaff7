package domain

import "errors"

// Sentinel errors shared across services and controllers. Controllers map
// these to HTTP responses with errors.Is; repositories translate driver
// errors (gorm.ErrRecordNotFound, unique violations) into them.
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrRegistrationNotFound = errors.New("registration not found")

	ErrEventNotPublished = errors.New("event is not published")
	ErrEventStarted      = errors.New("event has already started")
	ErrAlreadyRegistered = errors.New("user already has an active registration for this event")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrAlreadyPublished  = errors.New("event is already published")
	ErrHasRegistrations  = errors.New("event has registrations and cannot be deleted")
	ErrWaitlistClosed    = errors.New("waitlist is closed for this event")
	ErrInvalidTransition = errors.New("invalid registration status transition")

	ErrNotAuthorized = errors.New("not authorized to perform this action")

	ErrEmailTaken = errors.New("email already registered")
)
