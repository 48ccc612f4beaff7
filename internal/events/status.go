package events

import "time"

type Status string

const (
	StatusUpcoming Status = "UPCOMING"
	StatusActive   Status = "ACTIVE"
	StatusEnded    Status = "ENDED"
)

// CurrentStatus derives the lifecycle phase from the schedule
func (e *Event) CurrentStatus(now time.Time) Status {
	switch {
	case now.Before(e.StartUTC):
		return StatusUpcoming
	case now.Before(e.EndUTC):
		return StatusActive
	default:
		return StatusEnded
	}
}

func (e *Event) HasStarted(now time.Time) bool {
	return !now.Before(e.StartUTC)
}

// IsRegisterable reports whether a new registration may be accepted
func (e *Event) IsRegisterable(now time.Time) bool {
	return e.IsPublished && !e.HasStarted(now)
}
