package registrations

// Status is persisted as a small integer; the numeric mapping is part of the
// storage contract and must not be reordered.
type Status int

const (
	StatusPending    Status = 0
	StatusConfirmed  Status = 1
	StatusWaitlisted Status = 2
	StatusCancelled  Status = 3
	StatusAttended   Status = 4
	StatusNoShow     Status = 5
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusConfirmed:
		return "CONFIRMED"
	case StatusWaitlisted:
		return "WAITLISTED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusAttended:
		return "ATTENDED"
	case StatusNoShow:
		return "NO_SHOW"
	}
	return "UNKNOWN"
}

func (s Status) IsValid() bool {
	return s >= StatusPending && s <= StatusNoShow
}

// IsActive reports whether the registration still occupies a slot or a
// waitlist position. At most one active registration exists per (event, user).
func (s Status) IsActive() bool {
	return s != StatusCancelled
}

// transitions holds the allowed status moves. Cancelled is terminal and
// reachable from every other state; attendance states only follow Confirmed.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusWaitlisted, StatusCancelled},
	StatusConfirmed:  {StatusCancelled, StatusAttended, StatusNoShow},
	StatusWaitlisted: {StatusConfirmed, StatusCancelled},
	StatusCancelled:  {},
	StatusAttended:   {StatusCancelled},
	StatusNoShow:     {StatusCancelled},
}

// CanTransitionTo reports whether target is a legal next status.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
