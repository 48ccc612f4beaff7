package registrations

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Specification captures the shape of a registration query (where / order /
// preload / skip / take) so repositories materialize it to SQL in one place.
type Specification struct {
	conds    []condition
	orderBy  string
	preloads []string
	limit    int
	offset   int
}

type condition struct {
	query string
	args  []interface{}
}

func Spec() *Specification {
	return &Specification{}
}

func (s *Specification) Where(query string, args ...interface{}) *Specification {
	s.conds = append(s.conds, condition{query: query, args: args})
	return s
}

func (s *Specification) OrderBy(expr string) *Specification {
	s.orderBy = expr
	return s
}

func (s *Specification) Preload(association string) *Specification {
	s.preloads = append(s.preloads, association)
	return s
}

func (s *Specification) Skip(n int) *Specification {
	s.offset = n
	return s
}

func (s *Specification) Take(n int) *Specification {
	s.limit = n
	return s
}

// applyWhere materializes only the where-conditions, for count queries.
func (s *Specification) applyWhere(db *gorm.DB) *gorm.DB {
	for _, c := range s.conds {
		db = db.Where(c.query, c.args...)
	}
	return db
}

// Apply materializes the specification onto a gorm query.
func (s *Specification) Apply(db *gorm.DB) *gorm.DB {
	db = s.applyWhere(db)
	for _, p := range s.preloads {
		db = db.Preload(p)
	}
	if s.orderBy != "" {
		db = db.Order(s.orderBy)
	}
	if s.offset > 0 {
		db = db.Offset(s.offset)
	}
	if s.limit > 0 {
		db = db.Limit(s.limit)
	}
	return db
}

// ByEvent matches every registration of one event, newest first.
func ByEvent(eventID uuid.UUID) *Specification {
	return Spec().
		Where("event_id = ?", eventID).
		OrderBy("registered_at DESC")
}

// WaitlistOf matches the waitlisted rows of one event in queue order. Ties on
// position fall back to registration time, then id.
func WaitlistOf(eventID uuid.UUID) *Specification {
	return Spec().
		Where("event_id = ? AND status = ?", eventID, StatusWaitlisted).
		OrderBy("position_in_queue ASC, registered_at ASC, id ASC")
}

// ByUser matches every registration of one user, newest first.
func ByUser(userID uuid.UUID) *Specification {
	return Spec().
		Where("user_id = ?", userID).
		OrderBy("registered_at DESC")
}
