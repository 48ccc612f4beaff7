package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps claims in process memory. It backs tests and single-node
// development; anything multi-instance needs the Redis store.
type MemoryStore struct {
	mu     sync.Mutex
	claims map[string]time.Time // key -> expiry
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryStore) TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.reap(now)

	if expiry, ok := s.claims[key]; ok && expiry.After(now) {
		return false, nil
	}
	s.claims[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claims, key)
	return nil
}

// reap drops expired claims. Caller holds the lock.
func (s *MemoryStore) reap(now time.Time) {
	for key, expiry := range s.claims {
		if !expiry.After(now) {
			delete(s.claims, key)
		}
	}
}
