package idempotency

import (
	"context"
	"time"
)

// Store records one-shot command claims so a retried request executes once.
type Store interface {
	// TryClaim claims key for ttl. It returns true when this caller made the
	// claim and false when the key is already held.
	TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees a claim so the caller may retry after a failed command.
	Release(ctx context.Context, key string) error
}
