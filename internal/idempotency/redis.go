package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatherly/internal/shared/constants"
)

// RedisStore implements Store with SET NX EX, sharing the cache's Redis
// instance. Claims expire on their own; Release only matters for fast retry
// after a failed command.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, constants.BuildIdempotencyKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim failed: %w", err)
	}
	return claimed, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, constants.BuildIdempotencyKey(key)).Err(); err != nil {
		return fmt.Errorf("idempotency release failed: %w", err)
	}
	return nil
}
