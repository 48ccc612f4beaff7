package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/pkg/cache"
)

type cachedEvent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func newService(t *testing.T) (cache.Service, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return cache.NewService(client), mr
}

func TestService_SetGetRoundTrip(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	stored := cachedEvent{ID: "e1", Name: "Distributed Systems Meetup", Capacity: 120}
	require.NoError(t, svc.Set(ctx, "gatherly:event:uuid:e1", stored, 5*time.Minute))
	assert.Equal(t, 5*time.Minute, mr.TTL("gatherly:event:uuid:e1"))

	var got cachedEvent
	require.NoError(t, svc.Get(ctx, "gatherly:event:uuid:e1", &got))
	assert.Equal(t, stored, got)
}

func TestService_Get_MissIsTyped(t *testing.T) {
	svc, _ := newService(t)

	var got cachedEvent
	err := svc.Get(context.Background(), "gatherly:event:uuid:absent", &got)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestService_Get_ExpiredKeyMisses(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "gatherly:event:uuid:e1", cachedEvent{ID: "e1"}, time.Minute))
	mr.FastForward(61 * time.Second)

	var got cachedEvent
	assert.ErrorIs(t, svc.Get(ctx, "gatherly:event:uuid:e1", &got), cache.ErrCacheMiss)
}

func TestService_Get_CorruptEntryFails(t *testing.T) {
	svc, mr := newService(t)
	require.NoError(t, mr.Set("gatherly:event:uuid:e1", "not json"))

	var got cachedEvent
	err := svc.Get(context.Background(), "gatherly:event:uuid:e1", &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache unmarshal error")
}

func TestService_GetOrSet_FetchesOnceThenServesFromCache(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	fetches := 0
	fetcher := func() (interface{}, error) {
		fetches++
		return cachedEvent{ID: "e1", Name: "Distributed Systems Meetup"}, nil
	}

	var first cachedEvent
	require.NoError(t, svc.GetOrSet(ctx, "gatherly:event:uuid:e1", time.Minute, fetcher, &first))
	assert.Equal(t, "Distributed Systems Meetup", first.Name)
	assert.Equal(t, 1, fetches)

	// the cache write behind GetOrSet is fire-and-forget
	require.Eventually(t, func() bool { return mr.Exists("gatherly:event:uuid:e1") }, time.Second, 5*time.Millisecond)

	var second cachedEvent
	require.NoError(t, svc.GetOrSet(ctx, "gatherly:event:uuid:e1", time.Minute, fetcher, &second))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetches, "a warm cache must not refetch")
}

func TestService_GetOrSet_PropagatesFetcherError(t *testing.T) {
	svc, _ := newService(t)
	cause := errors.New("connection refused")

	var got cachedEvent
	err := svc.GetOrSet(context.Background(), "gatherly:event:uuid:e1", time.Minute, func() (interface{}, error) {
		return nil, cause
	}, &got)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "fetcher error")
}

func TestService_DeleteAndExists(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "gatherly:event:uuid:e1", cachedEvent{ID: "e1"}, time.Minute))
	assert.True(t, svc.Exists(ctx, "gatherly:event:uuid:e1"))

	require.NoError(t, svc.Delete(ctx, "gatherly:event:uuid:e1"))
	assert.False(t, svc.Exists(ctx, "gatherly:event:uuid:e1"))

	// deleting an absent key is not an error
	require.NoError(t, svc.Delete(ctx, "gatherly:event:uuid:e1"))
}

func TestService_DeletePattern_ScopesToNamespace(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "gatherly:events:list:page:1:limit:20:published:true", []string{"e1"}, time.Minute))
	require.NoError(t, svc.Set(ctx, "gatherly:events:upcoming:limit:5", []string{"e2"}, time.Minute))
	require.NoError(t, svc.Set(ctx, "gatherly:user:uuid:u1", cachedEvent{ID: "u1"}, time.Minute))

	require.NoError(t, svc.DeletePattern(ctx, "gatherly:events:*"))

	assert.False(t, mr.Exists("gatherly:events:list:page:1:limit:20:published:true"))
	assert.False(t, mr.Exists("gatherly:events:upcoming:limit:5"))
	assert.True(t, mr.Exists("gatherly:user:uuid:u1"), "other namespaces survive")

	// a pattern with no matches is a no-op
	require.NoError(t, svc.DeletePattern(ctx, "gatherly:events:*"))
}

func TestService_MSetMGet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	items := map[string]interface{}{
		"gatherly:event:uuid:e1": cachedEvent{ID: "e1", Name: "First"},
		"gatherly:event:uuid:e2": cachedEvent{ID: "e2", Name: "Second"},
	}
	require.NoError(t, svc.MSet(ctx, items, time.Minute))

	var got []cachedEvent
	require.NoError(t, svc.MGet(ctx, []string{"gatherly:event:uuid:e1", "gatherly:event:uuid:e2"}, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "First", got[0].Name)
	assert.Equal(t, "Second", got[1].Name)
}

func TestService_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := cache.NewService(client)

	require.NoError(t, svc.Ping(context.Background()))

	mr.Close()
	assert.Error(t, svc.Ping(context.Background()))
}
