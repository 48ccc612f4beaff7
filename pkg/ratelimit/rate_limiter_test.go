package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/pkg/ratelimit"
)

func limiterConfig() *ratelimit.Config {
	return &ratelimit.Config{
		Enabled:              true,
		WindowDuration:       60 * time.Second,
		DefaultRequests:      60,
		PublicRequests:       100,
		AuthRequests:         3,
		RegistrationRequests: 20,
		AdminRequests:        200,
		UserRequests:         30,
		HealthRequests:       300,
	}
}

func newLimiter(t *testing.T, cfg *ratelimit.Config) (*ratelimit.RateLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return ratelimit.NewRateLimiter(client, cfg), mr
}

func TestRateLimiter_AllowsUntilBudgetExhausted(t *testing.T) {
	limiter, _ := newLimiter(t, limiterConfig())
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		res, err := limiter.IsAllowed(ctx, "203.0.113.7", ratelimit.RateLimitTypeAuth)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, want, res.Remaining)
	}

	res, err := limiter.IsAllowed(ctx, "203.0.113.7", ratelimit.RateLimitTypeAuth)
	require.NoError(t, err)
	assert.False(t, res.Allowed, "request over budget must be rejected")
	assert.Zero(t, res.Remaining)

	// rejected requests do not consume budget; the answer stays stable
	res, err = limiter.IsAllowed(ctx, "203.0.113.7", ratelimit.RateLimitTypeAuth)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	cfg := limiterConfig()
	cfg.WindowDuration = time.Second
	cfg.AuthRequests = 2
	limiter, _ := newLimiter(t, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.IsAllowed(ctx, "203.0.113.7", ratelimit.RateLimitTypeAuth)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := limiter.IsAllowed(ctx, "203.0.113.7", ratelimit.RateLimitTypeAuth)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	// once the window passes, the old requests age out
	time.Sleep(1100 * time.Millisecond)

	res, err = limiter.IsAllowed(ctx, "203.0.113.7", ratelimit.RateLimitTypeAuth)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestRateLimiter_BudgetsAreScopedPerClientAndType(t *testing.T) {
	cfg := limiterConfig()
	cfg.AuthRequests = 1
	limiter, mr := newLimiter(t, cfg)
	ctx := context.Background()

	res, err := limiter.IsAllowed(ctx, "203.0.113.7", ratelimit.RateLimitTypeAuth)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.IsAllowed(ctx, "203.0.113.7", ratelimit.RateLimitTypeAuth)
	require.NoError(t, err)
	assert.False(t, res.Allowed, "auth budget for this client is spent")

	// another client has their own budget
	res, err = limiter.IsAllowed(ctx, "198.51.100.14", ratelimit.RateLimitTypeAuth)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// the same client still has other budgets
	res, err = limiter.IsAllowed(ctx, "203.0.113.7", ratelimit.RateLimitTypeUser)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	assert.True(t, mr.Exists("gatherly:ratelimit:203.0.113.7:auth"))
	assert.True(t, mr.Exists("gatherly:ratelimit:198.51.100.14:auth"))
	assert.True(t, mr.Exists("gatherly:ratelimit:203.0.113.7:user"))
}

func TestRateLimiter_DisabledAlwaysAllows(t *testing.T) {
	cfg := limiterConfig()
	cfg.Enabled = false

	// the disabled path never touches Redis
	limiter := ratelimit.NewRateLimiter(nil, cfg)

	for i := 0; i < 10; i++ {
		res, err := limiter.IsAllowed(context.Background(), "203.0.113.7", ratelimit.RateLimitTypeAuth)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, cfg.AuthRequests, res.Remaining)
	}
}

func TestRateLimiter_LimitsFollowRouteClass(t *testing.T) {
	cfg := limiterConfig()
	cfg.Enabled = false
	limiter := ratelimit.NewRateLimiter(nil, cfg)
	ctx := context.Background()

	cases := map[ratelimit.RateLimitType]int{
		ratelimit.RateLimitTypeDefault:      cfg.DefaultRequests,
		ratelimit.RateLimitTypePublic:       cfg.PublicRequests,
		ratelimit.RateLimitTypeAuth:         cfg.AuthRequests,
		ratelimit.RateLimitTypeRegistration: cfg.RegistrationRequests,
		ratelimit.RateLimitTypeAdmin:        cfg.AdminRequests,
		ratelimit.RateLimitTypeUser:         cfg.UserRequests,
		ratelimit.RateLimitTypeHealth:       cfg.HealthRequests,
	}
	for limitType, want := range cases {
		res, err := limiter.IsAllowed(ctx, "203.0.113.7", limitType)
		require.NoError(t, err)
		assert.Equal(t, want, res.Limit, string(limitType))
	}

	// unrecognized classes fall back to the default budget
	res, err := limiter.IsAllowed(ctx, "203.0.113.7", ratelimit.RateLimitType("graphql"))
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultRequests, res.Limit)
}

func TestRateLimiter_ResetTimeTracksWindow(t *testing.T) {
	limiter, _ := newLimiter(t, limiterConfig())

	res, err := limiter.IsAllowed(context.Background(), "203.0.113.7", ratelimit.RateLimitTypeAuth)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(60*time.Second), time.Unix(res.ResetTime, 0), 2*time.Second)
}
