package constants

import (
	"fmt"
	"time"
)

// Redis Key Configuration
// This file centralizes Redis cache keys and TTL values for the Gatherly application
// Pattern: gatherly:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

// Fallback TTL tiers; the authoritative read-through TTLs come from
// config.CacheConfig (CACHE_EVENT_TTL / CACHE_USER_TTL / CACHE_LIST_TTL).
const (
	TTL_STATIC_SHORT   = 6 * time.Hour    // stable reference data
	TTL_DYNAMIC_MEDIUM = 10 * time.Minute // user profiles
	TTL_DYNAMIC_SHORT  = 5 * time.Minute  // event details
	TTL_DYNAMIC_QUICK  = 2 * time.Minute  // paginated listings
	TTL_REALTIME_SHORT = 1 * time.Minute  // waitlist snapshots
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "gatherly"
)

// ================== EVENTS MODULE ==================

// Event Cache Keys
const (
	// Event listings and searches
	CACHE_KEY_EVENTS_LIST     = CACHE_PREFIX + ":events:list"     // + :page:X:limit:Y:published:Z
	CACHE_KEY_EVENTS_UPCOMING = CACHE_PREFIX + ":events:upcoming" // + :page:X:limit:Y

	// Individual event details
	CACHE_KEY_EVENT_DETAIL = CACHE_PREFIX + ":event:uuid:" // + event-id
)

// ================== USERS MODULE ==================

// User Cache Keys
const (
	CACHE_KEY_USER_DETAIL = CACHE_PREFIX + ":user:uuid:" // + user-id
)

// ================== REGISTRATIONS MODULE ==================

// Registration Cache Keys
const (
	CACHE_KEY_WAITLIST_SNAPSHOT = CACHE_PREFIX + ":registrations:waitlist:event:" // + event-id
)

// ================== IDEMPOTENCY MODULE ==================

// Idempotency claim keys live in Redis next to the cache keys
const (
	IDEMPOTENCY_KEY_PREFIX = CACHE_PREFIX + ":idem:" // + adapter-supplied key
)

// ================== CACHE INVALIDATION PATTERNS ==================

// Patterns for cache invalidation (used with Redis KEYS command or manual invalidation)
const (
	// Event-related invalidation patterns
	PATTERN_INVALIDATE_EVENTS_LISTS = CACHE_PREFIX + ":events:*"

	// User-related invalidation patterns
	PATTERN_INVALIDATE_USER_ALL = CACHE_PREFIX + ":user:*"

	// Waitlist snapshot invalidation
	PATTERN_INVALIDATE_WAITLIST = CACHE_PREFIX + ":registrations:waitlist:*"
)

// ================== HELPER FUNCTIONS ==================

// BuildEventListKey constructs list keys with pagination parameters
// Example: BuildEventListKey(1, 10, true) -> "gatherly:events:list:page:1:limit:10:published:true"
func BuildEventListKey(page, limit int, publishedOnly bool) string {
	return CACHE_KEY_EVENTS_LIST + ":page:" + fmt.Sprintf("%d", page) + ":limit:" + fmt.Sprintf("%d", limit) + ":published:" + fmt.Sprintf("%t", publishedOnly)
}

func BuildEventUpcomingKey(limit int) string {
	return CACHE_KEY_EVENTS_UPCOMING + ":limit:" + fmt.Sprintf("%d", limit)
}

func BuildEventDetailKey(eventID string) string {
	return CACHE_KEY_EVENT_DETAIL + eventID
}

func BuildUserDetailKey(userID string) string {
	return CACHE_KEY_USER_DETAIL + userID
}

func BuildWaitlistSnapshotKey(eventID string) string {
	return CACHE_KEY_WAITLIST_SNAPSHOT + eventID
}

func BuildIdempotencyKey(key string) string {
	return IDEMPOTENCY_KEY_PREFIX + key
}
