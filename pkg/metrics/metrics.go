package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheOps counts cache lookups by name and outcome (hit/miss)
	CacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatherly_cache_ops_total",
			Help: "Cache lookups by cache name and outcome",
		},
		[]string{"cache", "outcome"},
	)

	// Registrations counts accepted registrations by resulting status
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatherly_registrations_total",
			Help: "Accepted registrations by resulting status",
		},
		[]string{"status"},
	)

	// Promotions counts waitlist promotions by trigger (cancellation/capacity/admin)
	Promotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatherly_waitlist_promotions_total",
			Help: "Waitlist promotions by trigger",
		},
		[]string{"trigger"},
	)

	// OutboxDeliveries counts outbox delivery attempts by outcome
	// (published/processed/retried/dead_lettered)
	OutboxDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatherly_outbox_deliveries_total",
			Help: "Outbox delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	// OutboxPending tracks the pending outbox backlog observed at each claim cycle
	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatherly_outbox_pending",
			Help: "Pending outbox rows observed at the last claim cycle",
		},
	)

	// HandlerDuration tracks async handler execution time by event type
	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatherly_handler_duration_seconds",
			Help:    "Async handler execution time by event type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)
)

// CacheHit records a cache hit for the named cache.
func CacheHit(cache string) { CacheOps.WithLabelValues(cache, "hit").Inc() }

// CacheMiss records a cache miss for the named cache.
func CacheMiss(cache string) { CacheOps.WithLabelValues(cache, "miss").Inc() }

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
