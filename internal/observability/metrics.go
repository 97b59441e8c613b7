package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GraphQLOperations counts GraphQL operations by name and outcome.
	GraphQLOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_graphql_operations_total",
		Help: "Total number of GraphQL operations by outcome",
	}, []string{"operation", "outcome"})

	// GraphQLLatency records round-trip latency of GraphQL operations.
	GraphQLLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialfeed_graphql_latency_seconds",
		Help:    "GraphQL operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// CacheLookups counts response cache lookups by query and result: hit, miss or expired.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_cache_lookups_total",
		Help: "Total number of response cache lookups",
	}, []string{"query", "result"})

	// CacheEvictions counts cache entries evicted by mutation invalidation.
	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_cache_evictions_total",
		Help: "Total number of cache entries evicted after mutations",
	}, []string{"query"})

	// FeedStaleResponses counts feed responses discarded because a newer request was dispatched.
	FeedStaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_feed_stale_responses_total",
		Help: "Total number of feed responses discarded as stale",
	})

	// FeedPolls counts background feed refreshes by outcome.
	FeedPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_feed_polls_total",
		Help: "Total number of background feed refreshes",
	}, []string{"outcome"})

	// ToggleRejections counts clicks rejected while a toggle request was in flight.
	ToggleRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_toggle_rejections_total",
		Help: "Total number of toggle clicks rejected while pending",
	}, []string{"control"})

	// ToggleReverts counts optimistic updates rolled back after a failed request.
	ToggleReverts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_toggle_reverts_total",
		Help: "Total number of optimistic toggles reverted",
	}, []string{"control"})

	// SessionEvents counts session lifecycle events (login, logout, restore, refresh).
	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_session_events_total",
		Help: "Total number of session lifecycle events",
	}, []string{"event"})

	// StorageErrors counts local storage backend errors by backend and operation.
	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_storage_errors_total",
		Help: "Total number of local storage errors",
	}, []string{"backend", "operation"})
)
