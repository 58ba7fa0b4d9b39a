package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the conference authentication authority.
//
// Naming convention: namespace_subsystem_name
// - namespace: conference_authority (application-level grouping)
// - subsystem: authority, redis, rate_limit, circuit_breaker (feature-level grouping)
// - name: specific metric (tokens_issued_total, states_live, etc.)
//
// Metric Types:
// - Gauge: Current state (live tokens, live states)
// - Counter: Cumulative events (issuance, evictions, listener failures)
// - Histogram: Latency distributions. Public Authority operations are
//   expected to complete in microseconds and are covered by tracing spans
//   instead; histograms here are reserved for out-of-process calls (Redis).

var (
	// TokensIssuedTotal tracks the total number of authentication tokens issued.
	TokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conference_authority",
		Subsystem: "authority",
		Name:      "tokens_issued_total",
		Help:      "Total number of authentication tokens issued",
	})

	// TokensLive tracks the current number of unredeemed tokens.
	TokensLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conference_authority",
		Subsystem: "authority",
		Name:      "tokens_live",
		Help:      "Current number of unredeemed authentication tokens",
	})

	// StatesLive tracks the current number of authentication states.
	StatesLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conference_authority",
		Subsystem: "authority",
		Name:      "states_live",
		Help:      "Current number of active authentication states",
	})

	// AuthenticateAttemptsTotal tracks authenticate() outcomes.
	AuthenticateAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conference_authority",
		Subsystem: "authority",
		Name:      "authenticate_attempts_total",
		Help:      "Total authenticate() calls by outcome",
	}, []string{"outcome"}) // "success", "unknown_token"

	// TokensEvictedTotal tracks tokens removed by a path other than consumption.
	TokensEvictedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conference_authority",
		Subsystem: "authority",
		Name:      "tokens_evicted_total",
		Help:      "Total tokens removed by expiry or room-destroyed, by cause",
	}, []string{"cause"}) // "expired", "room_gone"

	// StatesEvictedTotal tracks states removed by a path other than overwrite.
	StatesEvictedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conference_authority",
		Subsystem: "authority",
		Name:      "states_evicted_total",
		Help:      "Total states removed by expiry or room-destroyed, by cause",
	}, []string{"cause"}) // "pre_auth_expired", "room_gone"

	// ListenerDispatchFailuresTotal tracks identity-bind listener failures.
	ListenerDispatchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conference_authority",
		Subsystem: "authority",
		Name:      "listener_dispatch_failures_total",
		Help:      "Total identity-bind listener dispatch failures, by listener kind",
	}, []string{"listener"}) // "in_process", "redis_bus"

	// RateLimitExceededTotal tracks issue-url calls rejected by the rate limiter.
	RateLimitExceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conference_authority",
		Subsystem: "rate_limit",
		Name:      "issue_url_exceeded_total",
		Help:      "Total issue-url calls rejected by the per-address rate limiter",
	})

	// CircuitBreakerState tracks the current state of a named circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "conference_authority",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of a circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"breaker"})

	// CircuitBreakerFailuresTotal tracks requests rejected by an open breaker.
	CircuitBreakerFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conference_authority",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by an open circuit breaker",
	}, []string{"breaker"})

	// RedisOperationsTotal tracks the total number of Redis operations.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conference_authority",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks the duration of Redis operations.
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "conference_authority",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)
