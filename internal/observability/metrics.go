package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are registered globally. The scheduler binary therefore
// exports the ingest and jobs series with zero values, which is harmless.

// namespace defines the global prefix for all metrics (e.g., valkyrie_...).
const namespace = "valkyrie"

// lowLatencyBuckets covers the per-event rule evaluation path.
// Range: 1ms to 1s.
var lowLatencyBuckets = []float64{.001, .002, .005, .010, .025, .050, .100, .250, .500, 1}

// deliveryBuckets covers outbound action delivery (HTTP, SMTP, chat APIs).
var deliveryBuckets = []float64{.010, .025, .050, .100, .250, .500, 1, 2.5, 5, 10}

var (
	// -------------------------------------------------------------------------
	// INGEST (gRPC)
	// -------------------------------------------------------------------------

	// IngestGrpcDuration measures the latency of gRPC requests.
	// Metric: valkyrie_ingest_grpc_handling_seconds
	IngestGrpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "grpc_handling_seconds",
		Help:      "Time taken to handle gRPC requests",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "code"})

	// IngestGrpcTotal counts the total number of gRPC requests.
	IngestGrpcTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "grpc_requests_total",
		Help:      "Total gRPC requests",
	}, []string{"method", "code"})

	// -------------------------------------------------------------------------
	// JOBS API (HTTP)
	// -------------------------------------------------------------------------

	// JobsReqDuration measures the latency of HTTP requests.
	// Metric: valkyrie_jobs_http_handling_seconds
	JobsReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in the jobs API",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	// JobsReqTotal counts the total number of HTTP requests.
	JobsReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in the jobs API",
	}, []string{"method", "path", "code"})

	// -------------------------------------------------------------------------
	// RULE ENGINE
	// -------------------------------------------------------------------------

	// EngineEvaluationDuration measures one full pass over a tenant's active rules.
	// Metric: valkyrie_engine_evaluation_seconds
	EngineEvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "evaluation_seconds",
		Help:      "Time taken to evaluate all active rules for one player event",
		Buckets:   lowLatencyBuckets,
	})

	// EngineRuleOutcomes counts per-rule outcomes.
	// outcome: fired, not_triggered, gated, locked, error
	EngineRuleOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "rule_outcomes_total",
		Help:      "Total rule evaluations by outcome",
	}, []string{"outcome"})

	// EngineExecutions counts recorded execution rows.
	EngineExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "executions_total",
		Help:      "Total execution records written",
	}, []string{"status"}) // success, failure

	// EngineUnknownTriggers counts rules skipped because their trigger type has no evaluator.
	EngineUnknownTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "unknown_triggers_total",
		Help:      "Total rules skipped due to unsupported trigger types",
	})

	// -------------------------------------------------------------------------
	// ACTIONS
	// -------------------------------------------------------------------------

	// ActionDispatchDuration measures outbound delivery latency per action type.
	// Metric: valkyrie_action_dispatch_seconds
	ActionDispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "action",
		Name:      "dispatch_seconds",
		Help:      "Time taken to deliver an action",
		Buckets:   deliveryBuckets,
	}, []string{"action_type"})

	// ActionDispatchTotal counts deliveries per action type and status.
	ActionDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "action",
		Name:      "dispatch_total",
		Help:      "Total action deliveries",
	}, []string{"action_type", "status"}) // success, fail, skipped

	// -------------------------------------------------------------------------
	// SEGMENTS
	// -------------------------------------------------------------------------

	// SegmentRecomputeDuration measures one full recomputation of a tenant's segments.
	// Metric: valkyrie_segment_recompute_seconds
	SegmentRecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "recompute_seconds",
		Help:      "Time taken to recompute every segment of a tenant",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// SegmentTransitions counts membership changes.
	SegmentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "transitions_total",
		Help:      "Total segment membership transitions",
	}, []string{"action"}) // entry, exit

	// -------------------------------------------------------------------------
	// CACHE & LOCKS
	// -------------------------------------------------------------------------

	RuleCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "rule_hits_total",
		Help:      "Total active-rule lookups served from the in-memory cache",
	})

	RuleCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "rule_misses_total",
		Help:      "Total active-rule lookups that went to the database",
	})

	// RuleCacheItems reflects the number of tenants with cached rule sets.
	RuleCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "rule_items_count",
		Help:      "Current number of tenants in the rule cache",
	})

	RuleCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "rule_invalidations_total",
		Help:      "Total rule cache invalidations",
	})

	// RuleCacheEvictions mirrors otter's cumulative eviction count.
	RuleCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "rule_evictions_total",
		Help:      "Total rule sets evicted from the in-memory cache",
	})

	// LockContention counts admission attempts rejected because another
	// instance holds the (tenant, rule, player) lock.
	LockContention = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "contention_total",
		Help:      "Total admission lock acquisitions rejected due to contention",
	})

	// -------------------------------------------------------------------------
	// SCHEDULER (Workers)
	// -------------------------------------------------------------------------

	// SchedulerRunDuration measures one scheduler cycle over all tenants.
	SchedulerRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "run_duration_seconds",
		Help:      "Time taken by one scheduler cycle",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	SchedulerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "tenant_runs_total",
		Help:      "Total per-tenant scheduler runs",
	}, []string{"status"}) // success, fail

	// -------------------------------------------------------------------------
	// DATABASE POOL
	// -------------------------------------------------------------------------

	// DBPoolConnections reports pool connection counts by state.
	// state: total, idle, in_use, max
	DBPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "Current number of database pool connections by state",
	}, []string{"state"})

	DBPoolAcquireCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_count_total",
		Help:      "Cumulative count of successful connection acquisitions",
	})

	DBPoolAcquireDuration = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquire_duration_seconds_total",
		Help:      "Cumulative time spent acquiring connections",
	})

	DBPoolWaitCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_wait_count_total",
		Help:      "Cumulative count of acquisitions that had to wait",
	})

	// -------------------------------------------------------------------------
	// Redis pool (admission lock backend)
	// -------------------------------------------------------------------------

	// RedisPoolConnections reports pool connection counts by state.
	// state: total, idle, stale
	RedisPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_connections",
		Help:      "Current number of Redis pool connections by state",
	}, []string{"state"})

	RedisPoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_hits_total",
		Help:      "Cumulative count of free connections found in the pool",
	})

	RedisPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_misses_total",
		Help:      "Cumulative count of connections that had to be dialed",
	})

	RedisPoolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_timeouts_total",
		Help:      "Cumulative count of pool wait timeouts",
	})
)
