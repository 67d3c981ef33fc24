package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for ProposalDesk.
type Metrics struct {
	// --- Snapshot ingestion ---
	SnapshotEvents    *prometheus.CounterVec
	SnapshotStale     prometheus.Counter
	IngestParseErrors *prometheus.CounterVec

	// --- Classification ---
	AccountsClassified *prometheus.CounterVec

	// --- Planning ---
	PlansBuilt   *prometheus.CounterVec
	PlanRequests prometheus.Histogram

	// --- Execution ---
	ExecutionsTotal    *prometheus.CounterVec
	SubmissionFailures prometheus.Counter
	RefetchDuration    prometheus.Histogram

	// --- Audit persistence ---
	AuditRowsWritten prometheus.Counter
	AuditBatchDur    prometheus.Histogram
	AuditErrors      prometheus.Counter

	// --- Summary cache ---
	CacheUpdates prometheus.Counter
	CacheErrors  prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on the default registry.
func NewMetrics() *Metrics {
	apiBuckets := []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
	refetchBuckets := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	return &Metrics{
		SnapshotEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_snapshot_events_total",
			Help: "Snapshot feed events applied to the store",
		}, []string{"event_type"}),
		SnapshotStale: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desk_snapshot_stale_total",
			Help: "Snapshot events dropped because a newer slot was already applied",
		}),
		IngestParseErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_ingest_parse_errors_total",
			Help: "Feed payloads that failed to parse",
		}, []string{"event_type"}),

		AccountsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_accounts_classified_total",
			Help: "Account classifications by resulting status",
		}, []string{"status"}),

		PlansBuilt: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_plans_built_total",
			Help: "Operation plans built by intent",
		}, []string{"intent"}),
		PlanRequests: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "desk_plan_requests",
			Help:    "Operation requests per built plan",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		ExecutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_executions_total",
			Help: "Plan executions by intent and final state",
		}, []string{"intent", "state"}),
		SubmissionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desk_submission_failures_total",
			Help: "Transaction batches that failed or only partially landed",
		}),
		RefetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "desk_refetch_duration_seconds",
			Help:    "Duration of the post-confirmation refetch round",
			Buckets: refetchBuckets,
		}),

		AuditRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desk_audit_rows_written_total",
			Help: "Execution audit rows written to Postgres",
		}),
		AuditBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "desk_audit_batch_duration_seconds",
			Help:    "Duration of audit batch flushes",
			Buckets: apiBuckets,
		}),
		AuditErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desk_audit_errors_total",
			Help: "Failed audit batch writes",
		}),

		CacheUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desk_cache_updates_total",
			Help: "Summary cache writes",
		}),
		CacheErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "desk_cache_errors_total",
			Help: "Failed summary cache operations",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "desk_query_requests_total",
			Help: "HTTP API requests by route and status code",
		}, []string{"route", "code"}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "desk_query_duration_seconds",
			Help:    "HTTP API request duration by route",
			Buckets: apiBuckets,
		}, []string{"route"}),
	}
}
