// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Query pipeline.
var (
	QueryExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm_query_executions_total",
			Help: "Named graph query executions by outcome (ok, error, timeout, cached)",
		},
		[]string{"query", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pm_query_duration_seconds",
			Help:    "Graph query latency per named query",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"query"},
	)

	IntentClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm_intent_classifications_total",
			Help: "Primary intents assigned to incoming queries",
		},
		[]string{"intent"},
	)

	ResponseConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pm_response_confidence",
			Help:    "Confidence of responses returned to callers",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	DegradedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pm_degraded_responses_total",
			Help: "Turns answered with the generic apology response",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pm_active_sessions",
			Help: "Conversations currently held in the session store",
		},
	)
)

// Relationship intelligence.
var (
	InferredRelationships = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm_inferred_relationships_total",
			Help: "Inference candidates by pattern and outcome (persisted, skipped, below_threshold, failed)",
		},
		[]string{"pattern", "outcome"},
	)

	SourceValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm_source_validations_total",
			Help: "Cross-validations by consensus level and cache hit",
		},
		[]string{"consensus", "cached"},
	)

	EnrichmentCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm_enrichment_calls_total",
			Help: "Optional enrichment calls by outcome",
		},
		[]string{"status"},
	)
)

var IngestedRecords = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pm_ingested_records_total",
		Help: "CSV records ingested by kind (entity, relationship) and outcome",
	},
	[]string{"kind", "outcome"},
)
