package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workflowRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckchat_workflow_runs_total",
			Help: "Total number of completed agent workflow runs by outcome.",
		},
		[]string{"outcome"},
	)
	workflowDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckchat_workflow_duration_seconds",
			Help:    "End-to-end agent workflow latency in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		},
	)
	repairAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duckchat_repair_attempts_total",
			Help: "Total number of SQL repair attempts across all runs.",
		},
	)
	validationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckchat_validation_rejections_total",
			Help: "Total number of SQL candidates rejected by the validator, by reason.",
		},
		[]string{"reason"},
	)
	llmRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckchat_llm_request_duration_seconds",
			Help:    "Chat-completion backend latency by call site.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"purpose"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckchat_query_duration_seconds",
			Help:    "Row store query execution latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
	schemaRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duckchat_schema_refreshes_total",
			Help: "Total number of schema cache population passes.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		workflowRunsTotal,
		workflowDurationSeconds,
		repairAttemptsTotal,
		validationRejectionsTotal,
		llmRequestDurationSeconds,
		queryDurationSeconds,
		schemaRefreshesTotal,
	)
}

func ObserveWorkflowRun(outcome string, elapsed time.Duration) {
	workflowRunsTotal.WithLabelValues(outcome).Inc()
	workflowDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementRepairAttempt() {
	repairAttemptsTotal.Inc()
}

func IncrementValidationRejection(reason string) {
	validationRejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveLLMRequest(purpose string, elapsed time.Duration) {
	llmRequestDurationSeconds.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

func ObserveQueryDuration(elapsed time.Duration) {
	queryDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementSchemaRefresh() {
	schemaRefreshesTotal.Inc()
}
