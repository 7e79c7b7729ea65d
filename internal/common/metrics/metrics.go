// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuoteSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_submissions_total",
			Help: "Quote submissions by outcome",
		},
		[]string{"outcome"},
	)

	GeneratorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_generator_request_duration_seconds",
			Help:    "Duration of generateContent calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	FilesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_files_ingested_total",
			Help: "Attachments ingested by kind",
		},
		[]string{"kind"},
	)

	FilesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_files_skipped_total",
			Help: "Attachments skipped by reason",
		},
		[]string{"reason"},
	)

	BreakdownMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_breakdown_mismatch_total",
			Help: "Quotes whose breakdown does not sum to the declared total",
		},
	)

	TargetCostMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_target_cost_mismatch_total",
			Help: "Quotes whose total differs from the requested target cost",
		},
	)

	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_exports_total",
			Help: "Document exports by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP API requests in seconds",
		},
		[]string{"method", "route", "status"},
	)

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
