// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_consumed_total",
			Help: "Total number of inbound bus events consumed",
		},
		[]string{"event_type"},
	)

	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_failed_total",
			Help: "Total number of inbound bus events whose handler failed",
		},
		[]string{"event_type", "error_code"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_published_total",
			Help: "Total number of outbound bus events published",
		},
		[]string{"event_type"},
	)

	HuntflowRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "huntflow_request_duration_seconds",
			Help: "Duration of Huntflow API requests in seconds",
		},
		[]string{"operation"},
	)

	HuntflowRequestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huntflow_request_retries_total",
			Help: "Total number of retried Huntflow API requests",
		},
		[]string{"operation"},
	)

	FileUploadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huntflow_file_upload_failures_total",
			Help: "Total number of failed file uploads",
		},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of reconciliation runs by result",
		},
		[]string{"result"},
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "sync_run_duration_seconds",
			Help: "Duration of a full reconciliation run in seconds",
		},
	)

	SyncCasesUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cases_updated_total",
			Help: "Total number of local cases updated by the sync engine",
		},
		[]string{"status"},
	)

	SyncCaseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_case_errors_total",
			Help: "Total number of per-case errors during reconciliation",
		},
	)
)
