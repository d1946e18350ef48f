// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_changes_total",
			Help: "Committed status changes by entity kind and new status",
		},
		[]string{"kind", "status"},
	)

	StatusChangeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_change_failures_total",
			Help: "Rejected or failed status changes by entity kind and error code",
		},
		[]string{"kind", "code"},
	)

	NotificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Notifications handed to the queue by template and result",
		},
		[]string{"template", "result"},
	)

	NotificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Per-channel notification delivery attempts by result",
		},
		[]string{"channel", "result"},
	)

	NotificationsDeadLettered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_dead_lettered_total",
			Help: "Notifications moved to the dead letter list after exhausting retries",
		},
	)

	JobAlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_alerts_sent_total",
			Help: "Job alert runs by frequency and result",
		},
		[]string{"frequency", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		},
		[]string{"route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
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
)
