package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDenied  = "denied"
	ResultInvalid = "invalid"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	tasksCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskdesk_tasks_created_total",
			Help: "Total number of tasks created",
		},
	)

	taskTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskdesk_task_transitions_total",
			Help: "Status transition attempts by target status and outcome",
		},
		[]string{"status", "result"},
	)

	attachmentOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskdesk_attachment_operations_total",
			Help: "Attachment store calls by operation and outcome",
		},
		[]string{"operation", "result"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskdesk_notifications_total",
			Help: "Assignment notifications by outcome",
		},
		[]string{"result"},
	)

	outboxProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskdesk_outbox_processed_total",
			Help: "Outbox items processed by the janitor",
		},
		[]string{"entity", "result"},
	)

	outboxSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskdesk_outbox_size",
			Help: "Items waiting in the outbox",
		},
	)
)

var registerOnce sync.Once

func init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			tasksCreatedTotal,
			taskTransitionsTotal,
			attachmentOpsTotal,
			notificationsTotal,
			outboxProcessedTotal,
			outboxSize,
		)
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, route string, status int, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func RecordTaskCreated() {
	tasksCreatedTotal.Inc()
}

func RecordTransition(status, result string) {
	taskTransitionsTotal.WithLabelValues(status, result).Inc()
}

func RecordAttachment(operation, result string) {
	attachmentOpsTotal.WithLabelValues(operation, result).Inc()
}

func RecordNotification(result string) {
	notificationsTotal.WithLabelValues(result).Inc()
}

func RecordOutbox(entity, result string) {
	outboxProcessedTotal.WithLabelValues(entity, result).Inc()
}

func SetOutboxSize(size int) {
	outboxSize.Set(float64(size))
}
