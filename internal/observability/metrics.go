package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "commands_completed_total", Help: "Commands that reached completed status"},
		[]string{"type"},
	)
	CommandsRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "commands_retried_total", Help: "Commands returned to pending after a handler failure"},
		[]string{"type"},
	)
	CommandsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "commands_failed_total", Help: "Commands that exhausted their attempts"},
		[]string{"type"},
	)
	WorkerCycles = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "worker_cycles_total", Help: "Completed worker poll cycles"},
	)
	WorkerBatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "worker_batch_errors_total", Help: "Batches rolled back due to claim/commit failures"},
	)
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{Namespace: "ride_dispatch", Name: "worker_batch_duration_seconds", Help: "Batch processing latency", Buckets: prometheus.DefBuckets},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "events_published_total", Help: "Events published to user/driver channels"},
		[]string{"type"},
	)
	DriversOnline = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: "ride_dispatch", Name: "drivers_online", Help: "Drivers currently marked available"},
	)

	LocationsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "locations_consumed_total", Help: "Driver location messages consumed from Kafka"},
	)
	LocationsInvalid = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "locations_invalid_total", Help: "Malformed driver location messages"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
