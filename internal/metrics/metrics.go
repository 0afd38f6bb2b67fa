// Package metrics provides Prometheus metrics for node commands, mount
// workers and devices.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Command metrics
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filenode_commands_total",
			Help: "Total number of executed node commands",
		},
		[]string{"kind", "status"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filenode_command_duration_seconds",
			Help:    "Node command duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Worker metrics
	workerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "filenode_worker_queue_depth",
			Help: "Number of commands queued or running on a mount worker",
		},
		[]string{"worker"},
	)

	// Transfer metrics
	bytesCopied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filenode_bytes_copied_total",
			Help: "Total bytes streamed between devices",
		},
	)

	filesCopied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filenode_files_copied_total",
			Help: "Total files copied",
		},
	)

	compareMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filenode_compare_mismatches_total",
			Help: "Total file mismatches found by tree comparisons",
		},
	)

	// Device metrics
	deviceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filenode_device_errors_total",
			Help: "Total unexpected device errors",
		},
		[]string{"op"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCommand records a finished command.
func RecordCommand(kind, status string, duration time.Duration) {
	commandsTotal.WithLabelValues(kind, status).Inc()
	commandDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// AddQueued adjusts the queue depth gauge of a worker.
func AddQueued(worker string, delta float64) {
	workerQueueDepth.WithLabelValues(worker).Add(delta)
}

// RecordCopy records one copied file.
func RecordCopy(bytes int64) {
	filesCopied.Inc()
	bytesCopied.Add(float64(bytes))
}

// RecordMismatch records one comparison mismatch.
func RecordMismatch() {
	compareMismatches.Inc()
}

// RecordDeviceError records an unexpected device error.
func RecordDeviceError(op string) {
	deviceErrorsTotal.WithLabelValues(op).Inc()
}
