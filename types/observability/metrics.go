package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stac_validator"

var (
	registerOnce sync.Once

	schemaFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schemas",
			Name:      "fetches_total",
			Help:      "Schema documents obtained, by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	schemaFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "schemas",
			Name:      "fetch_duration_seconds",
			Help:      "Schema fetch duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	fetchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Remote fetch attempts that were retried.",
		},
	)
	validations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "objects_total",
			Help:      "Validated STAC objects, by type and outcome.",
		},
		[]string{"type", "valid"},
	)
	validationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "run_duration_seconds",
			Help:      "Duration of a validation run in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP API requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			schemaFetches,
			schemaFetchDuration,
			fetchRetries,
			validations,
			validationDuration,
			httpRequests,
			httpDuration,
		)
	})
}

// RecordSchemaFetch counts a schema lookup. source is one of "http", "file",
// "storage", "cache".
func RecordSchemaFetch(source string, success bool, duration time.Duration) {
	RegisterMetrics()
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	schemaFetches.WithLabelValues(source, outcome).Inc()
	schemaFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func RecordFetchRetry() {
	RegisterMetrics()
	fetchRetries.Inc()
}

func RecordValidation(stacType string, valid bool) {
	RegisterMetrics()
	validations.WithLabelValues(stacType, strconv.FormatBool(valid)).Inc()
}

func RecordValidationRun(duration time.Duration) {
	RegisterMetrics()
	validationDuration.Observe(duration.Seconds())
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
