// Package metrics holds the Prometheus collectors shared by the client,
// the import workers and the backend service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "memory_vault"

var (
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Backend requests by operation and outcome (ok, network, client_error, server_error).",
		},
		[]string{"operation", "outcome"},
	)

	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency including retries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	remoteRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "retries_total",
			Help:      "Retries scheduled after a network error or 5xx.",
		},
		[]string{"operation"},
	)

	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hybrid",
			Name:      "local_fallbacks_total",
			Help:      "Operations served from local storage instead of the backend.",
		},
		[]string{"operation"},
	)

	// Workqueue collectors are labelled by shard.
	WorkqueueSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "submissions_total",
			Help:      "Import tasks queued on a shard.",
		},
		[]string{"shard"},
	)
	WorkqueueFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "failures_total",
			Help:      "Import tasks that failed after all attempts or were skipped.",
		},
		[]string{"shard"},
	)
	WorkqueueRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "run_duration_seconds",
			Help:      "Duration of a single import attempt.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"shard"},
	)
	WorkqueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "queue_depth",
			Help:      "Import tasks still waiting on the shard.",
		},
		[]string{"shard"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by the backend service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests served by the backend service.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	importsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "importer",
			Name:      "imports_total",
			Help:      "Chat imports by source (backend, local) and outcome.",
		},
		[]string{"source", "outcome"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Statistics cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
)

// ObserveRemoteRequest records one logical backend call (all attempts).
func ObserveRemoteRequest(operation, outcome string, start time.Time) {
	remoteRequestsTotal.WithLabelValues(operation, outcome).Inc()
	remoteRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// IncRemoteRetry counts a scheduled retry.
func IncRemoteRetry(operation string) {
	remoteRetriesTotal.WithLabelValues(operation).Inc()
}

// IncFallback counts an operation answered from local storage.
func IncFallback(operation string) {
	fallbacksTotal.WithLabelValues(operation).Inc()
}

// IncImport counts one finished chat import.
func IncImport(source, outcome string) {
	importsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveCacheLookup counts a cache lookup result.
func ObserveCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. route names the matched
// route template so label cardinality stays bounded.
func Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			name := route(r)
			httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
		})
	}
}
