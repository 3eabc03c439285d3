// Package telemetry exposes Prometheus metrics for the service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muniwatch_http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "muniwatch_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	ingestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "muniwatch_ingest_runs_total",
			Help: "Total number of ingestion runs, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	ingestCandidatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "muniwatch_ingest_candidates_total",
			Help: "Total candidate mentions returned by the search collaborator.",
		},
	)

	ingestNewUniqueTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "muniwatch_ingest_new_unique_total",
			Help: "Total mentions admitted after URL deduplication.",
		},
	)

	ingestDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "muniwatch_ingest_duplicates_total",
			Help: "Total candidate mentions rejected as duplicate URLs.",
		},
	)

	mentionsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "muniwatch_mentions_stored",
			Help: "Number of mentions in the store after the last write.",
		},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveIngest records the counters for one ingestion run.
func ObserveIngest(outcome string, found, newUnique int) {
	ingestRunsTotal.WithLabelValues(outcome).Inc()
	if found > 0 {
		ingestCandidatesTotal.Add(float64(found))
	}
	if newUnique > 0 {
		ingestNewUniqueTotal.Add(float64(newUnique))
	}
	if dupes := found - newUnique; dupes > 0 {
		ingestDuplicatesTotal.Add(float64(dupes))
	}
}

// SetMentionsStored updates the store-size gauge.
func SetMentionsStored(n int) {
	mentionsStored.Set(float64(n))
}
