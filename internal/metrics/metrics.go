// Package metrics provides Prometheus instrumentation for the position engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ComputationsTotal counts engine recomputations, partitioned by view mode.
	ComputationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posengine_computations_total",
		Help: "Total number of position table recomputations",
	}, []string{"mode"})

	// ComputeDuration tracks full-pipeline computation latency.
	ComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "posengine_compute_duration_seconds",
		Help:    "Position table computation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RowsProduced tracks the row count of the most recent computation.
	RowsProduced = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "posengine_rows_produced",
		Help: "Rows in the most recently computed position table",
	})

	// RecordsDropped counts fill records excluded before aggregation,
	// partitioned by reason (tag, status).
	RecordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posengine_records_dropped_total",
		Help: "Fill records excluded before aggregation",
	}, []string{"reason"})

	// SourcesSkipped counts unusable fill sources skipped during ingestion.
	SourcesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posengine_sources_skipped_total",
		Help: "Fill sources skipped as empty or unreadable",
	})

	// QuoteLoadFailures counts quote table loads that degraded to null LTPs.
	QuoteLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posengine_quote_load_failures_total",
		Help: "Quote table loads that failed and degraded to null prices",
	})

	// WebSocketClients tracks connected snapshot subscribers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "posengine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "posengine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the route surface is small and
		// carries no per-entity segments, so cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
