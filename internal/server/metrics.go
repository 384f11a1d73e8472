// metrics.go registers the Prometheus metrics for the HTTP server and exposes
// helpers used by handlers and middleware.

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler is the "handler" label used to partition HTTP metrics by
// logical endpoint name rather than raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New against Config.MetricsRegistry so
// tests can use an isolated prometheus.Registry.
type serverMetrics struct {
	// askRequestsTotal counts completed /api/ask requests by outcome:
	// "ok", "fallback", "timeout" or "error".
	askRequestsTotal *prometheus.CounterVec

	// askDurationSeconds records retrieval plus generation time per question.
	askDurationSeconds *prometheus.HistogramVec

	// ingestRunsTotal counts /api/ingest runs by outcome: "ok" or "error".
	ingestRunsTotal *prometheus.CounterVec

	// ingestChunksTotal counts chunks upserted by successful runs.
	ingestChunksTotal prometheus.Counter

	// rateLimitedTotal counts requests rejected with 429.
	rateLimitedTotal prometheus.Counter

	// httpRequestsTotal counts all instrumented HTTP requests.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all instrumented HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /api/ask requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdfrag",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/ask requests, retrieval and generation included.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		ingestRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestChunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks upserted by successful ingestion runs.",
		}),

		rateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the per-client rate limit.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdfrag",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// observeAsk records one /api/ask outcome and its duration.
func (m *serverMetrics) observeAsk(outcome string, d time.Duration) {
	m.askRequestsTotal.WithLabelValues(outcome).Inc()
	m.askDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// instrument wraps next with request counting and latency observation under
// the given handler name.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
