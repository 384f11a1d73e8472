// Package server implements the HTTP API that exposes the knowledge base:
// questions, ingestion, query history, health and Prometheus metrics.
// The server is started by the `pdfrag serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/pdfrag-go/internal/logging"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// defaultHistoryLimit is the number of entries GET /api/history returns
// when no n parameter is given.
const defaultHistoryLimit = 20

// New constructs a Server from the provided backend and config.
func New(backend Backend, cfg *Config) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("server: backend must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Ingestion of a large directory runs inside the request.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		backend: backend,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		log.Warn("server: PDFRAG_API_KEY not set, API authentication disabled")
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// routes builds the request multiplexer. Mutating /api/* routes are
// authenticated and rate limited; health, readiness and metrics are open.
func (s *Server) routes() http.Handler {
	cl, stop := newClientLimiter(s.cfg.RateLimit, s.cfg.RateBurst, s.metrics.rateLimitedTotal)
	s.stopLimiter = stop

	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, requireKey(s.cfg.APIKey, cl.wrap(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", protected("ask", s.handleAsk))
	mux.Handle("POST /api/ingest", protected("ingest", s.handleIngest))
	mux.Handle("GET /api/history", s.instrument("history", requireKey(s.cfg.APIKey, http.HandlerFunc(s.handleHistory))))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	return requestLogger(s.log, mux)
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopLimiter()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask. It answers a single question and reports
// the sources used, or the fallback answer when nothing was close enough.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	start := time.Now()
	ans, err := s.backend.Ask(ctx, req.Question)
	elapsed := time.Since(start)
	if err != nil {
		outcome := "error"
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			outcome, status = "timeout", http.StatusGatewayTimeout
		}
		s.metrics.observeAsk(outcome, elapsed)
		log.Error("ask failed", slog.Any("error", err), slog.Duration("duration", elapsed))
		http.Error(w, "failed to answer question", status)
		return
	}

	outcome := "ok"
	if ans.Fallback {
		outcome = "fallback"
	}
	s.metrics.observeAsk(outcome, elapsed)
	log.Info("ask answered",
		slog.Bool("fallback", ans.Fallback),
		slog.Int("sources", len(ans.Sources)),
		slog.Duration("duration", elapsed),
	)

	writeJSON(w, log, http.StatusOK, askResponse{Answer: ans.Text, Sources: ans.Sources, Fallback: ans.Fallback})
}

// handleIngest handles POST /api/ingest. It ingests the configured source
// directory; concurrent runs are rejected with 409.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if !s.ingestMu.TryLock() {
		http.Error(w, "ingestion already running", http.StatusConflict)
		return
	}
	defer s.ingestMu.Unlock()

	summary, err := s.backend.Ingest(r.Context(), "", func(msg string) {
		log.Debug(strings.TrimSpace(msg))
	})
	if err != nil {
		s.metrics.ingestRunsTotal.WithLabelValues("error").Inc()
		log.Error("ingest failed", slog.Any("error", err))
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
		return
	}

	s.metrics.ingestRunsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunksTotal.Add(float64(len(summary.Chunks)))
	log.Info("ingest complete", slog.Int("files", len(summary.Files)), slog.Int("chunks", len(summary.Chunks)))

	files := summary.Files
	if files == nil {
		files = []string{}
	}
	writeJSON(w, log, http.StatusOK, ingestResponse{Files: files, Chunks: len(summary.Chunks)})
}

// handleHistory handles GET /api/history?n=N, returning the newest entries first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	n := defaultHistoryLimit
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}

	entries, err := s.backend.Recent(r.Context(), n)
	if err != nil {
		log.Error("history read failed", slog.Any("error", err))
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}

	out := make([]historyEntry, len(entries))
	for i, e := range entries {
		out[i] = historyEntry{
			Question:  e.Question,
			Answer:    e.Answer,
			Sources:   e.Sources,
			Fallback:  e.Fallback,
			CreatedAt: e.CreatedAt.UTC(),
		}
	}
	writeJSON(w, log, http.StatusOK, out)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, logging.FromContext(r.Context()), http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}
