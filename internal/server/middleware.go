package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/pdfrag-go/internal/logging"
)

// requestIDHeader carries the request ID in both directions.
const requestIDHeader = "X-Request-ID"

// requestLogger tags every request with an ID, stores a logger carrying it
// in the request context and logs the status and latency on completion.
// A well-formed incoming X-Request-ID is reused so traces can be joined
// across a reverse proxy.
func requestLogger(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID(r.Header.Get(requestIDHeader))
		w.Header().Set(requestIDHeader, reqID)

		log := base.With(
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		r = r.WithContext(logging.WithLogger(r.Context(), log))

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)

		log.Info("request", slog.Int("status", rw.status), slog.Duration("duration", time.Since(start)))
	})
}

// requestID returns incoming when it parses as a UUID, else a new one.
func requestID(incoming string) string {
	if id, err := uuid.Parse(incoming); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// responseWriter records the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader records code and forwards it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
