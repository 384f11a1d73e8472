package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/pdfrag-go/internal/answer"
	"github.com/54b3r/pdfrag-go/internal/ingestion"
	"github.com/54b3r/pdfrag-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds a single POST /api/ask, retrieval and generation
	// included (default: 2 minutes).
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Backend is the knowledge base the server exposes. *app.App satisfies it;
// tests inject a fake.
type Backend interface {
	// Ask answers a question against the collection.
	Ask(ctx context.Context, question string) (*answer.Answer, error)
	// Ingest runs the ingestion pipeline over the configured source
	// directory when dir is empty.
	Ingest(ctx context.Context, dir string, progress func(string)) (*ingestion.Summary, error)
	// Recent returns the latest n recorded questions.
	Recent(ctx context.Context, n int) ([]store.Entry, error)
}

// Server is the HTTP server that wraps the knowledge base.
type Server struct {
	// backend answers questions and runs ingestion.
	backend Backend
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// ingestMu allows a single ingestion run at a time.
	ingestMu sync.Mutex
	// stopLimiter ends the rate limiter idle sweep on shutdown.
	stopLimiter func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the natural language question.
	Question string `json:"question"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// Answer is the model reply, or the fallback text.
	Answer string `json:"answer"`
	// Sources lists the provenance of the chunks used as context.
	Sources []answer.Source `json:"sources"`
	// Fallback is true when no chunk was close enough and the model was not called.
	Fallback bool `json:"fallback"`
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	// Files lists the ingested file names in processing order.
	Files []string `json:"files"`
	// Chunks is the number of chunks upserted.
	Chunks int `json:"chunks"`
}

// historyEntry is one element of the GET /api/history response.
type historyEntry struct {
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Sources   []store.Source `json:"sources"`
	Fallback  bool           `json:"fallback"`
	CreatedAt time.Time      `json:"created_at"`
}
