package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/pdfrag-go/internal/logging"
)

// probeTimeout bounds each dependency probe of GET /api/ready.
const probeTimeout = 5 * time.Second

// Pinger is a dependency that can report its own reachability.
// Implementations must be safe for concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency is usable.
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness responses.
	Name() string
}

// readyCheck is the outcome of one probe.
type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// readyResponse is the JSON body of GET /api/ready.
type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// probeAll runs every pinger concurrently and returns the checks in
// registration order.
func probeAll(ctx context.Context, pingers []Pinger) []readyCheck {
	checks := make([]readyCheck, len(pingers))

	var wg sync.WaitGroup
	for i, p := range pingers {
		wg.Go(func() {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(pctx)
			checks[i] = readyCheck{
				Name:      p.Name(),
				OK:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				checks[i].Error = err.Error()
			}
		})
	}
	wg.Wait()

	return checks
}

// handleReady handles GET /api/ready. It answers 200 when every probe
// succeeds and 503 otherwise, so an empty collection keeps the service out
// of rotation until ingestion has run.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true, Checks: probeAll(r.Context(), s.pingers)}
	for _, c := range resp.Checks {
		if !c.OK {
			resp.Ready = false
			log.Warn("readiness probe failed", slog.String("dependency", c.Name), slog.String("error", c.Error))
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, log, status, resp)
}
