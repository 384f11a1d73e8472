package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/pdfrag-go/internal/answer"
	"github.com/54b3r/pdfrag-go/internal/ingestion"
	"github.com/54b3r/pdfrag-go/internal/store"
)

// ---------------------------------------------------------------------------
// Fake backend
// ---------------------------------------------------------------------------

// fakeBackend implements Backend with canned results.
type fakeBackend struct {
	mu        sync.Mutex
	answer    *answer.Answer
	askErr    error
	questions []string

	summary   *ingestion.Summary
	ingestErr error
	// ingestGate, when set, blocks Ingest until it is closed.
	ingestGate chan struct{}
	ingested   chan struct{}

	entries []store.Entry
	gotN    int
}

func (f *fakeBackend) Ask(ctx context.Context, question string) (*answer.Answer, error) {
	f.mu.Lock()
	f.questions = append(f.questions, question)
	f.mu.Unlock()
	if f.askErr != nil {
		return nil, f.askErr
	}
	return f.answer, nil
}

func (f *fakeBackend) Ingest(ctx context.Context, dir string, progress func(string)) (*ingestion.Summary, error) {
	if f.ingested != nil {
		f.ingested <- struct{}{}
	}
	if f.ingestGate != nil {
		<-f.ingestGate
	}
	progress("  Filename: a.pdf")
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return f.summary, nil
}

func (f *fakeBackend) Recent(_ context.Context, n int) ([]store.Entry, error) {
	f.gotN = n
	return f.entries, nil
}

// newTestServer builds a Server around an empty fake backend with an
// isolated metrics registry.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, _ := newServerWith(t, &fakeBackend{}, &Config{})
	return s
}

// newServerWith builds a Server with a fresh registry and returns both.
func newServerWith(t *testing.T, b Backend, cfg *Config) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	cfg.MetricsRegistry = reg
	cfg.MetricsGatherer = reg
	cfg.Logger = slog.New(slog.DiscardHandler)
	s, err := New(b, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopLimiter)
	return s, reg
}

func do(t *testing.T, s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// POST /api/ask
// ---------------------------------------------------------------------------

func TestHandleAsk_Answer(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{answer: &answer.Answer{
		Text:    "28 days.",
		Sources: []answer.Source{{Filename: "policy.pdf", Page: "3"}},
	}}
	s, _ := newServerWith(t, b, &Config{})

	w := do(t, s, http.MethodPost, "/api/ask", `{"question":"How long is leave?"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Answer   string `json:"answer"`
		Sources  []struct {
			Filename string `json:"filename"`
			Page     string `json:"page"`
		} `json:"sources"`
		Fallback bool `json:"fallback"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "28 days." || resp.Fallback {
		t.Errorf("response: got %+v", resp)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Filename != "policy.pdf" || resp.Sources[0].Page != "3" {
		t.Errorf("sources: got %+v", resp.Sources)
	}
	if len(b.questions) != 1 || b.questions[0] != "How long is leave?" {
		t.Errorf("backend questions: got %v", b.questions)
	}
}

func TestHandleAsk_FallbackHasEmptySources(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{answer: &answer.Answer{Text: answer.FallbackAnswer, Sources: []answer.Source{}, Fallback: true}}
	s, _ := newServerWith(t, b, &Config{})

	w := do(t, s, http.MethodPost, "/api/ask", `{"question":"unrelated"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"sources":[]`) || !strings.Contains(w.Body.String(), `"fallback":true`) {
		t.Errorf("body: %s", w.Body.String())
	}
}

func TestHandleAsk_BadRequests(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid json":   `not-json`,
		"missing field":  `{}`,
		"blank question": `{"question":"   "}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			b := &fakeBackend{}
			s, _ := newServerWith(t, b, &Config{})
			w := do(t, s, http.MethodPost, "/api/ask", body, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if len(b.questions) != 0 {
				t.Error("backend must not be called on a bad request")
			}
		})
	}
}

func TestHandleAsk_BackendErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"model error", errors.New("connection refused"), http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, _ := newServerWith(t, &fakeBackend{askErr: tt.err}, &Config{})
			w := do(t, s, http.MethodPost, "/api/ask", `{"question":"q"}`, nil)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
			if strings.Contains(w.Body.String(), "connection refused") {
				t.Error("internal error detail leaked to the client")
			}
		})
	}
}

func TestHandleAsk_RequiresAuthWhenKeySet(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{answer: &answer.Answer{Text: "ok", Sources: []answer.Source{}}}
	s, _ := newServerWith(t, b, &Config{APIKey: "secret"})

	if w := do(t, s, http.MethodPost, "/api/ask", `{"question":"q"}`, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("without token: expected 401, got %d", w.Code)
	}
	w := do(t, s, http.MethodPost, "/api/ask", `{"question":"q"}`, map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK {
		t.Errorf("with token: expected 200, got %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", w.Code)
	}
}

func TestHandleAsk_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	if w := do(t, s, http.MethodGet, "/api/ask", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/ingest
// ---------------------------------------------------------------------------

func TestHandleIngest_OK(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{summary: &ingestion.Summary{
		Files:  []string{"a.pdf", "b.pdf"},
		Chunks: make([]ingestion.Chunk, 7),
	}}
	s, reg := newServerWith(t, b, &Config{})

	w := do(t, s, http.MethodPost, "/api/ingest", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ingestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Chunks != 7 || len(resp.Files) != 2 {
		t.Errorf("response: got %+v", resp)
	}
	if got := counterValue(t, reg, "pdfrag_ingest_chunks_total", nil); got != 7 {
		t.Errorf("chunks counter: got %v, want 7", got)
	}
}

func TestHandleIngest_Error(t *testing.T) {
	t.Parallel()

	s, _ := newServerWith(t, &fakeBackend{ingestErr: errors.New("corrupt pdf")}, &Config{})
	if w := do(t, s, http.MethodPost, "/api/ingest", "", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestHandleIngest_RejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{
		summary:    &ingestion.Summary{},
		ingestGate: make(chan struct{}),
		ingested:   make(chan struct{}, 1),
	}
	s, _ := newServerWith(t, b, &Config{})

	first := make(chan int, 1)
	go func() {
		first <- do(t, s, http.MethodPost, "/api/ingest", "", nil).Code
	}()

	select {
	case <-b.ingested:
	case <-time.After(5 * time.Second):
		t.Fatal("first ingestion never started")
	}

	if w := do(t, s, http.MethodPost, "/api/ingest", "", nil); w.Code != http.StatusConflict {
		t.Errorf("second run: expected 409, got %d", w.Code)
	}

	close(b.ingestGate)
	if code := <-first; code != http.StatusOK {
		t.Errorf("first run: expected 200, got %d", code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/history
// ---------------------------------------------------------------------------

func TestHandleHistory(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{entries: []store.Entry{{
		Question:  "q",
		Answer:    "a",
		Sources:   []store.Source{{Filename: "x.pdf", Page: "2"}},
		CreatedAt: time.Unix(1_700_000_000, 0),
	}}}
	s, _ := newServerWith(t, b, &Config{})

	w := do(t, s, http.MethodGet, "/api/history?n=5", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if b.gotN != 5 {
		t.Errorf("limit: got %d, want 5", b.gotN)
	}
	var resp []historyEntry
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp[0].Sources[0].Filename != "x.pdf" {
		t.Errorf("response: got %+v", resp)
	}

	if w := do(t, s, http.MethodGet, "/api/history?n=-1", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("negative n: expected 400, got %d", w.Code)
	}
	do(t, s, http.MethodGet, "/api/history", "", nil)
	if b.gotN != defaultHistoryLimit {
		t.Errorf("default limit: got %d, want %d", b.gotN, defaultHistoryLimit)
	}
}

func TestNew_NilBackend(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &Config{}); err == nil {
		t.Fatal("expected error for nil backend")
	}
}
