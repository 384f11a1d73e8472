package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HealthCheckConfig is a zero-token reachability probe for a chat backend.
type HealthCheckConfig interface {
	// HealthCheck returns nil when the backend answered the probe.
	HealthCheck(ctx context.Context) error
}

// httpHealthCheck issues a GET against a cheap listing endpoint.
type httpHealthCheck struct {
	url    string
	header http.Header
	client *http.Client
}

// HealthCheck implements HealthCheckConfig.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("provider: health request: %w", err)
	}
	for k, v := range h.header {
		req.Header[k] = v
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider: %s returned HTTP %d", h.url, resp.StatusCode)
	}
	return nil
}

// NewHealthCheck returns a probe for backends that expose a free listing
// endpoint (OpenAI-compatible /models, Ollama /api/tags). It returns nil for
// backends without one; callers then skip the readiness probe.
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	client := &http.Client{Timeout: 5 * time.Second}
	switch cfg.Backend {
	case BackendOpenAI:
		h := http.Header{}
		h.Set("Authorization", "Bearer "+cfg.OpenAI.APIKey)
		return &httpHealthCheck{
			url:    strings.TrimRight(cfg.OpenAI.BaseURL, "/") + "/models",
			header: h,
			client: client,
		}
	case BackendOllama:
		return &httpHealthCheck{
			url:    strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags",
			client: client,
		}
	}
	return nil
}
