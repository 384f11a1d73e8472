package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		// ── OpenAI-compatible ─────────────────────────────────────────────────
		{
			name: "openai/valid",
			cfg: Config{
				Backend: BackendOpenAI,
				OpenAI:  ProviderOpenAI{BaseURL: DefaultOpenAIBaseURL, APIKey: "lm-studio", Model: DefaultOpenAIModel},
			},
		},
		{
			name:    "openai/missing api key",
			cfg:     Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{Model: "gpt-4o"}},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "openai/missing model",
			cfg:     Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{APIKey: "sk-test"}},
			wantErr: "OPENAI_MODEL",
		},

		// ── Ollama ────────────────────────────────────────────────────────────
		{
			name: "ollama/valid",
			cfg: Config{
				Backend: BackendOllama,
				Ollama:  ProviderOllama{Host: "http://localhost:11434", Model: "llama3"},
			},
		},
		{
			name:    "ollama/missing model",
			cfg:     Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: "http://localhost:11434"}},
			wantErr: "OLLAMA_MODEL",
		},

		// ── Azure ─────────────────────────────────────────────────────────────
		{
			name: "azure/valid",
			cfg: Config{
				Backend: BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{
					APIKey:     "key",
					Endpoint:   "https://my.openai.azure.com",
					Deployment: "gpt-4o",
					APIVersion: "2024-02-01",
				},
			},
		},
		{
			name: "azure/missing api key",
			cfg: Config{
				Backend:     BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{Endpoint: "https://my.openai.azure.com", Deployment: "gpt-4o"},
			},
			wantErr: "AZURE_OPENAI_API_KEY",
		},
		{
			name: "azure/missing endpoint",
			cfg: Config{
				Backend:     BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{APIKey: "key", Deployment: "gpt-4o"},
			},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name: "azure/missing deployment",
			cfg: Config{
				Backend:     BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{APIKey: "key", Endpoint: "https://my.openai.azure.com"},
			},
			wantErr: "AZURE_OPENAI_DEPLOYMENT",
		},

		// ── Ark ───────────────────────────────────────────────────────────────
		{
			name: "ark/valid",
			cfg:  Config{Backend: BackendArk, Ark: ProviderArk{APIKey: "ak", Model: "doubao-pro"}},
		},
		{
			name:    "ark/missing key",
			cfg:     Config{Backend: BackendArk, Ark: ProviderArk{Model: "doubao-pro"}},
			wantErr: "ARK_API_KEY",
		},
		{
			name:    "ark/missing model",
			cfg:     Config{Backend: BackendArk, Ark: ProviderArk{APIKey: "ak"}},
			wantErr: "ARK_MODEL",
		},

		// ── Gemini ────────────────────────────────────────────────────────────
		{
			name: "gemini/valid",
			cfg: Config{
				Backend: BackendGemini,
				Gemini:  ProviderGemini{APIKey: "AIza-test", Model: "gemini-2.0-flash"},
			},
		},
		{
			name:    "gemini/missing api key",
			cfg:     Config{Backend: BackendGemini, Gemini: ProviderGemini{Model: "gemini-2.0-flash"}},
			wantErr: "GOOGLE_API_KEY",
		},
		{
			name:    "gemini/missing model",
			cfg:     Config{Backend: BackendGemini, Gemini: ProviderGemini{APIKey: "AIza-test"}},
			wantErr: "GEMINI_MODEL",
		},

		// ── Unknown backend ───────────────────────────────────────────────────
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "bedrock"},
			wantErr: "unknown backend",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"MODEL_PROVIDER", "OPENAI_BASE_URL", "OPENAI_API_KEY", "OPENAI_MODEL", "MODEL_TEMPERATURE", "MODEL_MAX_TOKENS"} {
		t.Setenv(k, "")
	}

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOpenAI {
		t.Errorf("Backend: got %q, want openai", cfg.Backend)
	}
	if cfg.OpenAI.BaseURL != "http://localhost:1234/v1" || cfg.OpenAI.APIKey != "lm-studio" {
		t.Errorf("OpenAI endpoint: got %+v", cfg.OpenAI)
	}
	if cfg.ModelName() != "IlyaGusev/saiga_mistral_7b_gguf" {
		t.Errorf("ModelName: got %q", cfg.ModelName())
	}
	if cfg.Tuning.Temperature != 0.7 {
		t.Errorf("Temperature: got %v, want 0.7", cfg.Tuning.Temperature)
	}
	if cfg.Tuning.MaxTokens != 0 {
		t.Errorf("MaxTokens: got %d, want 0", cfg.Tuning.MaxTokens)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "ollama")
	t.Setenv("OLLAMA_MODEL", "qwen2.5")
	t.Setenv("MODEL_TEMPERATURE", "0.1")
	t.Setenv("MODEL_MAX_TOKENS", "512")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendOllama || cfg.ModelName() != "qwen2.5" {
		t.Errorf("got backend %q model %q", cfg.Backend, cfg.ModelName())
	}
	if cfg.Tuning.Temperature != float32(0.1) || cfg.Tuning.MaxTokens != 512 {
		t.Errorf("tuning: got %+v", cfg.Tuning)
	}
}

func TestNew_OpenAICompatible(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Backend: BackendOpenAI,
		OpenAI:  ProviderOpenAI{BaseURL: DefaultOpenAIBaseURL, APIKey: DefaultOpenAIAPIKey, Model: DefaultOpenAIModel},
		Tuning:  SharedTuning{Temperature: DefaultTemperature},
	}
	m, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m == nil {
		t.Fatal("New returned nil model")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), &Config{Backend: BackendAzure}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestIsAzureReasoningModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		deployment string
		want       bool
	}{
		{"o1", true},
		{"o1-preview", true},
		{"o3-mini", true},
		{"o4-mini", true},
		{"O1-PREVIEW", true},
		{"codex-mini", true},
		{"gpt-5.2-codex", false},
		{"gpt-4o", false},
		{"gpt-4.1", false},
		{"gpt-35-turbo", false},
		{"my-custom-deployment", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.deployment, func(t *testing.T) {
			t.Parallel()
			if got := isAzureReasoningModel(tc.deployment); got != tc.want {
				t.Errorf("isAzureReasoningModel(%q) = %v, want %v", tc.deployment, got, tc.want)
			}
		})
	}
}

func TestAcceptsTemperature(t *testing.T) {
	t.Parallel()

	reasoning := &Config{Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{Deployment: "o3-mini"}}
	if reasoning.AcceptsTemperature() {
		t.Error("azure o-series should reject temperature")
	}
	if temperature(reasoning) != nil {
		t.Error("temperature pointer should be nil for reasoning deployments")
	}

	local := &Config{Backend: BackendOpenAI, Tuning: SharedTuning{Temperature: 0.7}}
	if p := temperature(local); p == nil || *p != 0.7 {
		t.Errorf("temperature: got %v", p)
	}
}

func TestNewHealthCheck(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path == "/v1/models" || r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	openai := NewHealthCheck(&Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{BaseURL: srv.URL + "/v1/", APIKey: "lm-studio"}})
	if err := openai.HealthCheck(context.Background()); err != nil {
		t.Fatalf("openai health: %v", err)
	}
	if gotPath != "/v1/models" || gotAuth != "Bearer lm-studio" {
		t.Errorf("openai probe: path %q auth %q", gotPath, gotAuth)
	}

	ollama := NewHealthCheck(&Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: srv.URL}})
	if err := ollama.HealthCheck(context.Background()); err != nil {
		t.Fatalf("ollama health: %v", err)
	}

	broken := NewHealthCheck(&Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: srv.URL + "/nope"}})
	if err := broken.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for 404 probe")
	}

	if NewHealthCheck(&Config{Backend: BackendGemini}) != nil {
		t.Error("gemini should have no zero-cost probe")
	}
}
