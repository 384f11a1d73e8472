// Package provider selects and constructs the chat model that turns a
// composed prompt into an answer. Supported backends: any OpenAI-compatible
// server (LM Studio by default), Ollama, Azure OpenAI, Volcengine Ark and
// Google Gemini.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOpenAI selects an OpenAI-compatible chat completions server.
	BackendOpenAI Backend = "openai"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Default chat model settings. The OpenAI-compatible defaults target a local
// LM Studio server.
const (
	DefaultOpenAIBaseURL = "http://localhost:1234/v1"
	DefaultOpenAIAPIKey  = "lm-studio"
	DefaultOpenAIModel   = "IlyaGusev/saiga_mistral_7b_gguf"
	DefaultTemperature   = float32(0.7)
)

// ProviderOpenAI holds settings for an OpenAI-compatible server.
type ProviderOpenAI struct {
	// BaseURL is the API base (default: http://localhost:1234/v1).
	BaseURL string
	// APIKey is the bearer token. Local servers accept any non-empty value.
	APIKey string
	// Model is the model name the server should route to.
	Model string
}

// ProviderOllama holds settings for an Ollama server.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderAzureOpenAI holds settings for Azure OpenAI Service.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	// APIVersion is the Azure OpenAI REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ProviderArk holds settings for the Volcengine Ark runtime.
type ProviderArk struct {
	APIKey  string
	Model   string
	BaseURL string
	Region  string
}

// ProviderGemini holds settings for Google Gemini.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// SharedTuning holds generation parameters common to every backend.
type SharedTuning struct {
	// MaxTokens caps the response length. Zero leaves the server default.
	MaxTokens int
	// Temperature controls response randomness.
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	OpenAI      ProviderOpenAI
	Ollama      ProviderOllama
	AzureOpenAI ProviderAzureOpenAI
	Ark         ProviderArk
	Gemini      ProviderGemini

	Tuning SharedTuning
}

// Validate reports the first missing setting for the selected backend,
// naming the environment variable that supplies it.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: openai backend requires OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: openai backend requires OPENAI_MODEL")
		}
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: ollama backend requires OLLAMA_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: azure backend requires AZURE_OPENAI_API_KEY")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: azure backend requires AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: azure backend requires AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return fmt.Errorf("provider: ark backend requires ARK_API_KEY")
		}
		if c.Ark.Model == "" {
			return fmt.Errorf("provider: ark backend requires ARK_MODEL")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: gemini backend requires GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: gemini backend requires GEMINI_MODEL")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid values: openai, ollama, azure, ark, gemini)", c.Backend)
	}
	return nil
}

// ModelName returns the model or deployment the selected backend targets.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendOllama:
		return c.Ollama.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendArk:
		return c.Ark.Model
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}

// AcceptsTemperature reports whether the target model honours a sampling
// temperature. Azure reasoning deployments reject the parameter.
func (c *Config) AcceptsTemperature() bool {
	return !(c.Backend == BackendAzure && isAzureReasoningModel(c.AzureOpenAI.Deployment))
}

// isAzureReasoningModel reports whether a deployment name denotes an
// o-series or codex reasoning model.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, prefix := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}
