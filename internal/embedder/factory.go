package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/pdfrag-go/internal/rag"
)

// Default embedding models per backend.
const (
	// defaultOllamaModel is multilingual so Russian and English documents
	// share one vector space.
	defaultOllamaModel = "bge-m3"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "text-embedding-004"

	// defaultOllamaDimensions is the output dimension of bge-m3.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 1024
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// defaultGeminiDimensions is the output dimension of text-embedding-004.
	defaultGeminiDimensions = 768
)

// Backend returns the configured embedding backend (EMBEDDING_PROVIDER,
// default: ollama). MODEL_PROVIDER is not inherited; the chat server and the
// embedding server are configured independently.
func Backend() string {
	return strings.ToLower(getEnvOrDefault("EMBEDDING_PROVIDER", "ollama"))
}

// DefaultDimensions returns the embedding vector size for the given backend.
// Callers that need to pre-configure a vector store (e.g. Qdrant collection
// creation) should use this rather than hardcoding a value.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	case "gemini":
		return defaultGeminiDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// NewFromEnv constructs a rag.Embedder from environment variables. The result
// is wrapped in a Batched embedder sized by EMBEDDING_BATCH_SIZE.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER = ollama | openai | azure | gemini (default: ollama)
//  2. EMBEDDING_MODEL overrides the default model for the resolved backend
//  3. EMBEDDING_API_KEY overrides the backend's native key variable
//  4. EMBEDDING_ENDPOINT overrides the backend's native endpoint variable
//  5. EMBEDDING_DIMENSIONS requests a specific vector length where supported
func NewFromEnv(ctx context.Context) (rag.Embedder, error) {
	inner, err := newBackend(ctx, Backend())
	if err != nil {
		return nil, err
	}
	return NewBatched(inner, getEnvInt("EMBEDDING_BATCH_SIZE", DefaultBatchSize)), nil
}

// newBackend constructs the unbatched embedder for backend.
func newBackend(ctx context.Context, backend string) (rag.Embedder, error) {
	switch backend {
	case "ollama":
		host := firstEnv("EMBEDDING_ENDPOINT", "OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
		}), nil

	case "openai":
		apiKey := firstEnv("EMBEDDING_API_KEY", "OPENAI_API_KEY")
		baseURL := firstEnv("EMBEDDING_ENDPOINT", "OPENAI_BASE_URL")
		if apiKey == "" && baseURL == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if apiKey == "" {
			// Local OpenAI-compatible servers accept any key.
			apiKey = "local"
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		}), nil

	case "azure":
		apiKey := firstEnv("EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := firstEnv("EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		}), nil

	case "gemini":
		apiKey := firstEnv("EMBEDDING_API_KEY", "GOOGLE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultGeminiModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		})

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure, gemini)", backend)
	}
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
