package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment keys owned by pdfrag. Provider, embedding and Qdrant keys are
// read by their own packages.
const (
	EnvSourceDir        = "PDFRAG_SOURCE_DIR"
	EnvDBPath           = "PDFRAG_DB_PATH"
	EnvCollection       = "PDFRAG_COLLECTION"
	EnvVectorBackend    = "VECTOR_BACKEND"
	EnvChunkSize        = "PDFRAG_CHUNK_SIZE"
	EnvChunkOverlap     = "PDFRAG_CHUNK_OVERLAP"
	EnvTopK             = "PDFRAG_TOP_K"
	EnvMaxDistance      = "PDFRAG_MAX_DISTANCE"
	EnvMaxContextTokens = "PDFRAG_MAX_CONTEXT_TOKENS"
	EnvServerHost       = "PDFRAG_HOST"
	EnvServerPort       = "PDFRAG_PORT"
	EnvAPIKey           = "PDFRAG_API_KEY"
	EnvHistoryDB        = "PDFRAG_HISTORY_DB"
)

// Vector store backends.
const (
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// Defaults applied by FromEnv.
const (
	DefaultSourceDir        = "data"
	DefaultDBPath           = "knowledge_base"
	DefaultCollection       = "knowledge_base_collection"
	DefaultChunkSize        = 100
	DefaultChunkOverlap     = 20
	DefaultTopK             = 3
	DefaultMaxDistance      = float32(0.4)
	DefaultMaxContextTokens = 0
	DefaultServerHost       = "127.0.0.1"
	DefaultServerPort       = 8080
	DefaultQdrantHost       = "localhost"
	DefaultQdrantPort       = 6334
	// HistoryDisabled turns query history off when used as PDFRAG_HISTORY_DB.
	HistoryDisabled = "disabled"
)

// Settings is a typed snapshot of the resolved configuration.
type Settings struct {
	SourceDir        string
	DBPath           string
	Collection       string
	VectorBackend    string
	ChunkSize        int
	ChunkOverlap     int
	TopK             int
	MaxDistance      float32
	MaxContextTokens int

	QdrantHost string
	QdrantPort int
	// QdrantCollection defaults to Collection.
	QdrantCollection string
	QdrantAPIKey     string
	QdrantTLS        bool

	ServerHost string
	ServerPort int
	APIKey     string

	// HistoryDB is PDFRAG_HISTORY_DB as given. Empty selects the default
	// path; HistoryDisabled turns history off.
	HistoryDB string
}

// HistoryEnabled reports whether queries should be recorded.
func (s *Settings) HistoryEnabled() bool {
	return s.HistoryDB != HistoryDisabled
}

// FromEnv resolves Settings from the environment, applying defaults for
// unset keys. Malformed numbers are reported as errors.
func FromEnv() (*Settings, error) {
	s := &Settings{
		SourceDir:     envOr(EnvSourceDir, DefaultSourceDir),
		DBPath:        envOr(EnvDBPath, DefaultDBPath),
		Collection:    envOr(EnvCollection, DefaultCollection),
		VectorBackend: strings.ToLower(envOr(EnvVectorBackend, BackendChromem)),
		QdrantHost:    envOr("QDRANT_HOST", DefaultQdrantHost),
		QdrantAPIKey:  os.Getenv("QDRANT_API_KEY"),
		ServerHost:    envOr(EnvServerHost, DefaultServerHost),
		APIKey:        os.Getenv(EnvAPIKey),
	}

	s.QdrantCollection = envOr("QDRANT_COLLECTION", s.Collection)

	var err error
	ints := []struct {
		key string
		def int
		dst *int
	}{
		{EnvChunkSize, DefaultChunkSize, &s.ChunkSize},
		{EnvChunkOverlap, DefaultChunkOverlap, &s.ChunkOverlap},
		{EnvTopK, DefaultTopK, &s.TopK},
		{EnvMaxContextTokens, DefaultMaxContextTokens, &s.MaxContextTokens},
		{"QDRANT_PORT", DefaultQdrantPort, &s.QdrantPort},
		{EnvServerPort, DefaultServerPort, &s.ServerPort},
	}
	for _, f := range ints {
		if *f.dst, err = envInt(f.key, f.def); err != nil {
			return nil, err
		}
	}

	if s.MaxDistance, err = envFloat32(EnvMaxDistance, DefaultMaxDistance); err != nil {
		return nil, err
	}
	if s.MaxDistance < 0 {
		return nil, fmt.Errorf("config: %s must not be negative, got %v", EnvMaxDistance, s.MaxDistance)
	}
	if s.QdrantTLS, err = envBool("QDRANT_TLS"); err != nil {
		return nil, err
	}

	switch s.VectorBackend {
	case BackendChromem, BackendQdrant:
	default:
		return nil, fmt.Errorf("config: unsupported %s %q (want %s or %s)",
			EnvVectorBackend, s.VectorBackend, BackendChromem, BackendQdrant)
	}

	s.HistoryDB = strings.TrimSpace(os.Getenv(EnvHistoryDB))

	return s, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envFloat32(key string, def float32) (float32, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, raw, err)
	}
	return float32(v), nil
}

func envBool(key string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
