package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/pdfrag-go/internal/provider"
	"github.com/54b3r/pdfrag-go/internal/rag"
)

// LLMPinger probes a chat backend through its zero-token health endpoint.
// It satisfies the Pinger interface and is used by GET /api/ready.
type LLMPinger struct {
	// healthCheck is the backend's listing-endpoint probe.
	healthCheck provider.HealthCheckConfig
	// name identifies the backend in readiness responses (e.g. "openai").
	name string
}

// NewLLMPinger constructs an LLMPinger. It returns nil when hc is nil, i.e.
// the backend has no free probe endpoint.
func NewLLMPinger(hc provider.HealthCheckConfig, name string) *LLMPinger {
	if hc == nil {
		return nil
	}
	return &LLMPinger{healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping runs the backend health check.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if err := p.healthCheck.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", p.name, err)
	}
	return nil
}

// StorePinger probes the vector store by counting its entries. An empty
// collection is reachable but reported as not ready, since every question
// would fall back.
type StorePinger struct {
	// store is the vector store to probe.
	store rag.VectorStore
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(store rag.VectorStore) *StorePinger {
	return &StorePinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "vector_store" }

// Ping counts the collection entries.
func (p *StorePinger) Ping(ctx context.Context) error {
	n, err := p.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("collection is empty, run ingestion first")
	}
	return nil
}

// EmbedderPinger probes the embedding backend with a one-word request.
type EmbedderPinger struct {
	// embedder is the embedding backend to probe.
	embedder rag.Embedder
	// name identifies the backend in readiness responses.
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder.
func NewEmbedderPinger(emb rag.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: emb, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbedderPinger) Name() string { return "embedder_" + p.name }

// Ping embeds a single short text.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
