package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys used for Qdrant points in addition to the entry metadata.
const (
	payloadID      = "entry_id"
	payloadContent = "content"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "knowledge_base_collection"
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be set")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// PointID maps an entry ID to the deterministic UUID used as the Qdrant
// point ID. Qdrant only accepts integers and UUIDs, so the composite chunk ID
// is hashed and kept verbatim in the payload.
func PointID(entryID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(entryID)).String()
}

// Upsert stores or overwrites a batch of entries in a single request and
// waits for the write to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			return fmt.Errorf("qdrant: entry %q: %w", e.ID, ErrEmptyEmbedding)
		}
		payload := map[string]any{
			payloadID:      e.ID,
			payloadContent: e.Content,
		}
		for k, v := range e.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(e.ID)),
			Vectors: qdrant.NewVectors(e.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Query performs a cosine similarity search and returns the top-n results
// with the score converted to a distance.
func (s *QdrantStore) Query(ctx context.Context, embedding []float32, n int) ([]Result, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if n <= 0 {
		return nil, nil
	}

	limit := uint64(n)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, p := range points {
		results = append(results, resultFromPayload(p.GetId().GetUuid(), p.GetPayload(), p.GetScore()))
	}

	return results, nil
}

// resultFromPayload rebuilds a Result from a scored point. Points written by
// other tools may lack the entry ID or metadata; those fields stay empty.
func resultFromPayload(pointID string, payload map[string]*qdrant.Value, score float32) Result {
	res := Result{ID: pointID, Distance: DistanceFromSimilarity(score)}
	for k, v := range payload {
		switch k {
		case payloadID:
			res.ID = v.GetStringValue()
		case payloadContent:
			res.Content = v.GetStringValue()
		default:
			if res.Metadata == nil {
				res.Metadata = make(map[string]string)
			}
			res.Metadata[k] = strings.TrimSpace(v.GetStringValue())
		}
	}
	return res
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Client exposes the underlying gRPC client for health probes.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
