package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// ChromemConfig holds the parameters for an embedded chromem collection.
type ChromemConfig struct {
	// Path is the directory the collection is persisted under. An empty Path
	// keeps the collection in memory only.
	Path string

	// Collection is the collection name (default: knowledge_base_collection).
	Collection string

	// Compress gzips the persisted documents.
	Compress bool
}

// errNoEmbeddingFunc is returned if chromem ever tries to embed text itself.
// Entries and queries always carry vectors produced by the configured Embedder.
var errNoEmbeddingFunc = errors.New("chromem: embeddings must be supplied by the caller")

// ChromemStore implements VectorStore on an embedded chromem-go database.
type ChromemStore struct {
	// db is the underlying chromem database.
	db *chromem.DB

	// collection is the collection entries are written to.
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the persistent collection described by
// cfg and returns a ready-to-use VectorStore.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = "knowledge_base_collection"
	}

	db := chromem.NewDB()
	if cfg.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("chromem: failed to open %s: %w", cfg.Path, err)
		}
	}

	embed := func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	}
	collection, err := db.GetOrCreateCollection(cfg.Collection, map[string]string{"hnsw:space": "cosine"}, embed)
	if err != nil {
		return nil, fmt.Errorf("chromem: failed to open collection %q: %w", cfg.Collection, err)
	}

	return &ChromemStore{db: db, collection: collection}, nil
}

// Upsert writes all entries in one batch. Existing IDs are overwritten.
func (s *ChromemStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, len(entries))
	vectors := make([][]float32, len(entries))
	metadatas := make([]map[string]string, len(entries))
	contents := make([]string, len(entries))
	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return fmt.Errorf("chromem: entry %q: %w", e.ID, ErrEmptyEmbedding)
		}
		ids[i] = e.ID
		vectors[i] = e.Embedding
		metadatas[i] = e.Metadata
		contents[i] = e.Content
	}

	if err := s.collection.Add(ctx, ids, vectors, metadatas, contents); err != nil {
		return fmt.Errorf("chromem: upsert failed: %w", err)
	}
	return nil
}

// Query returns up to n entries nearest to embedding. chromem rejects n
// larger than the collection, so n is clamped to the current count.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, n int) ([]Result, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	n = min(n, s.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	matches, err := s.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query failed: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			ID:       m.ID,
			Content:  m.Content,
			Metadata: m.Metadata,
			Distance: DistanceFromSimilarity(m.Similarity),
		})
	}
	return results, nil
}

// Count returns the number of entries in the collection.
func (s *ChromemStore) Count(context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Close is a no-op: the persistent database writes through on every Add.
func (s *ChromemStore) Close() error {
	return nil
}
