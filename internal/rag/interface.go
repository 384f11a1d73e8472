// Package rag defines the vector storage and retrieval components of the
// question answering pipeline. Concrete stores (chromem, Qdrant) satisfy
// VectorStore so the ingestion and answer layers never depend on a specific
// backend.
package rag

import (
	"context"
	"errors"
)

// Metadata keys recorded with every collection entry.
const (
	// MetaFilename is the base name of the source PDF.
	MetaFilename = "filename"
	// MetaChunkID is the composite "{filename}_chunk_{index}" identifier.
	MetaChunkID = "chunk_id"
	// MetaPageNumber is the 1-based majority page of the chunk.
	MetaPageNumber = "page_number"
)

// ErrEmptyEmbedding is returned when an embedder yields no vector for a
// non-empty input.
var ErrEmptyEmbedding = errors.New("rag: empty embedding")

// Entry is a persisted collection entry: one chunk with its embedding.
type Entry struct {
	// ID is unique within the collection. Upserting an existing ID overwrites it.
	ID string

	// Embedding is the dense vector of Content.
	Embedding []float32

	// Content is the chunk text.
	Content string

	// Metadata holds the MetaFilename, MetaChunkID and MetaPageNumber values.
	Metadata map[string]string
}

// Result is a single nearest-neighbour match.
type Result struct {
	// ID is the entry identifier.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata is the entry metadata. It may be nil or partial for entries
	// written by other tools.
	Metadata map[string]string

	// Distance is the squared Euclidean distance between the unit-normalised
	// query and entry vectors, 2*(1 - cosine similarity), in [0, 4].
	// Lower is closer.
	Distance float32
}

// DistanceFromSimilarity converts a cosine similarity into the squared L2
// distance of the two vectors after normalisation.
func DistanceFromSimilarity(similarity float32) float32 {
	return 2 * (1 - similarity)
}

// VectorStore persists entries and answers nearest-neighbour queries.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or overwrites a batch of entries in one call.
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns up to n entries nearest to embedding, ordered by
	// ascending distance. An empty collection yields no results and no error.
	Query(ctx context.Context, embedding []float32, n int) ([]Result, error)

	// Count returns the number of entries in the collection.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings. Ingestion and
// retrieval must use the same Embedder model so vectors share one space.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
