package rag

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// DefaultTopK is the number of nearest chunks fetched per question.
const DefaultTopK = 3

// DefaultMaxDistance is the largest distance a chunk may have and still be
// used as context. On the squared L2 scale it keeps cosine similarity >= 0.8.
const DefaultMaxDistance = 0.4

// Retriever combines an Embedder and a VectorStore. It embeds the question
// at retrieval time and delegates the nearest-neighbour search to the store.
type Retriever struct {
	// embedder converts question text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a Retriever from the given Embedder and VectorStore.
// defaultTopK sets the fallback result count when Retrieve is called with n=0.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Retriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds question and returns up to n nearest entries sorted by
// ascending distance. If n is 0 the defaultTopK configured at construction
// time is used.
func (r *Retriever) Retrieve(ctx context.Context, question string, n int) ([]Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("rag: question must not be empty")
	}
	if n <= 0 {
		n = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding question failed: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}

	results, err := r.store.Query(ctx, embeddings[0], n)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	if len(results) > n {
		results = results[:n]
	}

	return results, nil
}

// Filter returns the results whose distance does not exceed maxDistance,
// preserving order. The input slice is not modified.
func Filter(results []Result, maxDistance float32) []Result {
	kept := make([]Result, 0, len(results))
	for _, res := range results {
		if res.Distance <= maxDistance {
			kept = append(kept, res)
		}
	}
	return kept
}
