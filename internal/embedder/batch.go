package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/pdfrag-go/internal/rag"
)

// DefaultBatchSize is the number of texts sent per embedding request.
const DefaultBatchSize = 32

// Batched wraps an Embedder so that large inputs are sent in requests of at
// most size texts. Results are concatenated in input order.
type Batched struct {
	// next is the wrapped embedder.
	next rag.Embedder
	// size is the maximum number of texts per request.
	size int
}

// NewBatched returns next wrapped in a Batched embedder. A non-positive size
// selects DefaultBatchSize.
func NewBatched(next rag.Embedder, size int) *Batched {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batched{next: next, size: size}
}

// Embed splits texts into batches and embeds them sequentially.
func (b *Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))
		vecs, err := b.next.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedder: batch [%d:%d]: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder: batch [%d:%d]: expected %d embeddings, got %d", start, end, end-start, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
