// Package ragtest provides a deterministic embedder for tests. Texts are
// embedded as hashed bag-of-words vectors, so identical texts have distance
// zero and texts without shared words are orthogonal.
package ragtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync/atomic"
)

// DefaultDim is the vector length used when HashEmbedder.Dim is zero.
const DefaultDim = 256

// HashEmbedder implements rag.Embedder without any model.
type HashEmbedder struct {
	// Dim is the vector length.
	Dim int
	// Calls counts Embed invocations.
	Calls atomic.Int64
}

// Embed implements rag.Embedder.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	h.Calls.Add(1)
	dim := h.Dim
	if dim <= 0 {
		dim = DefaultDim
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, dim)
	}
	return out, nil
}

// Vector returns the hashed bag-of-words vector of text. Empty text maps to
// a fixed unit vector so the result can always be normalised.
func Vector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		vec[0] = 1
		return vec
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dim)]++
	}
	return vec
}
