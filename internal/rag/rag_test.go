package rag

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

// fakeEmbedder returns fixed vectors keyed by text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

// fakeStore returns canned results regardless of the query vector.
type fakeStore struct {
	results []Result
	gotN    int
}

func (f *fakeStore) Upsert(context.Context, []Entry) error { return nil }
func (f *fakeStore) Query(_ context.Context, _ []float32, n int) ([]Result, error) {
	f.gotN = n
	return append([]Result(nil), f.results...), nil
}
func (f *fakeStore) Count(context.Context) (int, error) { return len(f.results), nil }
func (f *fakeStore) Close() error                       { return nil }

func entry(id string, vec ...float32) Entry {
	return Entry{
		ID:        id,
		Embedding: vec,
		Content:   "text of " + id,
		Metadata:  map[string]string{MetaFilename: "doc.pdf", MetaChunkID: id, MetaPageNumber: "1"},
	}
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestChromemStore_UpsertAndQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewChromemStore(ChromemConfig{Collection: "test"})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	defer store.Close()

	err = store.Upsert(ctx, []Entry{
		entry("a", 1, 0, 0),
		entry("b", 0, 1, 0),
		entry("c", 1, 1, 0),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := store.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || !approx(results[0].Distance, 0) {
		t.Errorf("first result: got %s at %f, want a at 0", results[0].ID, results[0].Distance)
	}
	if results[1].ID != "c" || !approx(results[1].Distance, 2-float32(math.Sqrt2)) {
		t.Errorf("second result: got %s at %f", results[1].ID, results[1].Distance)
	}
	if results[0].Metadata[MetaChunkID] != "a" || results[0].Content != "text of a" {
		t.Errorf("metadata/content not preserved: %+v", results[0])
	}
}

func TestChromemStore_UpsertOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewChromemStore(ChromemConfig{Collection: "test"})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	if err := store.Upsert(ctx, []Entry{entry("doc.pdf_chunk_0", 1, 0)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	replacement := entry("doc.pdf_chunk_0", 0, 1)
	replacement.Content = "new text"
	if err := store.Upsert(ctx, []Entry{replacement}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	n, _ := store.Count(ctx)
	if n != 1 {
		t.Fatalf("Count: got %d, want 1", n)
	}
	results, err := store.Query(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Content != "new text" {
		t.Errorf("want overwritten entry, got %+v", results)
	}
}

func TestChromemStore_QueryClampsAndEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewChromemStore(ChromemConfig{Collection: "test"})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	results, err := store.Query(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query on empty collection: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("empty collection: want no results, got %d", len(results))
	}

	if err := store.Upsert(ctx, []Entry{entry("only", 1, 0)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	results, err = store.Query(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query with n above count: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("want 1 result, got %d", len(results))
	}
}

func TestChromemStore_RejectsMissingEmbedding(t *testing.T) {
	t.Parallel()

	store, err := NewChromemStore(ChromemConfig{Collection: "test"})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	err = store.Upsert(context.Background(), []Entry{{ID: "x", Content: "no vector"}})
	if !errors.Is(err, ErrEmptyEmbedding) {
		t.Fatalf("want ErrEmptyEmbedding, got %v", err)
	}
}

func TestChromemStore_PersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "knowledge_base")

	first, err := NewChromemStore(ChromemConfig{Path: dir, Collection: "kb"})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if err := first.Upsert(ctx, []Entry{entry("a", 1, 0), entry("b", 0, 1)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	_ = first.Close()

	second, err := NewChromemStore(ChromemConfig{Path: dir, Collection: "kb"})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	n, err := second.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count after reopen: got %d, %v; want 2", n, err)
	}
}

func TestRetriever_SortsAndTruncates(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	store := &fakeStore{results: []Result{
		{ID: "far", Distance: 0.9},
		{ID: "near", Distance: 0.1},
		{ID: "mid", Distance: 0.3},
	}}
	r, err := NewRetriever(emb, store, 0)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got, err := r.Retrieve(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 || got[0].ID != "near" || got[1].ID != "mid" {
		t.Errorf("got %+v, want near, mid", got)
	}

	if _, err := r.Retrieve(context.Background(), "q", 0); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if store.gotN != DefaultTopK {
		t.Errorf("default n: got %d, want %d", store.gotN, DefaultTopK)
	}
}

func TestRetriever_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name     string
		embedder *fakeEmbedder
		question string
		wantErr  error
	}{
		{name: "embedder failure", embedder: &fakeEmbedder{err: boom}, question: "q", wantErr: boom},
		{name: "empty vector", embedder: &fakeEmbedder{vectors: map[string][]float32{}}, question: "q", wantErr: ErrEmptyEmbedding},
		{name: "blank question", embedder: &fakeEmbedder{}, question: "  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r, err := NewRetriever(tc.embedder, &fakeStore{}, 3)
			if err != nil {
				t.Fatalf("NewRetriever: %v", err)
			}
			_, err = r.Retrieve(context.Background(), tc.question, 3)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestNewRetriever_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &fakeStore{}, 3); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 3); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      []Result
		max     float32
		wantIDs []string
	}{
		{
			name:    "keeps boundary and below",
			in:      []Result{{ID: "a", Distance: 0.1}, {ID: "b", Distance: 0.4}, {ID: "c", Distance: 0.41}},
			max:     0.4,
			wantIDs: []string{"a", "b"},
		},
		{
			name: "all above threshold",
			in:   []Result{{ID: "a", Distance: 0.5}, {ID: "b", Distance: 0.8}},
			max:  0.4,
		},
		{name: "no input", max: 0.4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Filter(tc.in, tc.max)
			if len(got) != len(tc.wantIDs) {
				t.Fatalf("got %d results, want %d", len(got), len(tc.wantIDs))
			}
			for i, res := range got {
				if res.ID != tc.wantIDs[i] {
					t.Errorf("result %d: got %s, want %s", i, res.ID, tc.wantIDs[i])
				}
				if res.Distance > tc.max {
					t.Errorf("result %s: distance %f above %f", res.ID, res.Distance, tc.max)
				}
			}
		})
	}
}

func TestPointID_Deterministic(t *testing.T) {
	t.Parallel()

	a := PointID("manual.pdf_chunk_3")
	if a != PointID("manual.pdf_chunk_3") {
		t.Error("PointID is not stable")
	}
	if a == PointID("manual.pdf_chunk_4") {
		t.Error("distinct IDs map to the same point")
	}
	if len(a) != 36 {
		t.Errorf("want canonical UUID, got %q", a)
	}
}

func TestResultFromPayload(t *testing.T) {
	t.Parallel()

	payload := map[string]*qdrant.Value{
		payloadID:      qdrant.NewValueString("doc.pdf_chunk_1"),
		payloadContent: qdrant.NewValueString("chunk body"),
		MetaFilename:   qdrant.NewValueString("doc.pdf"),
		MetaPageNumber: qdrant.NewValueString("2"),
	}
	res := resultFromPayload("uuid", payload, 0.75)
	if res.ID != "doc.pdf_chunk_1" || res.Content != "chunk body" {
		t.Errorf("unexpected result %+v", res)
	}
	if !approx(res.Distance, 0.5) {
		t.Errorf("distance: got %f, want 0.5", res.Distance)
	}
	if res.Metadata[MetaFilename] != "doc.pdf" || res.Metadata[MetaPageNumber] != "2" {
		t.Errorf("metadata: got %v", res.Metadata)
	}

	bare := resultFromPayload("uuid", nil, 1)
	if bare.ID != "uuid" || bare.Metadata != nil {
		t.Errorf("bare payload: got %+v", bare)
	}
}

func TestDistanceFromSimilarity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		similarity float32
		want       float32
	}{
		{1, 0},
		{0.8, 0.4},
		{0.7, 0.6},
		{0, 2},
		{-1, 4},
	}
	for _, tc := range cases {
		if got := DistanceFromSimilarity(tc.similarity); !approx(got, tc.want) {
			t.Errorf("DistanceFromSimilarity(%v) = %v, want %v", tc.similarity, got, tc.want)
		}
	}
}

func TestChromemStore_DistanceIsSquaredL2(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewChromemStore(ChromemConfig{Collection: "test"})
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	err = store.Upsert(ctx, []Entry{
		entry("near", 0.9, float32(math.Sqrt(0.19))),
		entry("loose", 0.7, float32(math.Sqrt(0.51))),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := store.Query(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].ID != "near" || !approx(results[0].Distance, 0.2) {
		t.Errorf("near: got %s at %f, want near at 0.2", results[0].ID, results[0].Distance)
	}
	if results[1].ID != "loose" || !approx(results[1].Distance, 0.6) {
		t.Errorf("loose: got %s at %f, want loose at 0.6", results[1].ID, results[1].Distance)
	}

	kept := Filter(results, DefaultMaxDistance)
	if len(kept) != 1 || kept[0].ID != "near" {
		t.Errorf("cosine similarity 0.7 must not pass the default threshold, kept %+v", kept)
	}
}
