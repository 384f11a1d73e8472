// Package ingestion implements the PDF ingestion pipeline. It extracts the
// text of every PDF in a directory, splits it into overlapping word windows,
// attributes each window to its majority page, embeds the windows and
// upserts them into the vector store in a single batch.
// This pipeline is invoked by the `pdfrag ingest` CLI command and by
// POST /api/ingest.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/54b3r/pdfrag-go/internal/chunker"
	"github.com/54b3r/pdfrag-go/internal/logging"
	"github.com/54b3r/pdfrag-go/internal/pdftext"
	"github.com/54b3r/pdfrag-go/internal/rag"
)

// Default chunking parameters, in words.
const (
	DefaultChunkSize    = 100
	DefaultChunkOverlap = 20
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the number of words per chunk (default: 100).
	ChunkSize int

	// ChunkOverlap is the number of words shared by consecutive chunks
	// (default: 20). It must be smaller than ChunkSize.
	ChunkOverlap int
}

// Chunk is one word window of a document, ready to embed.
type Chunk struct {
	// ID is "{filename}_chunk_{index}".
	ID string
	// Filename is the base name of the source PDF.
	Filename string
	// Index is the window index within the document.
	Index int
	// Page is the 1-based majority page of the window.
	Page int
	// Text is the window text, words joined by single spaces.
	Text string
}

// ChunkID returns the composite collection ID of a document window.
func ChunkID(filename string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", filename, index)
}

// Summary reports the outcome of an ingestion run.
type Summary struct {
	// Files lists the ingested file names in processing order.
	Files []string
	// Chunks lists every chunk upserted, in processing order.
	Chunks []Chunk
}

// Sample returns the chunk at position i across the whole run.
func (s *Summary) Sample(i int) (Chunk, bool) {
	if i < 0 || i >= len(s.Chunks) {
		return Chunk{}, false
	}
	return s.Chunks[i], true
}

// Pipeline orchestrates the extract → chunk → embed → upsert flow.
type Pipeline struct {
	// embedder converts chunk texts into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// chunker splits document text into word windows.
	chunker *chunker.Chunker
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
// A zero ChunkSize selects DefaultChunkSize, and DefaultChunkOverlap too when
// no overlap is given. An overlap that is not smaller than the size is
// rejected.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size == 0 {
		size = DefaultChunkSize
	}
	if cfg.ChunkSize == 0 && overlap == 0 {
		overlap = DefaultChunkOverlap
	}

	c, err := chunker.New(size, overlap)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	return &Pipeline{embedder: embedder, store: store, chunker: c}, nil
}

// ListPDFs returns the paths of the PDF files directly inside dir, sorted by
// name. The extension match is case-insensitive.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read source dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// Ingest processes every PDF in dir. Progress lines are reported through
// the optional progress callback. The first error aborts the run; nothing
// is written to the store unless every file was chunked and embedded.
func (p *Pipeline) Ingest(ctx context.Context, dir string, progress func(msg string)) (*Summary, error) {
	paths, err := ListPDFs(dir)
	if err != nil {
		return nil, err
	}
	return p.IngestFiles(ctx, paths, progress)
}

// IngestFiles processes the given PDF paths in order.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string, progress func(msg string)) (*Summary, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	summary := &Summary{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingestion: %w", err)
		}

		doc, err := pdftext.Extract(path)
		if err != nil {
			return nil, fmt.Errorf("ingestion: %w", err)
		}
		progress(fmt.Sprintf("  Filename: %s", doc.Filename))

		chunks := p.Chunks(doc)
		for _, c := range chunks {
			progress(fmt.Sprintf("  Page_number: %d", c.Page))
		}
		log.Debug("ingestion: file chunked",
			slog.String("file", doc.Filename),
			slog.Int("pages", len(doc.Pages)),
			slog.Int("chunks", len(chunks)),
		)

		summary.Files = append(summary.Files, doc.Filename)
		summary.Chunks = append(summary.Chunks, chunks...)
	}

	if len(summary.Chunks) == 0 {
		log.Info("ingestion: nothing to upsert", slog.Int("files", len(summary.Files)))
		return summary, nil
	}

	entries, err := p.embed(ctx, summary.Chunks)
	if err != nil {
		return nil, err
	}
	if err := p.store.Upsert(ctx, entries); err != nil {
		return nil, fmt.Errorf("ingestion: upsert failed: %w", err)
	}

	log.Info("ingestion: upsert complete",
		slog.Int("files", len(summary.Files)),
		slog.Int("chunks", len(summary.Chunks)),
	)
	return summary, nil
}

// Chunks splits doc into word windows and attributes each to its majority
// page.
func (p *Pipeline) Chunks(doc *pdftext.Document) []Chunk {
	pages := chunker.PageIndex(doc.Pages)

	var out []Chunk
	for w := range p.chunker.Windows(doc.Text()) {
		page, ok := chunker.MajorityPage(pages, w.Start, w.Words)
		if !ok {
			page = 1
		}
		out = append(out, Chunk{
			ID:       ChunkID(doc.Filename, w.Index),
			Filename: doc.Filename,
			Index:    w.Index,
			Page:     page,
			Text:     w.Text,
		})
	}
	return out
}

// embed computes one embedding per chunk and builds the collection entries.
func (p *Pipeline) embed(ctx context.Context, chunks []Chunk) ([]rag.Entry, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ingestion: embedding failed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("ingestion: expected %d embeddings, got %d", len(chunks), len(vectors))
	}

	entries := make([]rag.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = rag.Entry{
			ID:        c.ID,
			Embedding: vectors[i],
			Content:   c.Text,
			Metadata: map[string]string{
				rag.MetaFilename:   c.Filename,
				rag.MetaChunkID:    c.ID,
				rag.MetaPageNumber: strconv.Itoa(c.Page),
			},
		}
	}
	return entries, nil
}
