package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/pdfrag-go/internal/app"
	"github.com/54b3r/pdfrag-go/internal/logging"
)

// NewIngestCmd constructs the `pdfrag ingest` command, which indexes every
// PDF of the source directory into the vector collection.
func NewIngestCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the PDF documents of the source directory",
		Long: `Extract, chunk and embed every PDF of the source directory and upsert the
chunks into the vector collection. Re-ingesting a file overwrites its chunks.

Relevant environment variables:
  PDFRAG_SOURCE_DIR    Directory scanned for *.pdf files (default: data)
  PDFRAG_DB_PATH       Local collection directory (default: knowledge_base)
  PDFRAG_COLLECTION    Collection name (default: knowledge_base_collection)
  VECTOR_BACKEND       chromem or qdrant (default: chromem)
  PDFRAG_CHUNK_SIZE    Words per chunk (default: 100)
  PDFRAG_CHUNK_OVERLAP Words shared by consecutive chunks (default: 20)
  EMBEDDING_PROVIDER   ollama, openai, azure or gemini (default: ollama)

Examples:
  pdfrag ingest
  pdfrag ingest --dir ./handbooks`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			s, err := loadSettings("ingest")
			if err != nil {
				return err
			}
			if dir != "" {
				s.SourceDir = dir
			}

			a, err := app.New(ctx, s, app.Options{})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			log.Info("starting ingestion", slog.String("dir", s.SourceDir), slog.String("collection", s.Collection))
			summary, err := a.Ingest(ctx, s.SourceDir, func(msg string) {
				fmt.Fprintln(out, msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("ingestion complete", slog.Int("files", len(summary.Files)), slog.Int("chunks", len(summary.Chunks)))

			printSummary(out, s.Collection, summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of PDF files to ingest (overrides PDFRAG_SOURCE_DIR)")

	return cmd
}
