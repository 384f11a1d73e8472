package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/54b3r/pdfrag-go/internal/answer"
	"github.com/54b3r/pdfrag-go/internal/config"
	"github.com/54b3r/pdfrag-go/internal/ingestion"
	"github.com/54b3r/pdfrag-go/internal/logging"
	"github.com/54b3r/pdfrag-go/internal/store"
	"github.com/54b3r/pdfrag-go/internal/tracing"
)

// sampleIndex is the position of the chunk shown after ingestion.
const sampleIndex = 9

// samplePreview is the number of characters of the sample chunk shown.
const samplePreview = 100

// loadSettings resolves the runtime settings from the environment.
func loadSettings(command string) (*config.Settings, error) {
	s, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}
	return s, nil
}

// setupTracing enables Langfuse tracing when configured and returns the
// flush function to defer.
func setupTracing(ctx context.Context) func() {
	log := logging.FromContext(ctx)
	flush, ok := tracing.Setup()
	if ok {
		log.Info("langfuse tracing enabled")
	} else {
		log.Debug("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
	}
	return flush
}

// printSummary writes the ingestion totals and the sample chunk to w.
func printSummary(w io.Writer, collection string, summary *ingestion.Summary) {
	fmt.Fprintf(w, "\nIngested %d chunks from %d files into collection %q.\n",
		len(summary.Chunks), len(summary.Files), collection)

	c, ok := summary.Sample(sampleIndex)
	if !ok {
		fmt.Fprintf(w, "Fewer than %d chunks were produced, no sample to show.\n", sampleIndex+1)
		return
	}
	fmt.Fprintf(w, "\nChunk #%d:\n", sampleIndex+1)
	fmt.Fprintf(w, "  ID: %s\n", c.ID)
	fmt.Fprintf(w, "  Filename: %s\n", c.Filename)
	fmt.Fprintf(w, "  Page: %d\n", c.Page)
	fmt.Fprintf(w, "  Text: %s\n", preview(c.Text, samplePreview))
}

// preview returns the first n characters of s, followed by "..." when s
// was cut.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// printAnswer writes the answer text and, when any, the sources used.
func printAnswer(w io.Writer, ans *answer.Answer, showPrompt bool) {
	if showPrompt && ans.Prompt != "" {
		fmt.Fprintf(w, "Prompt:\n%s\n\n", ans.Prompt)
	}
	fmt.Fprintln(w, ans.Text)
	if len(ans.Sources) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n%s\n", answer.SourcesHeader, ans.FormatSources())
}

// printHistory writes history entries, newest first.
func printHistory(w io.Writer, entries []store.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No questions recorded yet.")
		return
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s] %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Question)
		fmt.Fprintln(w, strings.TrimSpace(e.Answer))
		for _, s := range e.Sources {
			fmt.Fprintf(w, "  File: %s, Page: %s\n", s.Filename, s.Page)
		}
	}
}
