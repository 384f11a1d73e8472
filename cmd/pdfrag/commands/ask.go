package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/pdfrag-go/internal/app"
)

// NewAskCmd constructs the `pdfrag ask` command, which answers a single
// question from the ingested documents and prints the sources used.
func NewAskCmd() *cobra.Command {
	var topK int
	var maxDistance float32
	var showPrompt bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the ingested documents",
		Long: `Retrieve the chunks closest to the question, keep those within the distance
threshold and ask the chat model to answer from them only. When no chunk is
close enough the model is not called and a fixed answer is printed. The
question is a single argument; quote it when it contains spaces.

The chat model is selected with MODEL_PROVIDER (openai, ollama, azure, ark,
gemini). The default is a local OpenAI-compatible server at
http://localhost:1234/v1.

Examples:
  pdfrag ask "How many days of annual leave do employees get?"
  pdfrag ask --top-k 5 --max-distance 0.5 "What is the notice period?"
  pdfrag ask --show-prompt "Who approves travel expenses?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := strings.TrimSpace(args[0])
			if question == "" {
				return errors.New("ask: question must not be empty")
			}

			s, err := loadSettings("ask")
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("top-k") {
				s.TopK = topK
			}
			if cmd.Flags().Changed("max-distance") && maxDistance >= 0 {
				s.MaxDistance = maxDistance
			}

			flush := setupTracing(ctx)
			defer flush()

			a, err := app.New(ctx, s, app.Options{Model: true, History: true, KeepPrompt: showPrompt})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer a.Close()

			ans, err := a.Ask(ctx, question)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			printAnswer(cmd.OutOrStdout(), ans, showPrompt)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of nearest chunks to retrieve (overrides PDFRAG_TOP_K)")
	cmd.Flags().Float32Var(&maxDistance, "max-distance", -1, "Largest distance kept as context, 0 keeps exact matches only (negative uses PDFRAG_MAX_DISTANCE)")
	cmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "Print the composed prompt before the answer")

	return cmd
}
