package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/pdfrag-go/internal/app"
)

// NewHistoryCmd constructs the `pdfrag history` command, which prints the
// most recently answered questions.
func NewHistoryCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently asked questions",
		Long: `Show the most recent questions answered by 'pdfrag ask' and the HTTP API,
newest first, with the answer and the sources used.

History is kept in ~/.pdfrag/history.db unless PDFRAG_HISTORY_DB points
elsewhere. PDFRAG_HISTORY_DB=disabled turns recording off.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if n <= 0 {
				return fmt.Errorf("history: -n must be positive, got %d", n)
			}
			s, err := loadSettings("history")
			if err != nil {
				return err
			}
			hs := app.OpenHistory(ctx, s)
			if hs == nil {
				return errors.New("history: query history is disabled or unavailable")
			}
			defer hs.Close()

			entries, err := hs.Recent(ctx, n)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "limit", "n", 10, "Number of entries to show")

	return cmd
}
