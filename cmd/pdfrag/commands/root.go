// Package commands defines all Cobra CLI commands for the pdfrag binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/pdfrag-go/internal/audit"
	"github.com/54b3r/pdfrag-go/internal/config"
	"github.com/54b3r/pdfrag-go/internal/logging"
)

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	var configPath string
	var envFile string

	root := &cobra.Command{
		Use:   "pdfrag",
		Short: "pdfrag answers questions from a folder of PDF documents",
		Long: `pdfrag is a local question answering tool over PDF documents.

It splits every PDF of the source directory into overlapping word chunks,
stores their embeddings in a vector collection, and answers questions by
retrieving the closest chunks and asking a chat model to answer from them
only. Every answer lists the files and pages it was built from.

Settings come from environment variables, an optional .env file and an
optional YAML config file (~/.pdfrag/config.yaml). Environment variables
always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			if err := config.LoadDotEnv(envFile, log); err != nil {
				return err
			}
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// Re-create the logger so LOG_LEVEL/LOG_FORMAT from files apply.
			log = logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)
			cmd.SetContext(ctx)

			audit.LogCommandStart(ctx, log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.pdfrag/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the config file")

	root.AddCommand(
		NewIngestCmd(),
		NewAskCmd(),
		NewServeCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
