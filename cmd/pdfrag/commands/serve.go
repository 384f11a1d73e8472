package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/pdfrag-go/internal/app"
	"github.com/54b3r/pdfrag-go/internal/embedder"
	"github.com/54b3r/pdfrag-go/internal/logging"
	"github.com/54b3r/pdfrag-go/internal/provider"
	"github.com/54b3r/pdfrag-go/internal/rag"
	"github.com/54b3r/pdfrag-go/internal/server"
)

// NewServeCmd constructs the `pdfrag serve` command, which exposes ask,
// ingest and history over HTTP.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pdfrag HTTP API",
		Long: `Start the pdfrag HTTP API.

Endpoints:
  POST /api/ask      {"question": "..."} -> answer, sources, fallback flag
  POST /api/ingest   re-index the configured source directory
  GET  /api/history  recent questions (?n=20)
  GET  /api/health   liveness
  GET  /api/ready    vector store, embedder and chat model probes
  GET  /metrics      Prometheus metrics

Set PDFRAG_API_KEY to require "Authorization: Bearer <key>" on /api/ask,
/api/ingest and /api/history.

Examples:
  pdfrag serve
  pdfrag serve --port 9090
  MODEL_PROVIDER=ollama OLLAMA_MODEL=llama3.1 pdfrag serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logging.FromContext(ctx)

			s, err := loadSettings("serve")
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				s.ServerHost = host
			}
			if cmd.Flags().Changed("port") {
				s.ServerPort = port
			}

			flush := setupTracing(ctx)
			defer flush()

			a, err := app.New(ctx, s, app.Options{Model: true, History: true})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			srv, err := server.New(a, &server.Config{
				Host:    s.ServerHost,
				Port:    s.ServerPort,
				Logger:  log,
				Pingers: buildPingers(ctx, a),
				APIKey:  s.APIKey,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (overrides PDFRAG_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (overrides PDFRAG_PORT)")

	return cmd
}

// buildPingers returns the readiness probes for the dependencies of a.
func buildPingers(ctx context.Context, a *app.App) []server.Pinger {
	log := logging.FromContext(ctx)

	pingers := []server.Pinger{
		server.NewStorePinger(a.Store),
		server.NewEmbedderPinger(a.Embedder, embedder.Backend()),
	}
	if qs, ok := a.Store.(*rag.QdrantStore); ok {
		pingers = append(pingers, server.NewQdrantPinger(qs.Client()))
	}
	if a.Provider != nil {
		name := string(a.Provider.Backend)
		if p := server.NewLLMPinger(provider.NewHealthCheck(a.Provider), name); p != nil {
			pingers = append(pingers, p)
		} else {
			log.Info("readiness: no probe endpoint for chat backend", slog.String("provider", name))
		}
	}
	return pingers
}
