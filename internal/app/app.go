// Package app assembles the pdfrag components from resolved settings: the
// embedder, the vector store, the answer service and the query history. The
// ingestion pipeline is built per run. CLI commands and the HTTP server share one App.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/pdfrag-go/internal/answer"
	"github.com/54b3r/pdfrag-go/internal/config"
	"github.com/54b3r/pdfrag-go/internal/embedder"
	"github.com/54b3r/pdfrag-go/internal/ingestion"
	"github.com/54b3r/pdfrag-go/internal/logging"
	"github.com/54b3r/pdfrag-go/internal/provider"
	"github.com/54b3r/pdfrag-go/internal/rag"
	"github.com/54b3r/pdfrag-go/internal/store"
)

// ErrNoModel is returned by Ask when the App was built without a chat model.
var ErrNoModel = errors.New("app: no chat model configured")

// Options selects the optional parts of an App.
type Options struct {
	// Model builds the chat model and the answer service.
	Model bool
	// History opens the query history store.
	History bool
	// KeepPrompt keeps the rendered prompt on every Answer.
	KeepPrompt bool
}

// Deps are the externally constructed dependencies of an App. Nil optional
// fields leave the matching feature off.
type Deps struct {
	Embedder rag.Embedder
	Store    rag.VectorStore
	// ChatModel is required for Ask.
	ChatModel model.BaseChatModel
	// Provider carries the model tuning; nil sends no temperature.
	Provider *provider.Config
	// History records answered questions when non-nil.
	History store.HistoryStore
}

// App holds the wired components.
type App struct {
	Settings  *config.Settings
	Embedder  rag.Embedder
	Store     rag.VectorStore
	Retriever *rag.Retriever
	ChatModel model.BaseChatModel
	Provider  *provider.Config
	Service   *answer.Service
	History   store.HistoryStore
}

// New builds every dependency from the environment and assembles the App.
// On error, anything already opened is closed.
func New(ctx context.Context, s *config.Settings, opts Options) (*App, error) {
	log := logging.FromContext(ctx)

	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("provider", embedder.Backend()))

	vs, err := OpenStore(ctx, s)
	if err != nil {
		return nil, err
	}

	deps := Deps{Embedder: emb, Store: vs}
	closeOnErr := func(err error) (*App, error) {
		_ = vs.Close()
		if deps.History != nil {
			_ = deps.History.Close()
		}
		return nil, err
	}

	if opts.Model {
		cm, pcfg, err := provider.NewFromEnv(ctx)
		if err != nil {
			return closeOnErr(fmt.Errorf("app: failed to initialise model provider: %w", err))
		}
		deps.ChatModel, deps.Provider = cm, pcfg
		log.Info("provider initialised",
			slog.String("provider", string(pcfg.Backend)),
			slog.String("model", pcfg.ModelName()),
		)
	}

	if opts.History {
		deps.History = OpenHistory(ctx, s)
	}

	a, err := Assemble(ctx, s, deps, opts)
	if err != nil {
		return closeOnErr(err)
	}
	return a, nil
}

// OpenStore opens the vector store selected by s.VectorBackend.
func OpenStore(ctx context.Context, s *config.Settings) (rag.VectorStore, error) {
	log := logging.FromContext(ctx)

	switch s.VectorBackend {
	case config.BackendQdrant:
		vectorSize := uint64(embedder.DefaultDimensions(embedder.Backend())) //nolint:gosec // dimensions are bounded
		qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       s.QdrantHost,
			Port:       s.QdrantPort,
			Collection: s.QdrantCollection,
			VectorSize: vectorSize,
			APIKey:     s.QdrantAPIKey,
			UseTLS:     s.QdrantTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("app: failed to connect to Qdrant at %s:%d: %w", s.QdrantHost, s.QdrantPort, err)
		}
		log.Info("qdrant store ready",
			slog.String("host", s.QdrantHost),
			slog.Int("port", s.QdrantPort),
			slog.String("collection", s.QdrantCollection),
		)
		return qs, nil
	default:
		cs, err := rag.NewChromemStore(rag.ChromemConfig{Path: s.DBPath, Collection: s.Collection})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		log.Info("local vector store ready",
			slog.String("path", s.DBPath),
			slog.String("collection", s.Collection),
		)
		return cs, nil
	}
}

// OpenHistory opens the query history store. Failures are logged and
// disable history rather than aborting the command.
func OpenHistory(ctx context.Context, s *config.Settings) store.HistoryStore {
	log := logging.FromContext(ctx)

	if !s.HistoryEnabled() {
		log.Info("history: disabled via PDFRAG_HISTORY_DB=disabled")
		return nil
	}

	dbPath := s.HistoryDB
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}

	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs
}

// Assemble wires deps into an App without touching the environment.
func Assemble(ctx context.Context, s *config.Settings, deps Deps, opts Options) (*App, error) {
	if s == nil {
		return nil, fmt.Errorf("app: settings must not be nil")
	}

	retriever, err := rag.NewRetriever(deps.Embedder, deps.Store, s.TopK)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a := &App{
		Settings:  s,
		Embedder:  deps.Embedder,
		Store:     deps.Store,
		Retriever: retriever,
		ChatModel: deps.ChatModel,
		Provider:  deps.Provider,
		History:   deps.History,
	}

	if deps.ChatModel != nil {
		var genOpts answer.GeneratorOptions
		if deps.Provider != nil && deps.Provider.AcceptsTemperature() {
			temp := deps.Provider.Tuning.Temperature
			genOpts.Temperature = &temp
		}
		gen, err := answer.NewGenerator(ctx, deps.ChatModel, genOpts)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.Service, err = answer.NewService(retriever, gen, answer.Config{
			TopK:             s.TopK,
			MaxDistance:      s.MaxDistance,
			MaxContextTokens: s.MaxContextTokens,
			KeepPrompt:       opts.KeepPrompt,
		})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	return a, nil
}

// Ask answers question and records it in the history. A history write
// failure is logged and does not fail the answer.
func (a *App) Ask(ctx context.Context, question string) (*answer.Answer, error) {
	if a.Service == nil {
		return nil, ErrNoModel
	}
	ans, err := a.Service.Ask(ctx, question)
	if err != nil {
		return nil, err
	}

	if a.History != nil {
		sources := make([]store.Source, len(ans.Sources))
		for i, src := range ans.Sources {
			sources[i] = store.Source{Filename: src.Filename, Page: src.Page}
		}
		entry := store.Entry{Question: ans.Question, Answer: ans.Text, Sources: sources, Fallback: ans.Fallback}
		if err := a.History.Record(ctx, entry); err != nil {
			logging.FromContext(ctx).Warn("history: failed to record query", slog.Any("error", err))
		}
	}
	return ans, nil
}

// Ingest runs the pipeline over dir, or over the configured source
// directory when dir is empty. The chunk settings are validated here, so a
// bad overlap only fails ingestion.
func (a *App) Ingest(ctx context.Context, dir string, progress func(string)) (*ingestion.Summary, error) {
	if dir == "" {
		dir = a.Settings.SourceDir
	}
	p, err := ingestion.NewPipeline(a.Embedder, a.Store, &ingestion.Config{
		ChunkSize:    a.Settings.ChunkSize,
		ChunkOverlap: a.Settings.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("app: failed to create pipeline: %w", err)
	}
	return p.Ingest(ctx, dir, progress)
}

// Recent returns the latest n history entries, or nothing when history is
// disabled.
func (a *App) Recent(ctx context.Context, n int) ([]store.Entry, error) {
	if a.History == nil {
		return nil, nil
	}
	return a.History.Recent(ctx, n)
}

// Close releases the vector store and the history store.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	return errors.Join(errs...)
}
