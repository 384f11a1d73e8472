package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/pdfrag-go/internal/budget"
	"github.com/54b3r/pdfrag-go/internal/logging"
	"github.com/54b3r/pdfrag-go/internal/rag"
)

// Retriever fetches the nearest chunks for a question, ordered by
// ascending distance.
type Retriever interface {
	Retrieve(ctx context.Context, question string, n int) ([]rag.Result, error)
}

// Answer is the outcome of one question.
type Answer struct {
	// Question is the question as asked.
	Question string `json:"question"`
	// Text is the model reply verbatim, or FallbackAnswer.
	Text string `json:"answer"`
	// Sources lists the provenance of the chunks used as context.
	Sources []Source `json:"sources"`
	// Fallback is true when no chunk passed the distance filter and the
	// model was not called.
	Fallback bool `json:"fallback"`
	// Results are the chunks that passed the distance filter.
	Results []rag.Result `json:"-"`
	// Prompt is the rendered prompt, set only when Config.KeepPrompt is true.
	Prompt string `json:"-"`
}

// FormatSources renders the answer's provenance lines.
func (a *Answer) FormatSources() string {
	return FormatSources(a.Sources)
}

// Config holds the retrieval knobs of a Service.
type Config struct {
	// TopK is the number of nearest chunks fetched (default: 3).
	TopK int
	// MaxDistance is the largest distance kept, inclusive. Zero keeps exact
	// matches only; a negative value selects rag.DefaultMaxDistance.
	MaxDistance float32
	// MaxContextTokens bounds the estimated prompt size; the farthest chunks
	// are dropped to fit. Zero disables the check.
	MaxContextTokens int
	// KeepPrompt stores the rendered prompt on the Answer.
	KeepPrompt bool
}

// Service answers questions against the vector collection.
type Service struct {
	retriever Retriever
	generator Generator
	cfg       Config
}

// NewService constructs a Service. A non-positive TopK and a negative
// MaxDistance select the package defaults.
func NewService(r Retriever, g Generator, cfg Config) (*Service, error) {
	if r == nil {
		return nil, fmt.Errorf("answer: retriever must not be nil")
	}
	if g == nil {
		return nil, fmt.Errorf("answer: generator must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = rag.DefaultTopK
	}
	if cfg.MaxDistance < 0 {
		cfg.MaxDistance = rag.DefaultMaxDistance
	}
	return &Service{retriever: r, generator: g, cfg: cfg}, nil
}

// Ask retrieves context for question and, when any chunk is close enough,
// asks the model. Retrieval and model errors propagate to the caller. An
// empty context yields FallbackAnswer without a model call.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	log := logging.FromContext(ctx)
	question = strings.TrimSpace(question)

	results, err := s.retriever.Retrieve(ctx, question, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("answer: retrieve: %w", err)
	}
	kept := rag.Filter(results, s.cfg.MaxDistance)
	log.Debug("answer: retrieval done",
		slog.Int("retrieved", len(results)),
		slog.Int("kept", len(kept)),
		slog.Float64("max_distance", float64(s.cfg.MaxDistance)),
	)

	if len(kept) == 0 {
		return &Answer{Question: question, Text: FallbackAnswer, Sources: []Source{}, Fallback: true}, nil
	}

	if s.cfg.MaxContextTokens > 0 {
		texts := make([]string, len(kept))
		for i, r := range kept {
			texts[i] = r.Content
		}
		if n := budget.FitChunks(Template+question, texts, s.cfg.MaxContextTokens); n < len(kept) {
			log.Warn("answer: context exceeds token budget, dropping farthest chunks",
				slog.Int("kept", n),
				slog.Int("dropped", len(kept)-n),
				slog.Int("max_context_tokens", s.cfg.MaxContextTokens),
			)
			kept = kept[:n]
		}
	}

	contextText := BuildContext(kept)
	ans := &Answer{Question: question, Sources: SourcesOf(kept), Results: kept}

	if s.cfg.KeepPrompt {
		msgs, err := s.generator.Render(ctx, question, contextText)
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(msgs))
		for i, m := range msgs {
			parts[i] = m.Content
		}
		ans.Prompt = strings.Join(parts, "\n")
		log.Debug("answer: prompt rendered", slog.Int("estimated_tokens", budget.EstimateMessages(msgs)))
	}

	text, err := s.generator.Generate(ctx, question, contextText)
	if err != nil {
		return nil, err
	}
	ans.Text = text
	return ans, nil
}
