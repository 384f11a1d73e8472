package answer

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Template variable names.
const (
	varContext  = "context"
	varQuestion = "question"
)

// Generator produces the model's answer for a question and its context.
type Generator interface {
	// Render returns the prompt messages that Generate would send.
	Render(ctx context.Context, question, contextText string) ([]*schema.Message, error)

	// Generate submits the prompt as one user turn and returns the reply
	// verbatim.
	Generate(ctx context.Context, question, contextText string) (string, error)
}

// ChatGenerator runs a compiled eino chain: Template → chat model.
// It is safe for concurrent use.
type ChatGenerator struct {
	// template renders Template into a single user message.
	template prompt.ChatTemplate
	// chain is the compiled template → model graph.
	chain compose.Runnable[map[string]any, *schema.Message]
	// temperature is passed as a per-call model option when non-nil.
	temperature *float32
}

// GeneratorOptions tunes a ChatGenerator.
type GeneratorOptions struct {
	// Temperature is sent with every request. Nil leaves the model's
	// configured value in place.
	Temperature *float32
}

// NewGenerator compiles the answer chain around cm.
func NewGenerator(ctx context.Context, cm model.BaseChatModel, opts GeneratorOptions) (*ChatGenerator, error) {
	if cm == nil {
		return nil, fmt.Errorf("answer: chat model must not be nil")
	}

	tpl := prompt.FromMessages(schema.FString, schema.UserMessage(Template))

	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(tpl).
		AppendChatModel(cm).
		Compile(ctx, compose.WithGraphName("pdfrag_answer"))
	if err != nil {
		return nil, fmt.Errorf("answer: compile chain: %w", err)
	}

	return &ChatGenerator{template: tpl, chain: chain, temperature: opts.Temperature}, nil
}

// vars builds the template variables.
func vars(question, contextText string) map[string]any {
	return map[string]any{varContext: contextText, varQuestion: question}
}

// Render implements Generator.
func (g *ChatGenerator) Render(ctx context.Context, question, contextText string) ([]*schema.Message, error) {
	msgs, err := g.template.Format(ctx, vars(question, contextText))
	if err != nil {
		return nil, fmt.Errorf("answer: render prompt: %w", err)
	}
	return msgs, nil
}

// Generate implements Generator.
func (g *ChatGenerator) Generate(ctx context.Context, question, contextText string) (string, error) {
	var callOpts []compose.Option
	if g.temperature != nil {
		callOpts = append(callOpts, compose.WithChatModelOption(model.WithTemperature(*g.temperature)))
	}

	msg, err := g.chain.Invoke(ctx, vars(question, contextText), callOpts...)
	if err != nil {
		return "", fmt.Errorf("answer: generate: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("answer: model returned no message")
	}
	return msg.Content, nil
}
