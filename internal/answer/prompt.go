// Package answer turns a question into a grounded answer: it retrieves the
// closest chunks, drops those beyond the distance threshold, composes the
// bilingual instruction prompt and asks the chat model.
package answer

import (
	"fmt"
	"strings"

	"github.com/54b3r/pdfrag-go/internal/rag"
)

// FallbackAnswer is returned without calling the model when no chunk is
// close enough to the question.
const FallbackAnswer = "В базе знаний не нашлось необходимой информации.\n" +
	"The knowledge base contains no relevant information."

// SourcesHeader introduces the provenance lines printed after an answer.
const SourcesHeader = "Использованные источники / Sources used:"

// Template is the instruction prompt. {context} and {question} are
// substituted with FString semantics.
const Template = `Ответь на вопрос, базируясь только на этом контексте.
Answer the question based only on the following context.

{context}

---

Ответь на вопрос, используя только контекст выше: {question}
Answer the question using only the context above: {question}`

// contextSeparator joins chunk texts in the context block.
const contextSeparator = "\n\n"

// unknownPage is shown when a chunk carries no page number.
const unknownPage = "N/A"

// Source is the provenance of one chunk used as context.
type Source struct {
	Filename string `json:"filename"`
	Page     string `json:"page"`
}

// String renders s as a provenance line.
func (s Source) String() string {
	return fmt.Sprintf("File: %s, Page: %s", s.Filename, s.Page)
}

// SourcesOf returns the provenance of results in order. Results without a
// filename in their metadata are skipped; a missing page becomes "N/A".
func SourcesOf(results []rag.Result) []Source {
	out := make([]Source, 0, len(results))
	for _, r := range results {
		name := r.Metadata[rag.MetaFilename]
		if name == "" {
			continue
		}
		page := r.Metadata[rag.MetaPageNumber]
		if page == "" {
			page = unknownPage
		}
		out = append(out, Source{Filename: name, Page: page})
	}
	return out
}

// FormatSources renders sources one per line.
func FormatSources(sources []Source) string {
	lines := make([]string, len(sources))
	for i, s := range sources {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n")
}

// BuildContext joins the chunk texts of results with blank lines, keeping
// their order.
func BuildContext(results []rag.Result) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Content
	}
	return strings.Join(texts, contextSeparator)
}
