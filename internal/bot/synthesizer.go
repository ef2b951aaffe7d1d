package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/onodera-10002/aozora/internal/llm"
	"github.com/onodera-10002/aozora/internal/logging"
	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// Synthesizer produces the final answer from retrieved context. When the
// context is empty it returns the fallback answer without calling the
// model, so anything built on the LLM is skipped entirely for questions
// the corpus cannot answer.
type Synthesizer struct {
	client llm.Client
	prompt prompts.PromptTemplate
	logger *logging.Logger
}

// NewSynthesizer builds a synthesizer using the given template. An empty
// template falls back to DefaultAnswerTemplate.
func NewSynthesizer(client llm.Client, template string, logger *logging.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Synthesizer{
		client: client,
		prompt: newAnswerPrompt(template),
		logger: logger.Named("synthesizer"),
	}
}

// Synthesize answers the question against the given documents. The second
// return value reports whether the model was consulted; false means the
// fallback answer was returned.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, docs []vectorstore.Document) (string, bool, error) {
	contextText := joinDocuments(docs)
	if contextText == "" {
		s.logger.Info(ctx, "no context available, returning fallback answer")
		return FallbackAnswer, false, nil
	}

	rendered, err := s.prompt.Format(map[string]any{
		"context":  contextText,
		"question": question,
	})
	if err != nil {
		return "", false, fmt.Errorf("rendering answer prompt: %w", err)
	}

	answer, err := s.client.Invoke(ctx, rendered)
	if err != nil {
		return "", false, fmt.Errorf("synthesizing answer: %w", err)
	}
	return answer, true, nil
}

// joinDocuments concatenates document bodies, skipping blank chunks.
func joinDocuments(docs []vectorstore.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}
