package bot

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/llm"
	"github.com/onodera-10002/aozora/internal/logging"
)

// QueryExpander rewrites a short user question into a hypothetical answer
// passage. Embedding the hypothetical passage instead of the raw question
// places the search query in the same region of vector space as the
// documents that would answer it.
type QueryExpander struct {
	client llm.Client
	prompt prompts.PromptTemplate
	logger *logging.Logger
}

// NewQueryExpander builds an expander using the given template. An empty
// template falls back to DefaultHydeTemplate.
func NewQueryExpander(client llm.Client, template string, logger *logging.Logger) *QueryExpander {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &QueryExpander{
		client: client,
		prompt: newHydePrompt(template),
		logger: logger.Named("expander"),
	}
}

// Expand generates the hypothetical passage for a question. Generation
// failures propagate; the caller decides whether to degrade.
func (e *QueryExpander) Expand(ctx context.Context, question string) (string, error) {
	rendered, err := e.prompt.Format(map[string]any{"question": question})
	if err != nil {
		return "", fmt.Errorf("rendering expansion prompt: %w", err)
	}

	expanded, err := e.client.Invoke(ctx, rendered)
	if err != nil {
		return "", fmt.Errorf("expanding query: %w", err)
	}

	e.logger.Debug(ctx, "expanded query",
		zap.Int("question_len", len(question)),
		zap.Int("expanded_len", len(expanded)),
	)
	return expanded, nil
}
