package bot

import "github.com/tmc/langchaingo/prompts"

// DefaultHydeTemplate fabricates a hypothetical answer document for the
// question. The output is used only as the retrieval query and is never
// shown to the user.
const DefaultHydeTemplate = `Write a short passage that plausibly answers the question below, as if it were an excerpt from a reference document. Do not say that you are unsure; invent a confident, factual-sounding passage.

Question: {{.question}}

Passage:`

// DefaultAnswerTemplate renders the generation prompt from the retrieved
// context and the original question.
const DefaultAnswerTemplate = `You are an assistant that answers questions using only the provided context. If the context does not contain the answer, say so briefly.

Context:
{{.context}}

Question: {{.question}}

Answer:`

// FallbackAnswer is returned when retrieval produced no context. The
// language model is not invoked and the answer is not cached.
const FallbackAnswer = "I'm sorry, but no relevant information was found. Please try a different question."

// newHydePrompt builds the HyDE prompt template.
func newHydePrompt(template string) prompts.PromptTemplate {
	if template == "" {
		template = DefaultHydeTemplate
	}
	return prompts.NewPromptTemplate(template, []string{"question"})
}

// newAnswerPrompt builds the answer prompt template.
func newAnswerPrompt(template string) prompts.PromptTemplate {
	if template == "" {
		template = DefaultAnswerTemplate
	}
	return prompts.NewPromptTemplate(template, []string{"context", "question"})
}
