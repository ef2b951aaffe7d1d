package http

import (
	"github.com/onodera-10002/aozora/internal/bot"
)

// ChatRequest is the request body for POST /api/v1/chat. Exactly one of
// Question and Questions must be set.
type ChatRequest struct {
	Question  *string  `json:"question"`
	Questions []string `json:"questions"`
}

// normalize validates the mutually exclusive question fields and returns
// the question list plus whether the request was the batch form.
func (r ChatRequest) normalize(maxQuestions, maxQuestionLen int) ([]string, bool, error) {
	single := r.Question != nil
	batch := len(r.Questions) > 0

	switch {
	case single && batch:
		return nil, false, bot.NewValidationError("question and questions are mutually exclusive")
	case !single && !batch:
		return nil, false, bot.NewValidationError("either question or questions is required")
	}

	questions := r.Questions
	if single {
		questions = []string{*r.Question}
	}
	if len(questions) > maxQuestions {
		return nil, false, bot.NewValidationError("at most %d questions per request (got %d)", maxQuestions, len(questions))
	}
	for i, q := range questions {
		if err := bot.ValidateQuestion(q, maxQuestionLen); err != nil {
			return nil, false, bot.NewValidationError("question %d: %v", i+1, err)
		}
	}
	return questions, batch, nil
}

// ChatResult is one answered question in a chat response.
type ChatResult struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer,omitempty"`
	Sources  []bot.SourceInfo `json:"sources,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// SingleChatResponse is the response body for the single-question form.
type SingleChatResponse struct {
	Answer  string           `json:"answer"`
	Sources []bot.SourceInfo `json:"sources"`
}

// BatchChatResponse is the response body for the batch form. Results are
// in request order.
type BatchChatResponse struct {
	Results []ChatResult `json:"results"`
}

// UploadResponse is the response body for POST /api/v1/upload.
type UploadResponse struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

// IngestRequest is the request body for POST /api/v1/ingest.
type IngestRequest struct {
	Source string `json:"source"`
	Title  string `json:"title"`
}

// IngestResponse is the response body for POST /api/v1/ingest.
type IngestResponse struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// batchResults maps pipeline outcomes to the wire form, hiding internal
// error detail behind a generic message.
func batchResults(results []bot.BatchResult) []ChatResult {
	out := make([]ChatResult, len(results))
	for i, res := range results {
		out[i].Question = res.Question
		if res.Err != nil {
			out[i].Error = publicError(res.Err)
			continue
		}
		out[i].Answer = res.Response.Answer
		out[i].Sources = res.Response.Sources
	}
	return out
}

// publicError renders an error for clients. Validation reasons are safe
// to show; everything else is collapsed to a generic message.
func publicError(err error) string {
	if bot.IsValidationError(err) {
		return err.Error()
	}
	return "answer generation failed"
}
