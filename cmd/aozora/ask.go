package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// askCmd sends one or more questions to the chat endpoint.
var askCmd = &cobra.Command{
	Use:   "ask QUESTION [QUESTION...]",
	Short: "Ask the server one or more questions",
	Long: `Ask the server one or more questions.

A single question returns the answer with its sources. Multiple questions
are sent as one batch and answered concurrently, with results printed in
the order given.

Examples:
  # Ask one question
  aozora ask "What happens under the gate?"

  # Ask a batch
  aozora ask "Who is the servant?" "What does the old woman do?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// ChatRequest matches internal/http ChatRequest.
type ChatRequest struct {
	Question  *string  `json:"question,omitempty"`
	Questions []string `json:"questions,omitempty"`
}

// SourceInfo matches internal/bot SourceInfo.
type SourceInfo struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
	Page  int    `json:"page,omitempty"`
}

// SingleChatResponse matches internal/http SingleChatResponse.
type SingleChatResponse struct {
	Answer  string       `json:"answer"`
	Sources []SourceInfo `json:"sources"`
}

// ChatResult matches internal/http ChatResult.
type ChatResult struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer,omitempty"`
	Sources  []SourceInfo `json:"sources,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// BatchChatResponse matches internal/http BatchChatResponse.
type BatchChatResponse struct {
	Results []ChatResult `json:"results"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	var req ChatRequest
	if len(args) == 1 {
		req.Question = &args[0]
	} else {
		req.Questions = args
	}

	body, err := postChat(req)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		var resp SingleChatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		printAnswer(resp.Answer, resp.Sources)
		return nil
	}

	var resp BatchChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	for i, result := range resp.Results {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("Q: %s\n", result.Question)
		if result.Error != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", result.Error)
			continue
		}
		printAnswer(result.Answer, result.Sources)
	}
	return nil
}

func printAnswer(answer string, sources []SourceInfo) {
	fmt.Println(answer)
	for _, source := range sources {
		line := "  source: " + source.URL
		if source.Title != "" {
			line += " (" + source.Title + ")"
		}
		if source.Page > 0 {
			line += fmt.Sprintf(" p.%d", source.Page)
		}
		fmt.Println(line)
	}
}

// postChat sends the chat request and returns the raw response body.
func postChat(req ChatRequest) ([]byte, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/chat", serverURL)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Batches can take a while; generation runs once per question.
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
