package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// Metadata keys carried on indexed chunks and cache entries.
const (
	metaUserTitle  = "user_title"
	metaSourceFile = "source_file"
	metaPageInfo   = "page_info"
	metaAnswer     = "answer"
)

// SourceInfo is a provenance reference for one retrieved chunk.
type SourceInfo struct {
	// Title is the user-supplied document title, if any.
	Title string `json:"title,omitempty"`

	// URL is a path reference to the originating file.
	URL string `json:"url"`

	// Page is the 1-based page number, 0 when unknown.
	Page int `json:"page,omitempty"`
}

// ChatResponse is the pipeline's output for one question.
//
// Sources is empty when the answer came from the semantic cache or when no
// context was retrieved; otherwise it holds one entry per retrieved chunk
// in retrieval order.
type ChatResponse struct {
	Answer  string       `json:"answer"`
	Sources []SourceInfo `json:"sources"`
}

// BatchResult pairs one question with its independent outcome.
type BatchResult struct {
	Question string
	Response ChatResponse
	Err      error
}

// pipelineState is the per-question record threaded through the stages.
// Created fresh per question, never shared across concurrent questions.
type pipelineState struct {
	question      string
	expandedQuery string
	retrieved     []vectorstore.Document
	answer        string
}

// sourcesFromDocs maps retrieved chunks to source references,
// order-preserving.
func sourcesFromDocs(docs []vectorstore.Document) []SourceInfo {
	sources := make([]SourceInfo, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, SourceInfo{
			Title: metaString(doc.Metadata, metaUserTitle),
			URL:   "/files/" + metaString(doc.Metadata, metaSourceFile),
			Page:  metaInt(doc.Metadata, metaPageInfo),
		})
	}
	return sources
}

// metaString returns the metadata value as a string, or "".
func metaString(metadata map[string]any, key string) string {
	v, ok := metadata[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// metaInt returns the metadata value as an int, or 0. Values may arrive as
// numbers (qdrant JSON payloads) or strings (chromem string payloads).
func metaInt(metadata map[string]any, key string) int {
	switch v := metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
