package vectorstore

import "fmt"

// Document represents a chunk of indexed text.
//
// Metadata carries provenance used to build source references: for uploaded
// PDFs this includes user_title, source_file, and page_info; for semantic
// cache entries it carries the stored answer.
type Document struct {
	// ID is the unique identifier. Assigned on insert when empty.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata contains additional key-value pairs.
	Metadata map[string]any
}

// SearchResult pairs a document with its distance score.
type SearchResult struct {
	Document

	// Distance is the cosine distance to the query (lower = closer).
	Distance float32
}

// convertMetadataToString converts metadata values to strings for backends
// that store string-only payloads (chromem).
func convertMetadataToString(metadata map[string]any) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	converted := make(map[string]string, len(metadata))
	for k, v := range metadata {
		converted[k] = fmt.Sprint(v)
	}
	return converted
}

// convertMetadataFromString restores a map[string]any view of string-only
// metadata. Values stay strings; callers that need typed values parse them.
func convertMetadataFromString(metadata map[string]string) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	converted := make(map[string]any, len(metadata))
	for k, v := range metadata {
		converted[k] = v
	}
	return converted
}
