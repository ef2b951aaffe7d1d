package ingest

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Loader extracts documents from one source. Implementations return one
// document per natural unit of the source (a web article body, a PDF
// page); chunking happens afterwards in the Splitter.
type Loader interface {
	Load(ctx context.Context) ([]vectorstore.Document, error)
}

// Splitter cuts extracted documents into overlapping chunks sized for
// embedding.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

// NewSplitter creates a recursive character splitter. Non-positive
// parameters take defaults.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Split chunks each document, carrying its metadata onto every chunk.
func (s *Splitter) Split(docs []vectorstore.Document) ([]vectorstore.Document, error) {
	var chunks []vectorstore.Document
	for _, doc := range docs {
		parts, err := s.inner.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("splitting document: %w", err)
		}
		for _, part := range parts {
			metadata := make(map[string]any, len(doc.Metadata))
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			chunks = append(chunks, vectorstore.Document{
				Content:  part,
				Metadata: metadata,
			})
		}
	}
	return chunks, nil
}
