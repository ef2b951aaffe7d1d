package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrRateLimited classifies rate-limit failures from the backend.
	// BatchAdd retries these with exponential backoff.
	ErrRateLimited = errors.New("rate limited by backend")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the similarity-search port consumed by the query pipeline.
//
// A Store is bound to a single collection; the document index and the
// semantic cache are separate Store instances.
type Store interface {
	// AddDocuments embeds and stores documents, returning their IDs.
	// Documents without an ID are assigned one.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k documents ordered highest-similarity-first.
	Search(ctx context.Context, query string, k int) ([]Document, error)

	// SearchWithScore returns up to k results with cosine distance
	// scores (lower = closer), ordered closest-first.
	SearchWithScore(ctx context.Context, query string, k int) ([]SearchResult, error)
}
