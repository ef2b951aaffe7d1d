package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/qdrant"
	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/logging"
)

// QdrantConfig holds configuration for the Qdrant-backed store.
type QdrantConfig struct {
	// URL is the Qdrant server URL (e.g. http://localhost:6333).
	URL string

	// Collection is the Qdrant collection name.
	Collection string
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: URL required", ErrInvalidConfig)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	return nil
}

// QdrantStore implements Store against an external Qdrant server via
// langchaingo. Embedding happens server-side of this process: langchaingo
// calls the provided embedder for both inserts and queries.
type QdrantStore struct {
	store  vectorstores.VectorStore
	config QdrantConfig
	logger *logging.Logger
}

// NewQdrantStore creates a Qdrant-backed store for one collection.
// The collection must exist on the server.
func NewQdrantStore(cfg QdrantConfig, embedder lcembeddings.Embedder, logger *logging.Logger) (*QdrantStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	qdrantURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing Qdrant URL: %w", err)
	}

	store, err := qdrant.New(
		qdrant.WithURL(*qdrantURL),
		qdrant.WithCollectionName(cfg.Collection),
		qdrant.WithEmbedder(embedder),
	)
	if err != nil {
		return nil, fmt.Errorf("creating Qdrant store: %w", err)
	}

	return &QdrantStore{
		store:  store,
		config: cfg,
		logger: logger.Named(cfg.Collection),
	}, nil
}

// AddDocuments embeds and stores documents, returning their IDs.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	schemaDocs := make([]schema.Document, len(docs))
	for i, doc := range docs {
		metadata := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		if doc.ID != "" {
			metadata["id"] = doc.ID
		}
		schemaDocs[i] = schema.Document{
			PageContent: doc.Content,
			Metadata:    metadata,
		}
	}

	ids, err := s.store.AddDocuments(ctx, schemaDocs)
	if err != nil {
		return nil, fmt.Errorf("adding documents to qdrant: %w", err)
	}
	return ids, nil
}

// Search returns up to k documents ordered highest-similarity-first.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]Document, error) {
	results, err := s.SearchWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	return docs, nil
}

// SearchWithScore returns up to k results with cosine distance scores.
func (s *QdrantStore) SearchWithScore(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	start := time.Now()
	docs, err := s.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]SearchResult, len(docs))
	for i, doc := range docs {
		result := SearchResult{
			Document: Document{
				Content:  doc.PageContent,
				Metadata: doc.Metadata,
			},
			// Qdrant reports cosine similarity for cosine collections.
			Distance: 1 - doc.Score,
		}
		if id, ok := doc.Metadata["id"].(string); ok {
			result.ID = id
		}
		results[i] = result
	}

	s.logger.Debug(ctx, "similarity search",
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)

	return results, nil
}
