package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/logging"
)

var chromemTracer = otel.Tracer("aozora.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/aozora/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/aozora/vectorstore"
	}
}

// ChromemDB wraps a persistent chromem-go database shared by the document
// index and the semantic cache. Use Collection to obtain a Store bound to
// one collection.
type ChromemDB struct {
	db       *chromem.DB
	embedder Embedder
	logger   *logging.Logger
}

// NewChromemDB opens (or creates) a persistent chromem database.
func NewChromemDB(cfg ChromemConfig, embedder Embedder, logger *logging.Logger) (*ChromemDB, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	cfg.ApplyDefaults()

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	logger.Info(context.Background(), "chromem DB opened",
		zap.String("path", path),
		zap.Bool("compress", cfg.Compress),
	)

	return &ChromemDB{db: db, embedder: embedder, logger: logger}, nil
}

// Collection returns a Store bound to the named collection, creating the
// collection if it does not exist.
func (d *ChromemDB) Collection(name string) (*ChromemStore, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return d.embedder.EmbedQuery(ctx, text)
	}
	if _, err := d.db.GetOrCreateCollection(name, nil, embedFunc); err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}

	return &ChromemStore{
		db:        d.db,
		name:      name,
		embedder:  d.embedder,
		embedFunc: embedFunc,
		logger:    d.logger.Named(name),
	}, nil
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// ChromemStore implements Store on one chromem collection.
type ChromemStore struct {
	db        *chromem.DB
	name      string
	embedder  Embedder
	embedFunc chromem.EmbeddingFunc
	logger    *logging.Logger
}

// AddDocuments embeds and stores documents, returning their IDs.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.name),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	collection := s.db.GetCollection(s.name, s.embedFunc)
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, s.name)
	}

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		texts[i] = doc.Content
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  convertMetadataToString(doc.Metadata),
			Embedding: embeddings[i],
		}
	}

	// Concurrency of 1: embeddings are already computed.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	s.logger.Debug(ctx, "added documents",
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// Search returns up to k documents ordered highest-similarity-first.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]Document, error) {
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
func (s *ChromemStore) SearchWithScore(ctx context.Context, query string, k int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.SearchWithScore")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.name),
		attribute.Int("k", k),
	)

	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	collection := s.db.GetCollection(s.name, s.embedFunc)
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, s.name)
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if k > count {
		k = count
	}

	start := time.Now()
	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.name, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: convertMetadataFromString(r.Metadata),
			},
			Distance: 1 - r.Similarity,
		}
	}

	s.logger.Debug(ctx, "similarity search",
		zap.Int("k", k),
		zap.Int("results", len(searchResults)),
		zap.Duration("duration", time.Since(start)),
	)

	return searchResults, nil
}
