package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/logging"
	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// DefaultCacheThreshold is the maximum cosine distance for a cache hit.
const DefaultCacheThreshold = 0.2

// SemanticCache short-circuits the pipeline when a near-duplicate question
// was answered before.
//
// Entries are append-only: Store never deduplicates, so repeated
// near-identical questions accumulate rows over time. The check-then-store
// sequence is not atomic; two concurrent identical questions may both miss
// and both insert. The cache is advisory, so this race is accepted rather
// than locked away.
type SemanticCache struct {
	store     vectorstore.Store
	threshold float32
	logger    *logging.Logger
}

// NewSemanticCache creates a cache over its own dedicated index.
// A non-positive threshold falls back to DefaultCacheThreshold.
func NewSemanticCache(store vectorstore.Store, threshold float64, logger *logging.Logger) *SemanticCache {
	if threshold <= 0 {
		threshold = DefaultCacheThreshold
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SemanticCache{
		store:     store,
		threshold: float32(threshold),
		logger:    logger.Named("cache"),
	}
}

// Check looks up the nearest cached question. It returns the stored answer
// and true when the distance falls below the threshold. Lookup failures
// degrade to a miss.
func (c *SemanticCache) Check(ctx context.Context, query string) (string, bool) {
	results, err := c.store.SearchWithScore(ctx, query, 1)
	if err != nil {
		c.logger.Warn(ctx, "cache lookup failed, treating as miss", zap.Error(err))
		return "", false
	}
	if len(results) == 0 {
		return "", false
	}

	best := results[0]
	if best.Distance >= c.threshold {
		return "", false
	}

	answer := metaString(best.Metadata, metaAnswer)
	if answer == "" {
		return "", false
	}

	c.logger.Debug(ctx, "cache hit",
		zap.Float32("distance", best.Distance),
		zap.Float32("threshold", c.threshold),
	)
	return answer, true
}

// Store inserts a question/answer pair unconditionally.
func (c *SemanticCache) Store(ctx context.Context, question, answer string) error {
	_, err := c.store.AddDocuments(ctx, []vectorstore.Document{{
		Content:  question,
		Metadata: map[string]any{metaAnswer: answer},
	}})
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}
