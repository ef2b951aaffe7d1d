package bot

import (
	"context"

	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/logging"
	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// DefaultRetrieverK is the number of documents fetched per query.
const DefaultRetrieverK = 5

// Retriever fetches candidate context documents for a query. Retrieval
// failures degrade to an empty result set rather than failing the
// pipeline; the synthesizer handles the empty case.
type Retriever struct {
	store   vectorstore.Store
	k       int
	metrics *Metrics
	logger  *logging.Logger
}

// NewRetriever builds a retriever over the document index. A non-positive
// k falls back to DefaultRetrieverK.
func NewRetriever(store vectorstore.Store, k int, metrics *Metrics, logger *logging.Logger) *Retriever {
	if k <= 0 {
		k = DefaultRetrieverK
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Retriever{
		store:   store,
		k:       k,
		metrics: metrics,
		logger:  logger.Named("retriever"),
	}
}

// Retrieve returns up to k documents ranked by similarity to the query.
// On failure it logs, records the failure, and returns nil.
func (r *Retriever) Retrieve(ctx context.Context, query string) []vectorstore.Document {
	docs, err := r.store.Search(ctx, query, r.k)
	if err != nil {
		r.logger.Warn(ctx, "retrieval failed, continuing with empty context", zap.Error(err))
		if r.metrics != nil {
			r.metrics.RetrievalFailures.Inc()
		}
		return nil
	}
	r.logger.Debug(ctx, "retrieved documents", zap.Int("count", len(docs)))
	return docs
}
