package vectorstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onodera-10002/aozora/internal/logging"
	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// testEmbedder returns deterministic normalized vectors so identical texts
// embed identically.
type testEmbedder struct {
	vectorSize int
}

func (e *testEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.makeEmbedding(text)
	}
	return embeddings, nil
}

func (e *testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.makeEmbedding(text), nil
}

func (e *testEmbedder) makeEmbedding(text string) []float32 {
	embedding := make([]float32, e.vectorSize)
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	var sumSq float32
	for i := range embedding {
		embedding[i] = float32((hash+i)%100+1) / 100.0
		sumSq += embedding[i] * embedding[i]
	}
	norm := sqrt32(sumSq)
	for i := range embedding {
		embedding[i] /= norm
	}
	return embedding
}

func sqrt32(x float32) float32 {
	z := x / 2
	for i := 0; i < 12; i++ {
		z = (z + x/z) / 2
	}
	return z
}

func newTestStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()

	db, err := vectorstore.NewChromemDB(vectorstore.ChromemConfig{
		Path: t.TempDir(),
	}, &testEmbedder{vectorSize: 64}, logging.NewNop())
	require.NoError(t, err)

	store, err := db.Collection("test_docs")
	require.NoError(t, err)
	return store
}

func TestNewChromemDB_RequiresEmbedder(t *testing.T) {
	_, err := vectorstore.NewChromemDB(vectorstore.ChromemConfig{Path: t.TempDir()}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestChromemStore_AddAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.AddDocuments(ctx, []vectorstore.Document{
		{Content: "the moon orbits the earth", Metadata: map[string]any{"source_file": "astro.pdf", "page_info": 3}},
		{Content: "go is a compiled language"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	for _, id := range ids {
		assert.NotEmpty(t, id)
	}

	docs, err := store.Search(ctx, "the moon orbits the earth", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "the moon orbits the earth", docs[0].Content)

	// Metadata survives the string-payload round trip.
	assert.Equal(t, "astro.pdf", docs[0].Metadata["source_file"])
	assert.Equal(t, "3", docs[0].Metadata["page_info"])
}

func TestChromemStore_SearchWithScore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{Content: "semantic caching for chat answers"},
	})
	require.NoError(t, err)

	results, err := store.SearchWithScore(ctx, "semantic caching for chat answers", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Identical text embeds identically; distance is near zero.
	assert.InDelta(t, 0.0, float64(results[0].Distance), 1e-4)
}

func TestChromemStore_EmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.SearchWithScore(context.Background(), "anything", 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_KCappedAtCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []vectorstore.Document{{Content: "only one"}})
	require.NoError(t, err)

	docs, err := store.Search(ctx, "only one", 5)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestChromemStore_InvalidInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)

	_, err = store.Search(ctx, "", 5)
	assert.Error(t, err)

	_, err = store.Search(ctx, "query", 0)
	assert.Error(t, err)
}
