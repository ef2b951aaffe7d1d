package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// fakeLLM scripts model responses and tracks call concurrency.
type fakeLLM struct {
	invoke func(prompt string) (string, error)

	calls       atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (f *fakeLLM) Invoke(_ context.Context, prompt string) (string, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	f.calls.Add(1)
	if f.invoke != nil {
		return f.invoke(prompt)
	}
	return "generated: " + prompt, nil
}

// fakeStore scripts search results and records insertions.
type fakeStore struct {
	mu    sync.Mutex
	added []vectorstore.Document

	searchFn func(query string, k int) ([]vectorstore.Document, error)
	scoreFn  func(query string, k int) ([]vectorstore.SearchResult, error)
	addErr   error
}

func (s *fakeStore) AddDocuments(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return nil, s.addErr
	}
	s.added = append(s.added, docs...)
	ids := make([]string, len(docs))
	return ids, nil
}

func (s *fakeStore) Search(_ context.Context, query string, k int) ([]vectorstore.Document, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(query, k)
}

func (s *fakeStore) SearchWithScore(_ context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	if s.scoreFn == nil {
		return nil, nil
	}
	return s.scoreFn(query, k)
}

func (s *fakeStore) addedDocs() []vectorstore.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]vectorstore.Document(nil), s.added...)
}

// passthroughTemplates makes the fake model receive the bare question as
// its prompt in both stages, so assertions can key answers off questions.
func passthroughTemplates(cfg *Config) {
	cfg.HydeTemplate = "{{.question}}"
	cfg.AnswerTemplate = "{{.question}}"
}

func newTestBot(t *testing.T, cfg Config, client *fakeLLM, docs, cache *fakeStore) *Bot {
	t.Helper()
	return New(cfg, client, docs, cache, nil, nil)
}

func TestRunFullPipeline(t *testing.T) {
	client := &fakeLLM{invoke: func(prompt string) (string, error) {
		return "answer to " + prompt, nil
	}}
	docs := &fakeStore{searchFn: func(query string, k int) ([]vectorstore.Document, error) {
		assert.Equal(t, 5, k)
		return []vectorstore.Document{
			{Content: "chunk one", Metadata: map[string]any{
				"user_title": "Rashomon", "source_file": "rashomon.pdf", "page_info": "3",
			}},
			{Content: "chunk two", Metadata: map[string]any{
				"source_file": "rashomon.pdf", "page_info": "4",
			}},
		}, nil
	}}
	cache := &fakeStore{}

	var cfg Config
	passthroughTemplates(&cfg)
	b := newTestBot(t, cfg, client, docs, cache)

	resp, err := b.Run(context.Background(), "what happens under the gate?")
	require.NoError(t, err)

	// Two model calls: expansion then synthesis.
	assert.Equal(t, int64(2), client.calls.Load())
	assert.Equal(t, "answer to what happens under the gate?", resp.Answer)

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, SourceInfo{Title: "Rashomon", URL: "/files/rashomon.pdf", Page: 3}, resp.Sources[0])
	assert.Equal(t, SourceInfo{URL: "/files/rashomon.pdf", Page: 4}, resp.Sources[1])

	// The answer was cached under the original question.
	added := cache.addedDocs()
	require.Len(t, added, 1)
	assert.Equal(t, "what happens under the gate?", added[0].Content)
	assert.Equal(t, "answer to what happens under the gate?", added[0].Metadata["answer"])
}

func TestRunCacheHitShortCircuits(t *testing.T) {
	client := &fakeLLM{}
	docs := &fakeStore{searchFn: func(string, int) ([]vectorstore.Document, error) {
		t.Fatal("document search must not run on a cache hit")
		return nil, nil
	}}
	cache := &fakeStore{scoreFn: func(string, int) ([]vectorstore.SearchResult, error) {
		return []vectorstore.SearchResult{{
			Document: vectorstore.Document{
				Content:  "similar question",
				Metadata: map[string]any{"answer": "cached answer"},
			},
			Distance: 0.1,
		}}, nil
	}}

	b := newTestBot(t, Config{}, client, docs, cache)
	resp, err := b.Run(context.Background(), "a near-duplicate question")
	require.NoError(t, err)

	assert.Equal(t, "cached answer", resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, client.calls.Load(), "model must not be invoked on a hit")
	assert.Empty(t, cache.addedDocs(), "hits must not re-cache")
}

func TestRunEmptyContextFallback(t *testing.T) {
	client := &fakeLLM{}
	docs := &fakeStore{searchFn: func(string, int) ([]vectorstore.Document, error) {
		return nil, nil
	}}
	cache := &fakeStore{}

	var cfg Config
	passthroughTemplates(&cfg)
	b := newTestBot(t, cfg, client, docs, cache)

	resp, err := b.Run(context.Background(), "unanswerable question")
	require.NoError(t, err)

	assert.Equal(t, FallbackAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, int64(1), client.calls.Load(), "only the expansion call may run")
	assert.Empty(t, cache.addedDocs(), "fallback answers must not be cached")
}

func TestRunRetrievalFailureDegrades(t *testing.T) {
	client := &fakeLLM{}
	docs := &fakeStore{searchFn: func(string, int) ([]vectorstore.Document, error) {
		return nil, errors.New("index unavailable")
	}}
	cache := &fakeStore{}

	var cfg Config
	passthroughTemplates(&cfg)
	b := newTestBot(t, cfg, client, docs, cache)

	resp, err := b.Run(context.Background(), "any question")
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, resp.Answer)
	assert.Empty(t, cache.addedDocs())
}

func TestRunGenerationFailurePropagates(t *testing.T) {
	genErr := errors.New("model exploded")
	client := &fakeLLM{invoke: func(string) (string, error) {
		return "", genErr
	}}
	b := newTestBot(t, Config{}, client, &fakeStore{}, &fakeStore{})

	_, err := b.Run(context.Background(), "any question")
	require.Error(t, err)
	assert.ErrorIs(t, err, genErr)
}

func TestRunCacheStoreFailureIsNonFatal(t *testing.T) {
	client := &fakeLLM{}
	docs := &fakeStore{searchFn: func(string, int) ([]vectorstore.Document, error) {
		return []vectorstore.Document{{Content: "chunk"}}, nil
	}}
	cache := &fakeStore{addErr: errors.New("cache index full")}

	var cfg Config
	passthroughTemplates(&cfg)
	b := newTestBot(t, cfg, client, docs, cache)

	resp, err := b.Run(context.Background(), "any question")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Answer)
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name     string
		question string
	}{
		{name: "empty", question: ""},
		{name: "whitespace only", question: "  \t\n "},
		{name: "over length limit", question: strings.Repeat("a", 1001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeLLM{}
			cache := &fakeStore{scoreFn: func(string, int) ([]vectorstore.SearchResult, error) {
				t.Fatal("cache must not be consulted for invalid input")
				return nil, nil
			}}
			b := newTestBot(t, Config{}, client, &fakeStore{}, cache)

			_, err := b.Run(context.Background(), tt.question)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Zero(t, client.calls.Load())
		})
	}
}

func TestRunBatchPreservesOrder(t *testing.T) {
	// The first questions sleep longest so completion order is the
	// reverse of submission order.
	questions := []string{"q1", "q2", "q3", "q4", "q5"}
	client := &fakeLLM{invoke: func(prompt string) (string, error) {
		switch prompt {
		case "q1":
			time.Sleep(40 * time.Millisecond)
		case "q2":
			time.Sleep(20 * time.Millisecond)
		}
		return "answer for " + prompt, nil
	}}
	docs := &fakeStore{searchFn: func(string, int) ([]vectorstore.Document, error) {
		return []vectorstore.Document{{Content: "chunk"}}, nil
	}}

	var cfg Config
	cfg.MaxConcurrent = 5
	passthroughTemplates(&cfg)
	b := newTestBot(t, cfg, client, docs, &fakeStore{})

	results := b.RunBatch(context.Background(), questions)
	require.Len(t, results, len(questions))
	for i, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, questions[i], res.Question)
		assert.Equal(t, "answer for "+questions[i], res.Response.Answer)
	}
}

func TestRunBatchBoundsConcurrency(t *testing.T) {
	client := &fakeLLM{invoke: func(prompt string) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	}}
	docs := &fakeStore{searchFn: func(string, int) ([]vectorstore.Document, error) {
		return []vectorstore.Document{{Content: "chunk"}}, nil
	}}

	cfg := Config{MaxConcurrent: 2}
	passthroughTemplates(&cfg)
	b := newTestBot(t, cfg, client, docs, &fakeStore{})

	questions := make([]string, 8)
	for i := range questions {
		questions[i] = fmt.Sprintf("question %d", i)
	}
	results := b.RunBatch(context.Background(), questions)
	require.Len(t, results, 8)
	assert.LessOrEqual(t, client.maxInFlight.Load(), int64(2))
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	client := &fakeLLM{invoke: func(prompt string) (string, error) {
		if prompt == "poison" {
			return "", errors.New("model exploded")
		}
		return "answer for " + prompt, nil
	}}
	docs := &fakeStore{searchFn: func(string, int) ([]vectorstore.Document, error) {
		return []vectorstore.Document{{Content: "chunk"}}, nil
	}}

	var cfg Config
	passthroughTemplates(&cfg)
	b := newTestBot(t, cfg, client, docs, &fakeStore{})

	results := b.RunBatch(context.Background(), []string{"fine", "poison", "also fine"})
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.Equal(t, "answer for fine", results[0].Response.Answer)

	require.Error(t, results[1].Err)

	require.NoError(t, results[2].Err)
	assert.Equal(t, "answer for also fine", results[2].Response.Answer)
}
