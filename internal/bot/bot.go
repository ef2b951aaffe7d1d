package bot

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/llm"
	"github.com/onodera-10002/aozora/internal/logging"
	"github.com/onodera-10002/aozora/internal/vectorstore"
)

var botTracer = otel.Tracer("aozora.bot")

// DefaultMaxConcurrent bounds in-flight questions per batch.
const DefaultMaxConcurrent = 3

// DefaultMaxQuestionLen bounds question length in runes.
const DefaultMaxQuestionLen = 1000

// Config holds pipeline tuning knobs. The zero value takes defaults.
type Config struct {
	// RetrieverK is the number of documents fetched per query.
	RetrieverK int

	// CacheThreshold is the maximum cosine distance for a cache hit.
	CacheThreshold float64

	// MaxConcurrent bounds in-flight questions per batch.
	MaxConcurrent int

	// MaxQuestionLen bounds question length in runes.
	MaxQuestionLen int

	// HydeTemplate overrides the query-expansion prompt when non-empty.
	HydeTemplate string

	// AnswerTemplate overrides the answer prompt when non-empty.
	AnswerTemplate string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.RetrieverK <= 0 {
		c.RetrieverK = DefaultRetrieverK
	}
	if c.CacheThreshold <= 0 {
		c.CacheThreshold = DefaultCacheThreshold
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.MaxQuestionLen <= 0 {
		c.MaxQuestionLen = DefaultMaxQuestionLen
	}
}

// Bot runs the question-answering pipeline: semantic cache check, query
// expansion, retrieval, synthesis, cache write-back.
type Bot struct {
	config      Config
	cache       *SemanticCache
	expander    *QueryExpander
	retriever   *Retriever
	synthesizer *Synthesizer
	metrics     *Metrics
	logger      *logging.Logger
}

// New wires the pipeline. docsStore indexes corpus chunks; cacheStore is
// the cache's dedicated index. metrics may be nil.
func New(cfg Config, client llm.Client, docsStore, cacheStore vectorstore.Store, metrics *Metrics, logger *logging.Logger) *Bot {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("bot")
	return &Bot{
		config:      cfg,
		cache:       NewSemanticCache(cacheStore, cfg.CacheThreshold, logger),
		expander:    NewQueryExpander(client, cfg.HydeTemplate, logger),
		retriever:   NewRetriever(docsStore, cfg.RetrieverK, metrics, logger),
		synthesizer: NewSynthesizer(client, cfg.AnswerTemplate, logger),
		metrics:     metrics,
		logger:      logger,
	}
}

// Run answers one question through the full pipeline.
//
// A cache hit returns the cached answer with empty sources and skips the
// model entirely. On a miss the query is expanded, documents retrieved,
// and the answer synthesized; the pair is cached only when context was
// actually retrieved, so fallback answers never poison the cache.
func (b *Bot) Run(ctx context.Context, question string) (ChatResponse, error) {
	ctx, span := botTracer.Start(ctx, "bot.run")
	defer span.End()

	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if err := ValidateQuestion(question, b.config.MaxQuestionLen); err != nil {
		return ChatResponse{}, err
	}

	if answer, ok := b.cache.Check(ctx, question); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		if b.metrics != nil {
			b.metrics.CacheHits.Inc()
		}
		b.logger.Info(ctx, "answered from cache")
		return ChatResponse{Answer: answer, Sources: []SourceInfo{}}, nil
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))
	if b.metrics != nil {
		b.metrics.CacheMisses.Inc()
	}

	state := &pipelineState{question: question}

	expanded, err := b.timedStage(ctx, "hyde", func(ctx context.Context) (string, error) {
		return b.expander.Expand(ctx, state.question)
	})
	if err != nil {
		return ChatResponse{}, err
	}
	state.expandedQuery = expanded

	state.retrieved, _ = b.timedStageDocs(ctx, "retrieve", func(ctx context.Context) ([]vectorstore.Document, error) {
		return b.retriever.Retrieve(ctx, state.expandedQuery), nil
	})

	answer, generated, err := b.synthesizeStage(ctx, state)
	if err != nil {
		return ChatResponse{}, err
	}
	state.answer = answer

	if generated && len(state.retrieved) > 0 {
		if err := b.cache.Store(ctx, state.question, state.answer); err != nil {
			// Cache writes are advisory; the answer still stands.
			b.logger.Warn(ctx, "cache store failed", zap.Error(err))
			if b.metrics != nil {
				b.metrics.CacheStoreFailures.Inc()
			}
		}
	}

	sources := []SourceInfo{}
	if generated {
		sources = sourcesFromDocs(state.retrieved)
	}
	return ChatResponse{Answer: state.answer, Sources: sources}, nil
}

// timedStage runs a string-producing stage under a span and a duration
// observation.
func (b *Bot) timedStage(ctx context.Context, stage string, fn func(context.Context) (string, error)) (string, error) {
	ctx, span := botTracer.Start(ctx, "bot."+stage)
	defer span.End()
	defer b.observeStage(stage, time.Now())
	return fn(ctx)
}

// timedStageDocs is timedStage for document-producing stages.
func (b *Bot) timedStageDocs(ctx context.Context, stage string, fn func(context.Context) ([]vectorstore.Document, error)) ([]vectorstore.Document, error) {
	ctx, span := botTracer.Start(ctx, "bot."+stage)
	defer span.End()
	defer b.observeStage(stage, time.Now())
	return fn(ctx)
}

func (b *Bot) synthesizeStage(ctx context.Context, state *pipelineState) (string, bool, error) {
	ctx, span := botTracer.Start(ctx, "bot.synthesize", trace.WithAttributes(
		attribute.Int("retrieved", len(state.retrieved)),
	))
	defer span.End()
	defer b.observeStage("synthesize", time.Now())
	return b.synthesizer.Synthesize(ctx, state.question, state.retrieved)
}

func (b *Bot) observeStage(stage string, start time.Time) {
	if b.metrics != nil {
		b.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
