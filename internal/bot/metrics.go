package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds pipeline instrumentation.
type Metrics struct {
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheStoreFailures prometheus.Counter
	RetrievalFailures  prometheus.Counter
	PipelineDuration   prometheus.Histogram
	StageDuration      *prometheus.HistogramVec
}

// NewMetrics creates pipeline metrics registered with reg. A nil registerer
// yields unregistered collectors, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "aozora_cache_hits_total",
			Help: "Semantic cache hits; the pipeline was short-circuited.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "aozora_cache_misses_total",
			Help: "Semantic cache misses; the full pipeline ran.",
		}),
		CacheStoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "aozora_cache_store_failures_total",
			Help: "Failed semantic cache insertions (non-fatal).",
		}),
		RetrievalFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "aozora_retrieval_failures_total",
			Help: "Similarity-search failures degraded to empty context.",
		}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aozora_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration per question, cache hits included.",
			Buckets: prometheus.DefBuckets,
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aozora_stage_duration_seconds",
			Help:    "Pipeline stage duration by stage (hyde, retrieve, synthesize).",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}
