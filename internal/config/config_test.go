package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 8005, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "rag_docs", cfg.VectorStore.DocumentCollection)
	assert.Equal(t, "semantic_cache", cfg.VectorStore.CacheCollection)
	assert.Equal(t, 5, cfg.Pipeline.RetrieverK)
	assert.InDelta(t, 0.2, cfg.Pipeline.CacheThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, 10, cfg.Pipeline.MaxQuestions)
	assert.Equal(t, 1000, cfg.Pipeline.MaxQuestionLen)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout.Duration())
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 100, cfg.Ingest.BatchSize)

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "missing llm model",
			mutate:  func(c *Config) { c.LLM.Model = "" },
			wantErr: "llm.model",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.VectorStore.Provider = "pinecone" },
			wantErr: "vectorstore.provider",
		},
		{
			name:    "zero retriever k",
			mutate:  func(c *Config) { c.Pipeline.RetrieverK = 0 },
			wantErr: "retriever_k",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Pipeline.CacheThreshold = 1.5 },
			wantErr: "cache_threshold",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Pipeline.MaxConcurrent = 0 },
			wantErr: "max_concurrent",
		},
		{
			name:    "overlap exceeds chunk size",
			mutate:  func(c *Config) { c.Ingest.ChunkOverlap = 5000 },
			wantErr: "chunk_overlap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("45s")))
	assert.Equal(t, 45*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("bogus")))
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-very-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-very-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "very-secret")

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}
