// Package config provides configuration loading for aozorad.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Each section carries defaults suitable for local development;
// only the language-model API key has no usable default.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete aozora configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	LLM         LLMConfig         `koanf:"llm"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	Ingest      IngestConfig      `koanf:"ingest"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string `koanf:"cors_origins"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LLMConfig holds language-model client configuration.
//
// BaseURL may point at any OpenAI-compatible endpoint, including local
// inference servers.
type LLMConfig struct {
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	Timeout     Duration `koanf:"timeout"`
	MaxRetries  int      `koanf:"max_retries"`
	BaseBackoff Duration `koanf:"base_backoff"`
}

// EmbeddingsConfig holds embedding service configuration.
//
// The default targets a local TEI (Text Embeddings Inference) server; set
// BaseURL and APIKey for OpenAI's embedding API.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// VectorStoreConfig holds vector store configuration.
type VectorStoreConfig struct {
	// Provider selects the backend: "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`

	// Path is the chromem persistence directory.
	Path string `koanf:"path"`

	// Compress enables gzip compression of chromem data.
	Compress bool `koanf:"compress"`

	// QdrantURL is the Qdrant server URL (qdrant provider only).
	QdrantURL string `koanf:"qdrant_url"`

	// DocumentCollection holds indexed document chunks.
	DocumentCollection string `koanf:"document_collection"`

	// CacheCollection holds semantic-cache question/answer pairs.
	CacheCollection string `koanf:"cache_collection"`
}

// PipelineConfig holds query pipeline configuration.
type PipelineConfig struct {
	// RetrieverK is the number of chunks fetched per query.
	RetrieverK int `koanf:"retriever_k"`

	// CacheThreshold is the maximum cosine distance for a semantic
	// cache hit. Lower is stricter.
	CacheThreshold float64 `koanf:"cache_threshold"`

	// MaxConcurrent bounds simultaneous in-flight pipeline executions
	// within a batch.
	MaxConcurrent int `koanf:"max_concurrent"`

	// MaxQuestions is the maximum batch size accepted per request.
	MaxQuestions int `koanf:"max_questions"`

	// MaxQuestionLen is the maximum question length in characters.
	MaxQuestionLen int `koanf:"max_question_len"`
}

// IngestConfig holds document ingestion configuration.
type IngestConfig struct {
	ChunkSize    int      `koanf:"chunk_size"`
	ChunkOverlap int      `koanf:"chunk_overlap"`
	BatchSize    int      `koanf:"batch_size"`
	BatchPause   Duration `koanf:"batch_pause"`
	MaxRetries   int      `koanf:"max_retries"`
	BaseBackoff  Duration `koanf:"base_backoff"`
	UploadDir    string   `koanf:"upload_dir"`

	// WatchDir enables the drop-directory watcher when non-empty: PDFs
	// created there are ingested automatically.
	WatchDir string `koanf:"watch_dir"`

	// WebSource, when set, is fetched and indexed at startup.
	WebSource  string   `koanf:"web_source"`
	WebTimeout Duration `koanf:"web_timeout"`
}

// NewDefaultConfig returns a Config populated with defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8005,
			ShutdownTimeout: Duration(10 * time.Second),
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
				"http://localhost:5173",
				"http://127.0.0.1:5173",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Timeout:     Duration(30 * time.Second),
			MaxRetries:  3,
			BaseBackoff: Duration(time.Second),
		},
		Embeddings: EmbeddingsConfig{
			BaseURL: "http://localhost:8080/v1",
			Model:   "BAAI/bge-small-en-v1.5",
		},
		VectorStore: VectorStoreConfig{
			Provider:           "chromem",
			Path:               "~/.config/aozora/vectorstore",
			QdrantURL:          "http://localhost:6333",
			DocumentCollection: "rag_docs",
			CacheCollection:    "semantic_cache",
		},
		Pipeline: PipelineConfig{
			RetrieverK:     5,
			CacheThreshold: 0.2,
			MaxConcurrent:  3,
			MaxQuestions:   10,
			MaxQuestionLen: 1000,
		},
		Ingest: IngestConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			BatchSize:    100,
			BatchPause:   Duration(time.Second),
			MaxRetries:   5,
			BaseBackoff:  Duration(time.Second),
			UploadDir:    "temp_uploads",
			WebTimeout:   Duration(30 * time.Second),
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	if c.Embeddings.Model == "" {
		return fmt.Errorf("embeddings.model is required")
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("vectorstore.provider must be chromem or qdrant, got %q", c.VectorStore.Provider)
	}
	if c.VectorStore.DocumentCollection == "" || c.VectorStore.CacheCollection == "" {
		return fmt.Errorf("vectorstore collections are required")
	}
	if c.Pipeline.RetrieverK <= 0 {
		return fmt.Errorf("pipeline.retriever_k must be positive, got %d", c.Pipeline.RetrieverK)
	}
	if c.Pipeline.CacheThreshold <= 0 || c.Pipeline.CacheThreshold >= 1 {
		return fmt.Errorf("pipeline.cache_threshold must be in (0, 1), got %g", c.Pipeline.CacheThreshold)
	}
	if c.Pipeline.MaxConcurrent <= 0 {
		return fmt.Errorf("pipeline.max_concurrent must be positive, got %d", c.Pipeline.MaxConcurrent)
	}
	if c.Pipeline.MaxQuestions <= 0 {
		return fmt.Errorf("pipeline.max_questions must be positive, got %d", c.Pipeline.MaxQuestions)
	}
	if c.Pipeline.MaxQuestionLen <= 0 {
		return fmt.Errorf("pipeline.max_question_len must be positive, got %d", c.Pipeline.MaxQuestionLen)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	return nil
}
