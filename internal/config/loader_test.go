package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Point at a file that does not exist; defaults should apply.
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8005, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
pipeline:
  retriever_k: 8
  cache_threshold: 0.35
llm:
  timeout: 90s
  api_key: sk-test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Pipeline.RetrieverK)
	assert.InDelta(t, 0.35, cfg.Pipeline.CacheThreshold, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout.Duration())
	assert.Equal(t, "sk-test", cfg.LLM.APIKey.Value())

	// Untouched sections keep defaults.
	assert.Equal(t, 3, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, "rag_docs", cfg.VectorStore.DocumentCollection)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9000\n")

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("PIPELINE_MAX_CONCURRENT", "7")
	t.Setenv("LLM_MODEL", "gpt-4o")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestLoad_RejectsWorldReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := writeConfigFile(t, "pipeline:\n  cache_threshold: 2.0\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache_threshold")
}

func TestEnvToKey(t *testing.T) {
	assert.Equal(t, "server.port", envToKey("SERVER_PORT"))
	assert.Equal(t, "llm.api_key", envToKey("LLM_API_KEY"))
	assert.Equal(t, "vectorstore.document_collection", envToKey("VECTORSTORE_DOCUMENT_COLLECTION"))
	assert.Equal(t, "pipeline.max_question_len", envToKey("PIPELINE_MAX_QUESTION_LEN"))
	assert.Equal(t, "term", envToKey("TERM"))
}
