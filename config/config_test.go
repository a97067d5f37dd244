package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "8088", cfg.Port)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
	assert.Equal(t, "Lesson_", cfg.VectorStore.CollectionPrefix)
	assert.Equal(t, 5, cfg.VectorStore.MaxFailures)
	assert.Equal(t, 5, cfg.Retrieval.DefaultTopK)
	assert.Equal(t, 10, cfg.Retrieval.MaxTopK)
	assert.InDelta(t, 0.3, cfg.Retrieval.MinSimilarityScore, 1e-9)
	assert.Equal(t, 1000, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.True(t, cfg.Chunking.SplitOnSentences)
	assert.Equal(t, 3, cfg.Download.MaxRetries)
	assert.True(t, cfg.Download.Parallel)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
port: "9999"
retrieval:
  max_top_k: 20
chunking:
  split_on_sentences: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 20, cfg.Retrieval.MaxTopK)
	assert.False(t, cfg.Chunking.SplitOnSentences)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.Retrieval.DefaultTopK)
	assert.Equal(t, 1000, cfg.Chunking.MaxChunkSize)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvAPIKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"8088\"\n"), 0o644))

	t.Setenv("EMBEDDING_API_KEY", "emb-secret")
	t.Setenv("WEAVIATE_APIKEY", "wv-secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "emb-secret", cfg.Embedding.APIKey)
	assert.Equal(t, "wv-secret", cfg.VectorStore.APIKey)
}
