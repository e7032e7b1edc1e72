package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "9020", cfg.Port)
	assert.Equal(t, 512, cfg.LatencyWindowSize)
	assert.Equal(t, "voyage-large-2", cfg.Embedder.Model)
	assert.Equal(t, 30, cfg.Retrieval.SearchLimit)
	assert.InDelta(t, 0.30, cfg.Retrieval.SimilarityThreshold, 1e-9)
	assert.Equal(t, 2048, cfg.Cache.MaxEntries)
	assert.False(t, cfg.EnableOTel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("RETRIEVAL_SEARCH_LIMIT", "50")
	t.Setenv("RERANK_WEIGHT_SIMILARITY", "0.9")
	t.Setenv("ENABLE_OTEL", "true")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 50, cfg.Retrieval.SearchLimit)
	assert.InDelta(t, 0.9, cfg.Retrieval.WeightSimilarity, 1e-9)
	assert.True(t, cfg.EnableOTel)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("RETRIEVAL_SEARCH_LIMIT", "lots")
	t.Setenv("ENABLE_OTEL", "maybe")

	cfg := Load()

	assert.Equal(t, 30, cfg.Retrieval.SearchLimit)
	assert.False(t, cfg.EnableOTel)
}

func TestGetSecret_FileFallback(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(secretFile, []byte("s3cret\n"), 0o600))

	t.Setenv("DB_PASSWORD_FILE", secretFile)
	os.Unsetenv("DB_PASSWORD")

	cfg := Load()
	assert.Equal(t, "s3cret", cfg.DB.Password)
}

func TestGetSecret_EnvBeatsFile(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(secretFile, []byte("from-file"), 0o600))

	t.Setenv("DB_PASSWORD_FILE", secretFile)
	t.Setenv("DB_PASSWORD", "from-env")

	cfg := Load()
	assert.Equal(t, "from-env", cfg.DB.Password)
}
