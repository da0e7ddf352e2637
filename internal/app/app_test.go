package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/config"
	"finrag/internal/adapter/embedding"
	"finrag/internal/domain"
	"finrag/internal/logger"
)

func hashConfig(backend string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimension = 64
	cfg.Store.Backend = backend
	return cfg
}

func TestOpenBoltCreatesDataDir(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(context.Background(), hashConfig("bolt"), dir, logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	_, err = os.Stat(filepath.Join(dir, ".finrag", "vectors.db"))
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingSpace{Model: "hash", Dimension: 64}, a.Index.Space())
	assert.Equal(t, "bolt "+filepath.Join(dir, ".finrag", "vectors.db"), a.StoreDescription())
}

func TestOpenMemoryWithCache(t *testing.T) {
	cfg := hashConfig("memory")
	cfg.Cache.Enabled = true

	a, err := Open(context.Background(), cfg, t.TempDir(), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	_, sources := a.Retriever.Retrieve(context.Background(), "anything", 3)
	assert.Empty(t, sources)
	assert.Equal(t, "memory", a.StoreDescription())
}

func TestCollectionDoesNotCreate(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, hashConfig("memory"), t.TempDir(), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Collection(ctx)
	require.ErrorIs(t, err, domain.ErrCollectionNotFound)
	cols, err := a.Index.Collections(ctx)
	require.NoError(t, err)
	assert.Empty(t, cols)

	_, err = a.Index.GetOrCreate(ctx, a.Config.Index.Collection)
	require.NoError(t, err)
	col, err := a.Collection(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.Config.Index.Collection, col.Name)
	assert.Zero(t, col.Count)
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(config.EmbeddingConfig{Provider: "hash", Dimension: 32})
	require.NoError(t, err)
	assert.IsType(t, &embedding.HashEmbedder{}, e)
	assert.Equal(t, 32, e.Dimension())

	e, err = NewEmbedder(config.DefaultConfig().Embedding)
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimension())

	t.Setenv("FINRAG_TEST_MISSING_KEY", "")
	_, err = NewEmbedder(config.EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", APIKeyEnv: "FINRAG_TEST_MISSING_KEY"})
	assert.Error(t, err)

	_, err = NewEmbedder(config.EmbeddingConfig{Provider: "ollama", Model: "custom-model"})
	assert.Error(t, err, "unknown models need an explicit dimension")
}
