package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"finrag/internal/adapter/storetest"
	"finrag/internal/domain"
	"finrag/internal/port"
)

func openTestStore(t *testing.T) port.VectorStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreConformance(t *testing.T) {
	storetest.Run(t, openTestStore)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")
	space := domain.EmbeddingSpace{Model: "m", Dimension: 2}

	s, err := NewBoltStore(path)
	require.NoError(t, err)
	_, err = s.EnsureCollection(ctx, "docs", space)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "docs", []port.VectorItem{
		{ID: "abcd1234_chunk_0000", Vector: []float32{1, 0}, Document: "revenue"},
	}))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	col, err := s.Collection(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, space, col.Space)
	assert.Equal(t, 1, col.Count)

	results, err := s.Search(ctx, "docs", []float32{1, 0}, 1, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "revenue", results[0].Document)
}

func TestBoltStoreSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	s, err := NewBoltStore(path)
	require.NoError(t, err)

	info, err := s.GetSchemaInfo()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, info.Version)

	require.NoError(t, s.DB().Update(func(tx *bbolt.Tx) error {
		data, _ := json.Marshal(CurrentSchemaVersion + 1)
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, data)
	}))
	require.NoError(t, s.Close())

	_, err = NewBoltStore(path)
	assert.ErrorContains(t, err, "newer version")
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 1.0, CosineDistance([]float32{1}, []float32{1, 0}))
}

func TestTopK(t *testing.T) {
	results := []port.VectorResult{
		{ID: "b", Distance: 0.2},
		{ID: "a", Distance: 0.2},
		{ID: "c", Distance: 0.1},
	}
	top := TopK(results, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "c", top[0].ID)
	assert.Equal(t, "a", top[1].ID)

	assert.Empty(t, TopK([]port.VectorResult{{ID: "x"}}, 0))
}
