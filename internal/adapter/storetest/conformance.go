// Package storetest holds the behaviour every port.VectorStore must share.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/domain"
	"finrag/internal/port"
)

var space = domain.EmbeddingSpace{Model: "test-embed", Dimension: 3}

func item(id, doc string, v ...float32) port.VectorItem {
	return port.VectorItem{ID: id, Vector: v, Document: doc, Metadata: map[string]string{"source": doc}}
}

// Run exercises a fresh store returned by open. open is called once per subtest.
func Run(t *testing.T, open func(t *testing.T) port.VectorStore) {
	ctx := context.Background()

	t.Run("EnsureCollectionIsIdempotent", func(t *testing.T) {
		s := open(t)
		a, err := s.EnsureCollection(ctx, "docs", space)
		require.NoError(t, err)
		b, err := s.EnsureCollection(ctx, "docs", space)
		require.NoError(t, err)
		assert.Equal(t, a.Space, b.Space)
		assert.Equal(t, "docs", b.Name)
	})

	t.Run("EmbeddingMismatch", func(t *testing.T) {
		s := open(t)
		_, err := s.EnsureCollection(ctx, "docs", space)
		require.NoError(t, err)

		_, err = s.EnsureCollection(ctx, "docs", domain.EmbeddingSpace{Model: "other", Dimension: 3})
		assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
		_, err = s.EnsureCollection(ctx, "docs", domain.EmbeddingSpace{Model: "test-embed", Dimension: 4})
		assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
	})

	t.Run("MissingCollection", func(t *testing.T) {
		s := open(t)
		_, err := s.Collection(ctx, "absent")
		assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
		_, err = s.Search(ctx, "absent", []float32{1, 0, 0}, 3, domain.Filter{})
		assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
		n, err := s.DeletePrefix(ctx, "absent", "x")
		assert.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, s.DropCollection(ctx, "absent"))
	})

	t.Run("SearchRanksByCosineDistance", func(t *testing.T) {
		s := open(t)
		_, err := s.EnsureCollection(ctx, "docs", space)
		require.NoError(t, err)
		require.NoError(t, s.Upsert(ctx, "docs", []port.VectorItem{
			item("c", "far", 0, 0, 1),
			item("a", "near", 1, 0.1, 0),
			item("b", "mid", 1, 1, 0),
		}))

		results, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 2, domain.Filter{})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
		assert.Equal(t, "near", results[0].Document)
		assert.Equal(t, "near", results[0].Metadata["source"])
		assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
		assert.InDelta(t, 1-0.70710678, results[1].Distance, 1e-4)

		all, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 10, domain.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("SearchTiesBrokenByID", func(t *testing.T) {
		s := open(t)
		_, err := s.EnsureCollection(ctx, "docs", space)
		require.NoError(t, err)
		require.NoError(t, s.Upsert(ctx, "docs", []port.VectorItem{
			item("z", "same", 1, 0, 0),
			item("m", "same", 2, 0, 0),
			item("a", "same", 3, 0, 0),
		}))

		results, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 3, domain.Filter{})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, []string{"a", "m", "z"}, []string{results[0].ID, results[1].ID, results[2].ID})
	})

	t.Run("SearchFilter", func(t *testing.T) {
		s := open(t)
		_, err := s.EnsureCollection(ctx, "docs", space)
		require.NoError(t, err)
		require.NoError(t, s.Upsert(ctx, "docs", []port.VectorItem{
			item("a", "net income rose", 1, 0, 0),
			item("b", "EPS was 6.13", 0, 1, 0),
		}))

		results, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 5, domain.Filter{Contains: "EPS"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "b", results[0].ID)
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		s := open(t)
		_, err := s.EnsureCollection(ctx, "docs", space)
		require.NoError(t, err)
		require.NoError(t, s.Upsert(ctx, "docs", []port.VectorItem{item("a", "old", 1, 0, 0)}))
		require.NoError(t, s.Upsert(ctx, "docs", []port.VectorItem{item("a", "new", 1, 0, 0)}))

		col, err := s.Collection(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 1, col.Count)

		results, err := s.Search(ctx, "docs", []float32{1, 0, 0}, 1, domain.Filter{})
		require.NoError(t, err)
		assert.Equal(t, "new", results[0].Document)
	})

	t.Run("UpsertWrongDimension", func(t *testing.T) {
		s := open(t)
		_, err := s.EnsureCollection(ctx, "docs", space)
		require.NoError(t, err)
		assert.Error(t, s.Upsert(ctx, "docs", []port.VectorItem{item("a", "x", 1, 0)}))
	})

	t.Run("DeletePrefix", func(t *testing.T) {
		s := open(t)
		_, err := s.EnsureCollection(ctx, "docs", space)
		require.NoError(t, err)
		var items []port.VectorItem
		for i := 0; i < 5; i++ {
			items = append(items, item(fmt.Sprintf("aaaa0000_chunk_%04d", i), "a", 1, 0, 0))
		}
		items = append(items, item("aaaa0001_chunk_0000", "b", 0, 1, 0))
		require.NoError(t, s.Upsert(ctx, "docs", items))

		n, err := s.DeletePrefix(ctx, "docs", "aaaa0000_chunk_")
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		col, err := s.Collection(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 1, col.Count)
	})

	t.Run("DropAndList", func(t *testing.T) {
		s := open(t)
		_, err := s.EnsureCollection(ctx, "b", space)
		require.NoError(t, err)
		_, err = s.EnsureCollection(ctx, "a", space)
		require.NoError(t, err)

		cols, err := s.ListCollections(ctx)
		require.NoError(t, err)
		require.Len(t, cols, 2)
		assert.Equal(t, "a", cols[0].Name)
		assert.Equal(t, "b", cols[1].Name)

		require.NoError(t, s.DropCollection(ctx, "a"))
		require.NoError(t, s.DropCollection(ctx, "a"))
		_, err = s.Collection(ctx, "a")
		assert.ErrorIs(t, err, domain.ErrCollectionNotFound)

		cols, err = s.ListCollections(ctx)
		require.NoError(t, err)
		assert.Len(t, cols, 1)
	})
}
