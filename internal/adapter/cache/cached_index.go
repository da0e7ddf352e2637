package cache

import (
	"context"
	"log/slog"

	"finrag/internal/domain"
	"finrag/internal/port"
)

// Backend stores query results per collection.
type Backend interface {
	// Generation changes on every Invalidate of the collection.
	Generation(ctx context.Context, collection string) (int64, error)
	Get(ctx context.Context, collection, key string) (domain.QueryResult, bool, error)
	// Put stores a result computed while the collection was at generation
	// gen. It must not store anything once the generation has moved on.
	Put(ctx context.Context, collection, key string, gen int64, result domain.QueryResult) error
	Invalidate(ctx context.Context, collection string) error
}

// CachedIndex serves repeated queries from a Backend and invalidates a
// collection on every write to it. Cache failures are logged and bypassed.
type CachedIndex struct {
	port.VectorIndex
	cache  Backend
	logger *slog.Logger
}

func NewCachedIndex(index port.VectorIndex, cache Backend, logger *slog.Logger) *CachedIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedIndex{VectorIndex: index, cache: cache, logger: logger}
}

func (c *CachedIndex) Query(ctx context.Context, collection, text string, k int, filter domain.Filter) (domain.QueryResult, error) {
	key := Key(text, k, filter)

	// The generation is read before the index so a write racing this query
	// leaves the result uncached.
	gen, err := c.cache.Generation(ctx, collection)
	if err != nil {
		c.logger.Warn("query cache read failed", "collection", collection, "error", err)
		return c.VectorIndex.Query(ctx, collection, text, k, filter)
	}

	result, hit, err := c.cache.Get(ctx, collection, key)
	if err != nil {
		c.logger.Warn("query cache read failed", "collection", collection, "error", err)
	} else if hit {
		c.logger.Debug("query cache hit", "collection", collection)
		return result, nil
	}

	result, err = c.VectorIndex.Query(ctx, collection, text, k, filter)
	if err != nil {
		return result, err
	}

	if err := c.cache.Put(ctx, collection, key, gen, result); err != nil {
		c.logger.Warn("query cache write failed", "collection", collection, "error", err)
	}
	return result, nil
}

func (c *CachedIndex) Add(ctx context.Context, collection string, chunks []domain.Chunk) error {
	defer c.invalidate(ctx, collection)
	return c.VectorIndex.Add(ctx, collection, chunks)
}

func (c *CachedIndex) DeleteDocument(ctx context.Context, collection, docHash string) (int, error) {
	defer c.invalidate(ctx, collection)
	return c.VectorIndex.DeleteDocument(ctx, collection, docHash)
}

func (c *CachedIndex) Replace(ctx context.Context, collection, docHash string, chunks []domain.Chunk) (int, error) {
	defer c.invalidate(ctx, collection)
	return c.VectorIndex.Replace(ctx, collection, docHash, chunks)
}

func (c *CachedIndex) Delete(ctx context.Context, collection string) error {
	defer c.invalidate(ctx, collection)
	return c.VectorIndex.Delete(ctx, collection)
}

func (c *CachedIndex) invalidate(ctx context.Context, collection string) {
	if err := c.cache.Invalidate(ctx, collection); err != nil {
		c.logger.Warn("query cache invalidation failed", "collection", collection, "error", err)
	}
}

var _ port.VectorIndex = (*CachedIndex)(nil)
