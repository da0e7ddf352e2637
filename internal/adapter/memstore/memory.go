package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"finrag/internal/adapter/store"
	"finrag/internal/domain"
	"finrag/internal/port"
)

// MemoryStore keeps collections in process memory. It backs tests and the
// "memory" store backend; nothing survives a restart.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	space     domain.EmbeddingSpace
	createdAt time.Time
	items     map[string]port.VectorItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*collection)}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, name string, space domain.EmbeddingSpace) (domain.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		if c.space != space {
			return domain.Collection{}, fmt.Errorf("%w: collection %q uses %s, index uses %s", domain.ErrEmbeddingMismatch, name, c.space, space)
		}
		return c.describe(name), nil
	}

	c := &collection{space: space, createdAt: time.Now().UTC(), items: make(map[string]port.VectorItem)}
	s.collections[name] = c
	return c.describe(name), nil
}

func (s *MemoryStore) Collection(_ context.Context, name string) (domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return domain.Collection{}, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	return c.describe(name), nil
}

func (c *collection) describe(name string) domain.Collection {
	return domain.Collection{Name: name, Space: c.space, Count: len(c.items), CreatedAt: c.createdAt}
}

func (s *MemoryStore) Upsert(_ context.Context, name string, items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	for _, item := range items {
		if len(item.Vector) != c.space.Dimension {
			return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d", item.ID, c.space.Dimension, len(item.Vector))
		}
	}
	for _, item := range items {
		item.Vector = append([]float32(nil), item.Vector...)
		c.items[item.ID] = item
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, name string, query []float32, k int, filter domain.Filter) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}

	results := make([]port.VectorResult, 0, len(c.items))
	for id, item := range c.items {
		if !store.MatchesFilter(item.Document, filter) {
			continue
		}
		results = append(results, port.VectorResult{
			ID:       id,
			Document: item.Document,
			Distance: store.CosineDistance(query, item.Vector),
			Metadata: item.Metadata,
		})
	}
	return store.TopK(results, k), nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, name, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return 0, nil
	}
	n := 0
	for id := range c.items {
		if strings.HasPrefix(id, prefix) {
			delete(c.items, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *MemoryStore) ListCollections(_ context.Context) ([]domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cols := make([]domain.Collection, 0, len(s.collections))
	for name, c := range s.collections {
		cols = append(cols, c.describe(name))
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ port.VectorStore = (*MemoryStore)(nil)
