package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"finrag/internal/domain"
)

// QueryCache is an in-process LRU of query results with a TTL. Each
// collection carries a generation counter; bumping it orphans every entry
// cached before the bump.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gens    map[string]int64
}

type cacheEntry struct {
	result     domain.QueryResult
	timestamp  time.Time
	collection string
	gen        int64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		gens:    make(map[string]int64),
	}
}

// Key derives the cache key of one query.
func Key(text string, k int, filter domain.Filter) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(k)))
	h.Write([]byte{0})
	h.Write([]byte(filter.Contains))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func entryKey(collection, key string) string {
	return collection + "\x00" + key
}

// Generation returns the collection's current generation.
func (c *QueryCache) Generation(_ context.Context, collection string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[collection], nil
}

func (c *QueryCache) Get(_ context.Context, collection, key string) (domain.QueryResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := entryKey(collection, key)
	entry, exists := c.entries[k]
	if !exists {
		return domain.QueryResult{}, false, nil
	}

	if time.Since(entry.timestamp) > c.ttl || entry.gen != c.gens[collection] {
		delete(c.entries, k)
		c.removeFromOrder(k)
		return domain.QueryResult{}, false, nil
	}

	c.moveToEnd(k)
	return entry.result, true, nil
}

// Put stores a result computed at generation gen. Results from an older
// generation are dropped.
func (c *QueryCache) Put(_ context.Context, collection, key string, gen int64, result domain.QueryResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gens[collection] {
		return nil
	}

	k := entryKey(collection, key)
	entry := &cacheEntry{
		result:     result,
		timestamp:  time.Now(),
		collection: collection,
		gen:        gen,
	}

	if _, exists := c.entries[k]; exists {
		c.entries[k] = entry
		c.moveToEnd(k)
		return nil
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[k] = entry
	c.order = append(c.order, k)
	return nil
}

// Invalidate drops every cached result for collection.
func (c *QueryCache) Invalidate(_ context.Context, collection string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[collection]++
	kept := c.order[:0]
	for _, k := range c.order {
		if c.entries[k].collection == collection {
			delete(c.entries, k)
			continue
		}
		kept = append(kept, k)
	}
	c.order = kept
	return nil
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
