package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/domain"
	"finrag/internal/logger"
)

func result(ids ...string) domain.QueryResult {
	var r domain.QueryResult
	for _, id := range ids {
		r.Matches = append(r.Matches, domain.Match{ID: id, Text: "text " + id})
	}
	return r
}

func TestQueryCacheHitAndMiss(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, time.Minute)

	_, hit, err := c.Get(ctx, "docs", "k1")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Put(ctx, "docs", "k1", 0, result("a")))
	got, hit, err := c.Get(ctx, "docs", "k1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, result("a"), got)

	_, hit, _ = c.Get(ctx, "other", "k1")
	assert.False(t, hit)
}

func TestQueryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(2, time.Minute)

	require.NoError(t, c.Put(ctx, "docs", "a", 0, result("a")))
	require.NoError(t, c.Put(ctx, "docs", "b", 0, result("b")))
	_, _, _ = c.Get(ctx, "docs", "a")
	require.NoError(t, c.Put(ctx, "docs", "c", 0, result("c")))

	_, hitA, _ := c.Get(ctx, "docs", "a")
	_, hitB, _ := c.Get(ctx, "docs", "b")
	assert.True(t, hitA)
	assert.False(t, hitB)
	assert.Equal(t, 2, c.Size())
}

func TestQueryCacheTTL(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, time.Millisecond)

	require.NoError(t, c.Put(ctx, "docs", "a", 0, result("a")))
	time.Sleep(5 * time.Millisecond)
	_, hit, _ := c.Get(ctx, "docs", "a")
	assert.False(t, hit)
	assert.Equal(t, 0, c.Size())
}

func TestQueryCacheInvalidateIsPerCollection(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, time.Minute)

	require.NoError(t, c.Put(ctx, "docs", "a", 0, result("a")))
	require.NoError(t, c.Put(ctx, "filings", "a", 0, result("f")))
	require.NoError(t, c.Invalidate(ctx, "docs"))

	_, hit, _ := c.Get(ctx, "docs", "a")
	assert.False(t, hit)
	_, hit, _ = c.Get(ctx, "filings", "a")
	assert.True(t, hit)
}

func TestQueryCacheDropsResultsFromOlderGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, time.Minute)

	gen, err := c.Generation(ctx, "docs")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "docs"))

	require.NoError(t, c.Put(ctx, "docs", "a", gen, result("old")))
	_, hit, _ := c.Get(ctx, "docs", "a")
	assert.False(t, hit)
	assert.Equal(t, 0, c.Size())

	gen, err = c.Generation(ctx, "docs")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "docs", "a", gen, result("new")))
	got, hit, _ := c.Get(ctx, "docs", "a")
	assert.True(t, hit)
	assert.Equal(t, []string{"new"}, got.Sources())
}

func TestKey(t *testing.T) {
	base := Key("eps", 5, domain.Filter{})
	assert.Equal(t, base, Key("eps", 5, domain.Filter{}))
	assert.NotEqual(t, base, Key("eps", 6, domain.Filter{}))
	assert.NotEqual(t, base, Key("eps", 5, domain.Filter{Contains: "EPS"}))
	assert.NotEqual(t, base, Key("roe", 5, domain.Filter{}))
}

type countingIndex struct {
	queries int
	fail    bool
}

func (x *countingIndex) GetOrCreate(context.Context, string) (domain.Collection, error) {
	return domain.Collection{}, nil
}
func (x *countingIndex) Add(context.Context, string, []domain.Chunk) error { return nil }
func (x *countingIndex) Query(context.Context, string, string, int, domain.Filter) (domain.QueryResult, error) {
	x.queries++
	if x.fail {
		return domain.QueryResult{}, domain.ErrCollectionNotFound
	}
	return result("a", "b"), nil
}
func (x *countingIndex) DeleteDocument(context.Context, string, string) (int, error) { return 0, nil }
func (x *countingIndex) Replace(context.Context, string, string, []domain.Chunk) (int, error) {
	return 0, nil
}
func (x *countingIndex) Delete(context.Context, string) error { return nil }
func (x *countingIndex) Collections(context.Context) ([]domain.Collection, error) {
	return nil, nil
}

func TestCachedIndex(t *testing.T) {
	ctx := context.Background()
	inner := &countingIndex{}
	x := NewCachedIndex(inner, NewQueryCache(10, time.Minute), logger.Discard())

	for i := 0; i < 3; i++ {
		res, err := x.Query(ctx, "docs", "eps", 2, domain.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, res.Sources())
	}
	assert.Equal(t, 1, inner.queries)

	require.NoError(t, x.Add(ctx, "docs", nil))
	_, err := x.Query(ctx, "docs", "eps", 2, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.queries)

	_, err = x.DeleteDocument(ctx, "docs", "abcd1234")
	require.NoError(t, err)
	_, _ = x.Query(ctx, "docs", "eps", 2, domain.Filter{})
	assert.Equal(t, 3, inner.queries)
}

func TestCachedIndexDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	inner := &countingIndex{fail: true}
	x := NewCachedIndex(inner, NewQueryCache(10, time.Minute), logger.Discard())

	_, err := x.Query(ctx, "docs", "eps", 2, domain.Filter{})
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
	_, err = x.Query(ctx, "docs", "eps", 2, domain.Filter{})
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
	assert.Equal(t, 2, inner.queries)
}

type brokenBackend struct{}

func (brokenBackend) Generation(context.Context, string) (int64, error) {
	return 0, errors.New("cache down")
}
func (brokenBackend) Get(context.Context, string, string) (domain.QueryResult, bool, error) {
	return domain.QueryResult{}, false, errors.New("cache down")
}
func (brokenBackend) Put(context.Context, string, string, int64, domain.QueryResult) error {
	return errors.New("cache down")
}
func (brokenBackend) Invalidate(context.Context, string) error { return errors.New("cache down") }

func TestCachedIndexSurvivesBackendFailure(t *testing.T) {
	ctx := context.Background()
	inner := &countingIndex{}
	x := NewCachedIndex(inner, brokenBackend{}, logger.Discard())

	res, err := x.Query(ctx, "docs", "eps", 2, domain.Filter{})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
	assert.NoError(t, x.Delete(ctx, "docs"))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("FINRAG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FINRAG_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, 0, time.Minute)
	require.NoError(t, err)
	defer c.Close()
	c.prefix = "finrag-test:" + time.Now().Format("150405.000000") + ":"

	require.NoError(t, c.Put(ctx, "docs", "k", 0, result("a")))
	got, hit, err := c.Get(ctx, "docs", "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a"}, got.Sources())

	require.NoError(t, c.Invalidate(ctx, "docs"))
	_, hit, err = c.Get(ctx, "docs", "k")
	require.NoError(t, err)
	assert.False(t, hit)

	// A result computed before the invalidation must not be stored.
	require.NoError(t, c.Put(ctx, "docs", "k", 0, result("old")))
	_, hit, err = c.Get(ctx, "docs", "k")
	require.NoError(t, err)
	assert.False(t, hit)

	gen, err := c.Generation(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

// stateIndex answers queries from a snapshot of its state. When gate is set,
// Query signals started after taking the snapshot and waits for gate.
type stateIndex struct {
	countingIndex
	mu      sync.Mutex
	state   string
	started chan struct{}
	gate    chan struct{}
}

func (x *stateIndex) Query(context.Context, string, string, int, domain.Filter) (domain.QueryResult, error) {
	x.mu.Lock()
	snapshot := x.state
	gate := x.gate
	x.gate = nil
	x.mu.Unlock()

	if gate != nil {
		close(x.started)
		<-gate
	}
	return result(snapshot), nil
}

func (x *stateIndex) Add(context.Context, string, []domain.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.state = "new"
	return nil
}

func TestCachedIndexQueryRacingWrite(t *testing.T) {
	ctx := context.Background()
	inner := &stateIndex{state: "old", started: make(chan struct{}), gate: make(chan struct{})}
	x := NewCachedIndex(inner, NewQueryCache(10, time.Minute), logger.Discard())

	done := make(chan domain.QueryResult)
	go func() {
		res, _ := x.Query(ctx, "docs", "eps", 2, domain.Filter{})
		done <- res
	}()

	<-inner.started
	require.NoError(t, x.Add(ctx, "docs", nil))
	close(inner.gate)
	assert.Equal(t, []string{"old"}, (<-done).Sources())

	res, err := x.Query(ctx, "docs", "eps", 2, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, res.Sources(), "a query that overlapped a write must not be cached")
}
