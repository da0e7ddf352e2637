package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"finrag/internal/domain"
)

// RedisCache shares query results between processes. Invalidation bumps a
// per-collection generation key; entries of older generations are never
// read again and age out via TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(ctx context.Context, addr string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "finrag:"}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) genKey(collection string) string {
	return c.prefix + "gen:" + collection
}

// Generation returns the collection's current generation. A missing key is
// generation zero.
func (c *RedisCache) Generation(ctx context.Context, collection string) (int64, error) {
	return generation(ctx, c.client, c.genKey(collection))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, client getter, key string) (int64, error) {
	v, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (c *RedisCache) resultKey(collection string, gen int64, key string) string {
	return fmt.Sprintf("%sq:%s:%d:%s", c.prefix, collection, gen, key)
}

func (c *RedisCache) Get(ctx context.Context, collection, key string) (domain.QueryResult, bool, error) {
	gen, err := c.Generation(ctx, collection)
	if err != nil {
		return domain.QueryResult{}, false, err
	}

	data, err := c.client.Get(ctx, c.resultKey(collection, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.QueryResult{}, false, nil
	}
	if err != nil {
		return domain.QueryResult{}, false, err
	}

	var result domain.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.QueryResult{}, false, fmt.Errorf("corrupt cache entry: %w", err)
	}
	return result, true, nil
}

// Put stores a result computed at generation gen. The write is skipped when
// the generation key moved on in the meantime, possibly in another process.
func (c *RedisCache) Put(ctx context.Context, collection, key string, gen int64, result domain.QueryResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	genKey := c.genKey(collection)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := generation(ctx, tx, genKey)
		if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.resultKey(collection, gen, key), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, collection string) error {
	return c.client.Incr(ctx, c.genKey(collection)).Err()
}
