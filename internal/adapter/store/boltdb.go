package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"finrag/internal/domain"
	"finrag/internal/port"
)

var (
	bucketMeta        = []byte("meta")
	bucketCollections = []byte("collections")
	bucketVectors     = []byte("vectors")
	keyCollection     = []byte("collection")
)

// BoltStore is a single-file vector store. Every collection is a nested
// bucket under "collections" holding its descriptor and a "vectors" bucket
// keyed by chunk id. Search is a brute-force cosine scan inside a read
// transaction, so queries run concurrently with each other.
type BoltStore struct {
	db *bbolt.DB
}

type collectionMeta struct {
	Space     domain.EmbeddingSpace `json:"space"`
	CreatedAt time.Time             `json:"created_at"`
}

type storedVector struct {
	Vector   []float32         `json:"v"`
	Document string            `json:"d"`
	Metadata map[string]string `json:"m,omitempty"`
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketCollections} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) EnsureCollection(ctx context.Context, name string, space domain.EmbeddingSpace) (domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return domain.Collection{}, err
	}

	var col domain.Collection
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		if b := root.Bucket([]byte(name)); b != nil {
			c, err := readCollection(name, b)
			if err != nil {
				return err
			}
			if c.Space != space {
				return fmt.Errorf("%w: collection %q uses %s, index uses %s", domain.ErrEmbeddingMismatch, name, c.Space, space)
			}
			col = c
			return nil
		}

		b, err := root.CreateBucket([]byte(name))
		if err != nil {
			return fmt.Errorf("failed to create collection %q: %w", name, err)
		}
		if _, err := b.CreateBucket(bucketVectors); err != nil {
			return err
		}
		meta := collectionMeta{Space: space, CreatedAt: time.Now().UTC()}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := b.Put(keyCollection, data); err != nil {
			return err
		}
		col = domain.Collection{Name: name, Space: space, CreatedAt: meta.CreatedAt}
		return nil
	})
	return col, err
}

func (s *BoltStore) Collection(ctx context.Context, name string) (domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return domain.Collection{}, err
	}

	var col domain.Collection
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCollections).Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
		}
		var err error
		col, err = readCollection(name, b)
		return err
	})
	return col, err
}

func readCollection(name string, b *bbolt.Bucket) (domain.Collection, error) {
	var meta collectionMeta
	if err := json.Unmarshal(b.Get(keyCollection), &meta); err != nil {
		return domain.Collection{}, fmt.Errorf("corrupt descriptor for collection %q: %w", name, err)
	}
	count := 0
	if vb := b.Bucket(bucketVectors); vb != nil {
		count = vb.Stats().KeyN
	}
	return domain.Collection{Name: name, Space: meta.Space, Count: count, CreatedAt: meta.CreatedAt}, nil
}

func (s *BoltStore) Upsert(ctx context.Context, collection string, items []port.VectorItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if cb == nil {
			return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
		}
		col, err := readCollection(collection, cb)
		if err != nil {
			return err
		}
		vb := cb.Bucket(bucketVectors)

		for _, item := range items {
			if len(item.Vector) != col.Space.Dimension {
				return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d", item.ID, col.Space.Dimension, len(item.Vector))
			}
			data, err := json.Marshal(storedVector{
				Vector:   item.Vector,
				Document: item.Document,
				Metadata: item.Metadata,
			})
			if err != nil {
				return err
			}
			if err := vb.Put([]byte(item.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Search(ctx context.Context, collection string, query []float32, k int, filter domain.Filter) ([]port.VectorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []port.VectorResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if cb == nil {
			return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
		}

		return cb.Bucket(bucketVectors).ForEach(func(key, value []byte) error {
			var stored storedVector
			if err := json.Unmarshal(value, &stored); err != nil {
				return fmt.Errorf("corrupt vector %s: %w", key, err)
			}
			if !MatchesFilter(stored.Document, filter) {
				return nil
			}
			results = append(results, port.VectorResult{
				ID:       string(key),
				Document: stored.Document,
				Distance: CosineDistance(query, stored.Vector),
				Metadata: stored.Metadata,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return TopK(results, k), nil
}

func (s *BoltStore) DeletePrefix(ctx context.Context, collection, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		cb := tx.Bucket(bucketCollections).Bucket([]byte(collection))
		if cb == nil {
			return nil
		}
		vb := cb.Bucket(bucketVectors)

		// Keys are sorted, so the matching ids form one contiguous run.
		var keys [][]byte
		p := []byte(prefix)
		c := vb.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := vb.Delete(k); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return nil
	})
	return deleted, err
}

func (s *BoltStore) DropCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		if root.Bucket([]byte(name)) == nil {
			return nil
		}
		return root.DeleteBucket([]byte(name))
	})
}

func (s *BoltStore) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cols []domain.Collection
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCollections).ForEachBucket(func(name []byte) error {
			col, err := readCollection(string(name), tx.Bucket(bucketCollections).Bucket(name))
			if err != nil {
				return err
			}
			cols = append(cols, col)
			return nil
		})
	})
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols, err
}

var _ port.VectorStore = (*BoltStore)(nil)
