package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"finrag/internal/domain"
	"finrag/internal/port"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS finrag_collections (
	name       text PRIMARY KEY,
	model      text NOT NULL,
	dimension  integer NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS finrag_chunks (
	collection text NOT NULL REFERENCES finrag_collections(name) ON DELETE CASCADE,
	id         text NOT NULL,
	document   text NOT NULL,
	metadata   jsonb NOT NULL DEFAULT '{}',
	embedding  vector NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// Store keeps collections in PostgreSQL with the pgvector extension. Vectors
// of different collections may differ in dimension, so the embedding column
// is unsized and ranking is an exact scan ordered by the <=> operator.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and creates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) EnsureCollection(ctx context.Context, name string, space domain.EmbeddingSpace) (domain.Collection, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO finrag_collections (name, model, dimension) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		name, space.Model, space.Dimension)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("failed to create collection %q: %w", name, err)
	}

	col, err := s.Collection(ctx, name)
	if err != nil {
		return domain.Collection{}, err
	}
	if col.Space != space {
		return domain.Collection{}, fmt.Errorf("%w: collection %q uses %s, index uses %s", domain.ErrEmbeddingMismatch, name, col.Space, space)
	}
	return col, nil
}

func (s *Store) Collection(ctx context.Context, name string) (domain.Collection, error) {
	var col domain.Collection
	err := s.pool.QueryRow(ctx, `
		SELECT c.name, c.model, c.dimension, c.created_at,
		       (SELECT count(*) FROM finrag_chunks ch WHERE ch.collection = c.name)
		FROM finrag_collections c WHERE c.name = $1`, name,
	).Scan(&col.Name, &col.Space.Model, &col.Space.Dimension, &col.CreatedAt, &col.Count)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Collection{}, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	if err != nil {
		return domain.Collection{}, fmt.Errorf("failed to load collection %q: %w", name, err)
	}
	return col, nil
}

func (s *Store) dimension(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, name string) (int, error) {
	var dim int
	err := q.QueryRow(ctx, `SELECT dimension FROM finrag_collections WHERE name = $1`, name).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	return dim, err
}

// Upsert writes all items in one transaction.
func (s *Store) Upsert(ctx context.Context, collection string, items []port.VectorItem) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		dim, err := s.dimension(ctx, tx, collection)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, item := range items {
			if len(item.Vector) != dim {
				return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d", item.ID, dim, len(item.Vector))
			}
			metadata := item.Metadata
			if metadata == nil {
				metadata = map[string]string{}
			}
			batch.Queue(`
				INSERT INTO finrag_chunks (collection, id, document, metadata, embedding)
				VALUES ($1, $2, $3, $4, $5::vector)
				ON CONFLICT (collection, id) DO UPDATE
				SET document = EXCLUDED.document, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
				collection, item.ID, item.Document, metadata, pgvector.NewVector(item.Vector))
		}

		br := tx.SendBatch(ctx, batch)
		for _, item := range items {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to upsert %s: %w", item.ID, err)
			}
		}
		return br.Close()
	})
}

func (s *Store) Search(ctx context.Context, collection string, query []float32, k int, filter domain.Filter) ([]port.VectorResult, error) {
	if _, err := s.dimension(ctx, s.pool, collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, document, metadata, embedding <=> $2::vector AS distance
		FROM finrag_chunks
		WHERE collection = $1 AND ($3::text = '' OR strpos(document, $3::text) > 0)
		ORDER BY distance, id
		LIMIT $4`,
		collection, pgvector.NewVector(query), filter.Contains, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", collection, err)
	}
	defer rows.Close()

	var results []port.VectorResult
	for rows.Next() {
		var r port.VectorResult
		if err := rows.Scan(&r.ID, &r.Document, &r.Metadata, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) DeletePrefix(ctx context.Context, collection, prefix string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM finrag_chunks WHERE collection = $1 AND starts_with(id, $2)`,
		collection, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s* from %q: %w", prefix, collection, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) DropCollection(ctx context.Context, name string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM finrag_collections WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to drop collection %q: %w", name, err)
	}
	return nil
}

func (s *Store) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.name, c.model, c.dimension, c.created_at, count(ch.id)
		FROM finrag_collections c
		LEFT JOIN finrag_chunks ch ON ch.collection = c.name
		GROUP BY c.name
		ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var cols []domain.Collection
	for rows.Next() {
		var c domain.Collection
		if err := rows.Scan(&c.Name, &c.Space.Model, &c.Space.Dimension, &c.CreatedAt, &c.Count); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

var _ port.VectorStore = (*Store)(nil)
