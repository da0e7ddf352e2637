package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finrag/internal/adapter/chunker"
	"finrag/internal/domain"
	"finrag/internal/port"
)

// Index binds one embedding function to collections held by a VectorStore.
// Collections remember the embedding space they were created with, and an
// Index refuses to write to or query a collection from another space.
type Index struct {
	store     port.VectorStore
	embedder  port.Embedder
	batchSize int
	logger    *slog.Logger
}

func New(store port.VectorStore, embedder port.Embedder, batchSize int, logger *slog.Logger) *Index {
	if batchSize <= 0 {
		batchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{store: store, embedder: embedder, batchSize: batchSize, logger: logger}
}

// Space is the embedding space of the bound embedder.
func (x *Index) Space() domain.EmbeddingSpace {
	return domain.EmbeddingSpace{Model: x.embedder.ModelName(), Dimension: x.embedder.Dimension()}
}

func (x *Index) GetOrCreate(ctx context.Context, name string) (domain.Collection, error) {
	return x.store.EnsureCollection(ctx, name, x.Space())
}

// Add embeds and upserts chunks, creating the collection on first use.
func (x *Index) Add(ctx context.Context, collection string, chunks []domain.Chunk) error {
	if err := x.ensure(ctx, collection); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	items, err := x.embed(ctx, chunks)
	if err != nil {
		return err
	}
	if err := x.store.Upsert(ctx, collection, items); err != nil {
		return fmt.Errorf("%w: upsert into %q: %w", domain.ErrStorage, collection, err)
	}

	x.logger.Debug("chunks added", "collection", collection, "count", len(items))
	return nil
}

// Replace swaps a document's chunks for new ones and returns how many old
// chunks were removed. Embedding happens before anything is deleted, so an
// embedder failure leaves the stored document untouched.
func (x *Index) Replace(ctx context.Context, collection, docHash string, chunks []domain.Chunk) (int, error) {
	if err := x.ensure(ctx, collection); err != nil {
		return 0, err
	}

	items, err := x.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}

	deleted, err := x.DeleteDocument(ctx, collection, docHash)
	if err != nil {
		return 0, err
	}
	if len(items) > 0 {
		if err := x.store.Upsert(ctx, collection, items); err != nil {
			return deleted, fmt.Errorf("%w: upsert into %q: %w", domain.ErrStorage, collection, err)
		}
	}

	x.logger.Debug("document replaced", "collection", collection, "doc", docHash, "deleted", deleted, "count", len(items))
	return deleted, nil
}

func (x *Index) ensure(ctx context.Context, collection string) error {
	if _, err := x.GetOrCreate(ctx, collection); err != nil {
		if errors.Is(err, domain.ErrEmbeddingMismatch) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return nil
}

// embed turns chunks into store items, embedding in batches of batchSize.
func (x *Index) embed(ctx context.Context, chunks []domain.Chunk) ([]port.VectorItem, error) {
	items := make([]port.VectorItem, 0, len(chunks))
	for start := 0; start < len(chunks); start += x.batchSize {
		batch := chunks[start:min(start+x.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := x.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: embedding chunks %d-%d: %w", domain.ErrStorage, start, start+len(batch)-1, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", domain.ErrStorage, len(vectors), len(batch))
		}

		for i, c := range batch {
			items = append(items, port.VectorItem{
				ID:       c.ID,
				Vector:   vectors[i],
				Document: c.Text,
				Metadata: c.Metadata.Flatten(),
			})
		}
	}
	return items, nil
}

// Query ranks the collection's chunks against text. A missing collection
// yields domain.ErrCollectionNotFound.
func (x *Index) Query(ctx context.Context, collection, text string, k int, filter domain.Filter) (domain.QueryResult, error) {
	col, err := x.store.Collection(ctx, collection)
	if err != nil {
		return domain.QueryResult{}, err
	}
	if col.Space != x.Space() {
		return domain.QueryResult{}, fmt.Errorf("%w: collection %q uses %s, index uses %s", domain.ErrEmbeddingMismatch, collection, col.Space, x.Space())
	}
	if k <= 0 || col.Count == 0 {
		return domain.QueryResult{}, nil
	}

	vectors, err := x.embedder.Embed(ctx, []string{text})
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return domain.QueryResult{}, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	hits, err := x.store.Search(ctx, collection, vectors[0], k, filter)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("searching %q: %w", collection, err)
	}

	matches := make([]domain.Match, len(hits))
	for i, h := range hits {
		matches[i] = domain.Match{
			ID:       h.ID,
			Text:     h.Document,
			Distance: h.Distance,
			Metadata: domain.ParseChunkMetadata(h.Metadata),
		}
	}
	return domain.QueryResult{Matches: matches}, nil
}

// DeleteDocument removes every chunk whose id carries the document hash.
func (x *Index) DeleteDocument(ctx context.Context, collection, docHash string) (int, error) {
	n, err := x.store.DeletePrefix(ctx, collection, chunker.ChunkIDPrefix(docHash))
	if err != nil {
		return 0, fmt.Errorf("%w: deleting document %s: %w", domain.ErrStorage, docHash, err)
	}
	return n, nil
}

// Delete drops the collection. Deleting an absent collection succeeds.
func (x *Index) Delete(ctx context.Context, collection string) error {
	if err := x.store.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("%w: dropping %q: %w", domain.ErrStorage, collection, err)
	}
	return nil
}

func (x *Index) Collections(ctx context.Context) ([]domain.Collection, error) {
	return x.store.ListCollections(ctx)
}

var _ port.VectorIndex = (*Index)(nil)
