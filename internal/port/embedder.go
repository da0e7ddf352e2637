package port

import (
	"context"

	"finrag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns exactly one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore is a persistent vector backend holding named collections.
type VectorStore interface {
	// EnsureCollection returns the named collection, creating it bound to space
	// if absent. An existing collection with another space yields
	// domain.ErrEmbeddingMismatch.
	EnsureCollection(ctx context.Context, name string, space domain.EmbeddingSpace) (domain.Collection, error)

	// Collection returns domain.ErrCollectionNotFound when name is absent.
	Collection(ctx context.Context, name string) (domain.Collection, error)

	// Upsert adds or replaces items in the collection.
	Upsert(ctx context.Context, collection string, items []VectorItem) error

	// Search returns up to k items ordered by ascending cosine distance.
	Search(ctx context.Context, collection string, query []float32, k int, filter domain.Filter) ([]VectorResult, error)

	// DeletePrefix removes every item whose id starts with prefix.
	DeletePrefix(ctx context.Context, collection, prefix string) (int, error)

	// DropCollection removes the collection. Dropping an absent collection is not an error.
	DropCollection(ctx context.Context, name string) error

	ListCollections(ctx context.Context) ([]domain.Collection, error)

	Close() error
}

// VectorItem represents a chunk to be stored.
type VectorItem struct {
	ID       string            // Chunk ID
	Vector   []float32         // Embedding vector
	Document string            // Chunk text
	Metadata map[string]string // Flattened domain.ChunkMetadata
}

// VectorResult represents a search hit.
type VectorResult struct {
	ID       string
	Document string
	Distance float64 // Cosine distance (lower is better)
	Metadata map[string]string
}

// VectorIndex is the typed collection API the retriever works against.
// It owns the embedding function bound to its collections.
type VectorIndex interface {
	GetOrCreate(ctx context.Context, name string) (domain.Collection, error)

	Add(ctx context.Context, collection string, chunks []domain.Chunk) error

	Query(ctx context.Context, collection, text string, k int, filter domain.Filter) (domain.QueryResult, error)

	// DeleteDocument removes every chunk derived from the document hash.
	DeleteDocument(ctx context.Context, collection, docHash string) (int, error)

	// Replace swaps every chunk of the document for chunks and returns the
	// number of chunks removed. On error before the delete, the old chunks remain.
	Replace(ctx context.Context, collection, docHash string, chunks []domain.Chunk) (int, error)

	Delete(ctx context.Context, collection string) error

	Collections(ctx context.Context) ([]domain.Collection, error)
}
