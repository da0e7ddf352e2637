package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"finrag/internal/adapter/chunker"
	"finrag/internal/domain"
	"finrag/internal/port"
)

// Retriever ingests PDFs into one collection of a VectorIndex and answers
// retrieval queries against it. Ingest calls are serialised; queries are not.
type Retriever struct {
	extractor  port.TextExtractor
	chunker    port.Chunker
	index      port.VectorIndex
	walker     port.FileWalker
	collection string
	topK       int
	logger     *slog.Logger

	ingestMu sync.Mutex
}

// RetrieverDeps bundles the collaborators of a Retriever.
type RetrieverDeps struct {
	Extractor port.TextExtractor
	Chunker   port.Chunker
	Index     port.VectorIndex
	Walker    port.FileWalker
	Logger    *slog.Logger
}

func NewRetriever(deps RetrieverDeps, collection string, topK int) *Retriever {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 10
	}
	return &Retriever{
		extractor:  deps.Extractor,
		chunker:    deps.Chunker,
		index:      deps.Index,
		walker:     deps.Walker,
		collection: collection,
		topK:       topK,
		logger:     logger.With("collection", collection),
	}
}

func (r *Retriever) Collection() string {
	return r.collection
}

// Search is the error-preserving query. k <= 0 selects the configured top-k.
func (r *Retriever) Search(ctx context.Context, query string, k int, filter domain.Filter) (domain.QueryResult, error) {
	if k <= 0 {
		k = r.topK
	}
	return r.index.Query(ctx, r.collection, query, k, filter)
}

// Retrieve returns the ranked chunk texts joined by a blank line and the
// parallel list of chunk ids. Any failure, including a missing collection,
// degrades to ("", []string{}) and is logged rather than returned.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (string, []string) {
	res, err := r.Search(ctx, query, k, domain.Filter{})
	if err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			r.logger.Warn("retrieval against missing collection", "error", err)
		} else {
			r.logger.Warn("retrieval failed", "error", err)
		}
		return "", []string{}
	}
	return res.Context(), res.Sources()
}

// DeleteCollection drops the whole collection. It succeeds when the
// collection does not exist.
func (r *Retriever) DeleteCollection(ctx context.Context) error {
	r.ingestMu.Lock()
	defer r.ingestMu.Unlock()

	if err := r.index.Delete(ctx, r.collection); err != nil {
		return err
	}
	r.logger.Info("collection deleted")
	return nil
}

// Collections lists every collection in the backing store.
func (r *Retriever) Collections(ctx context.Context) ([]domain.Collection, error) {
	return r.index.Collections(ctx)
}

// RemoveDocument deletes every chunk derived from path. The file itself
// need not exist any more.
func (r *Retriever) RemoveDocument(ctx context.Context, path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrValidation, path, err)
	}

	r.ingestMu.Lock()
	defer r.ingestMu.Unlock()

	n, err := r.index.DeleteDocument(ctx, r.collection, chunker.DocHash(abs))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info("document removed", "path", abs, "chunks", n)
	}
	return n, nil
}
