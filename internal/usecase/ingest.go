package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"finrag/internal/adapter/chunker"
	"finrag/internal/domain"
)

// ProgressFunc is called after each file of a folder ingestion, with the
// number of files processed so far and the total.
type ProgressFunc func(done, total int, path string)

// IngestFolder ingests every matching PDF under dir, one file at a time.
// Per-file failures are logged and recorded in the report; they never stop
// the remaining files.
func (r *Retriever) IngestFolder(ctx context.Context, dir string, tags map[string]string, progress ProgressFunc) (*domain.IngestReport, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: folder %s: %w", domain.ErrValidation, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrValidation, dir)
	}

	files, err := r.walker.Walk(dir)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	report := &domain.IngestReport{
		RunID:    uuid.NewString(),
		Ingested: []domain.DocumentResult{},
		Failed:   []domain.FileFailure{},
	}
	logger := r.logger.With("run_id", report.RunID)
	logger.Info("ingesting folder", "dir", dir, "files", len(files))
	start := time.Now()

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := r.IngestDocument(ctx, f.Path, tags)
		if err != nil {
			logger.Error("document failed", "path", f.Path, "error", err)
			report.Failed = append(report.Failed, domain.FileFailure{Path: f.Path, Err: err})
		} else {
			report.Ingested = append(report.Ingested, res)
		}
		if progress != nil {
			progress(i+1, len(files), f.Path)
		}
	}

	logger.Info("folder ingested",
		"documents", len(report.Ingested),
		"failed", len(report.Failed),
		"chunks", report.TotalChunks(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return report, nil
}

// IngestDocument extracts, chunks and indexes one PDF. Chunks left over
// from a previous, longer version of the same file are removed.
func (r *Retriever) IngestDocument(ctx context.Context, path string, tags map[string]string) (domain.DocumentResult, error) {
	abs, err := validatePDF(path)
	if err != nil {
		return domain.DocumentResult{}, err
	}

	r.ingestMu.Lock()
	defer r.ingestMu.Unlock()

	text, err := r.extractor.Extract(ctx, abs)
	if err != nil {
		return domain.DocumentResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return domain.DocumentResult{}, fmt.Errorf("%w: no text could be extracted from %s", domain.ErrExtraction, abs)
	}

	pieces, err := r.chunker.Chunk(text)
	if err != nil {
		return domain.DocumentResult{}, err
	}

	hash := chunker.DocHash(abs)
	chunks := buildChunks(hash, abs, pieces, tags)

	deleted, err := r.index.Replace(ctx, r.collection, hash, chunks)
	if err != nil {
		return domain.DocumentResult{}, err
	}

	res := domain.DocumentResult{
		Path:   abs,
		Hash:   hash,
		Chunks: len(chunks),
		Pruned: max(0, deleted-len(chunks)),
	}
	r.logger.Info("document ingested", "path", abs, "hash", hash, "chunks", res.Chunks, "pruned", res.Pruned)
	return res, nil
}

func validatePDF(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", domain.ErrValidation)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrValidation, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrValidation, abs, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", domain.ErrValidation, abs)
	}
	if !strings.EqualFold(filepath.Ext(abs), ".pdf") {
		return "", fmt.Errorf("%w: %s is not a PDF", domain.ErrValidation, abs)
	}
	return abs, nil
}

func buildChunks(hash, source string, pieces []string, tags map[string]string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(pieces))
	for i, text := range pieces {
		var extra map[string]string
		if len(tags) > 0 {
			extra = make(map[string]string, len(tags))
			for k, v := range tags {
				extra[k] = v
			}
		}
		chunks[i] = domain.Chunk{
			ID:   chunker.ChunkID(hash, i),
			Text: text,
			Metadata: domain.ChunkMetadata{
				Source:      source,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
				Size:        len([]rune(text)),
				Extra:       extra,
			},
		}
	}
	return chunks
}
