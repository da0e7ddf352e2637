package domain

import "errors"

var (
	// ErrExtraction means a PDF could not be opened, parsed or yielded no text.
	ErrExtraction = errors.New("extraction failed")

	// ErrInvalidParameter means chunking parameters are out of contract.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrValidation means a bad path or file type was passed to ingestion.
	ErrValidation = errors.New("validation failed")

	// ErrStorage means a backend write or delete failed. Chunk ids are
	// deterministic, so re-running the ingestion is safe.
	ErrStorage = errors.New("storage failure")

	// ErrCollectionNotFound is returned by queries against an absent collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrEmbeddingMismatch means a collection was created with another embedding space.
	ErrEmbeddingMismatch = errors.New("embedding space mismatch")
)
