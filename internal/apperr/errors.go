// Package apperr defines the error taxonomy shared across the retrieval
// pipeline. Components return typed errors that match these sentinels via
// errors.Is so callers at the edge (HTTP, CLI) can map them without
// depending on every concrete error type.
package apperr

import "errors"

var (
	// ErrInvalidConfiguration is returned for invalid chunking, retrieval or
	// provider settings. Always fatal at startup.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrMissingCredential is returned when a required API key is absent.
	ErrMissingCredential = errors.New("missing credential")
	// ErrUnsupportedFormat is returned when no extractor handles a format.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExtraction is returned when a document cannot be turned into text.
	ErrExtraction = errors.New("extraction error")
	// ErrEmbeddingService is returned when the embedding provider fails.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrAnswerService is returned when the answer-generation provider fails.
	ErrAnswerService = errors.New("answer service error")
	// ErrDimensionMismatch is returned when vectors of different dimensions
	// meet in one index.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrEmptyIndex is returned when retrieval runs before any document
	// has been processed.
	ErrEmptyIndex = errors.New("no document has been processed yet")
)
