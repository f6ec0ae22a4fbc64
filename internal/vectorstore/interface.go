package vectorstore

import (
	"context"

	"filechat-ai/internal/indexer"
)

// RetrievalResult is a chunk ranked against a query vector.
type RetrievalResult struct {
	Chunk indexer.Chunk
	Score float64 // Cosine similarity in [-1, 1]
	Rank  int     // 1-based, in descending score order
}

// VectorIndex holds the chunk vectors of the active document and answers
// nearest-neighbor queries by cosine similarity. Results are ordered by
// descending score with ties broken by insertion order.
type VectorIndex interface {
	// Add appends chunks and their vectors. All vectors must share the index
	// dimension; the first Add fixes it. Add is all-or-nothing.
	Add(ctx context.Context, chunks []indexer.Chunk, vectors [][]float32) error

	// Search returns the min(k, Len()) best matches for query.
	Search(ctx context.Context, query []float32, k int) ([]RetrievalResult, error)

	// Clear removes every entry and forgets the dimension.
	Clear(ctx context.Context) error

	// IsEmpty reports whether the index holds no entries.
	IsEmpty() bool

	// Len returns the number of stored entries.
	Len() int

	// Dimension returns the vector dimension, or 0 for an empty index.
	Dimension() int
}

// Factory creates an empty VectorIndex. Each document gets a fresh index so
// a failed rebuild never touches the index currently serving queries.
type Factory func(ctx context.Context) (VectorIndex, error)
