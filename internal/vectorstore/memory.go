package vectorstore

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"

	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/indexer"
)

type memoryEntry struct {
	chunk  indexer.Chunk
	vector []float32
	norm   float64
}

// MemoryIndex is an in-memory VectorIndex that ranks by linear scan.
// Norms are computed once at insertion.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	entries []memoryEntry
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// NewMemoryFactory returns a Factory producing in-memory indexes.
func NewMemoryFactory() Factory {
	return func(context.Context) (VectorIndex, error) {
		return NewMemoryIndex(), nil
	}
}

// Add appends chunks and vectors. Vectors are copied.
func (m *MemoryIndex) Add(ctx context.Context, chunks []indexer.Chunk, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dim, err := validateBatch(m.dim, len(chunks), len(vectors), vectors)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	entries := make([]memoryEntry, len(chunks))
	for i := range chunks {
		vec := slices.Clone(vectors[i])
		entries[i] = memoryEntry{
			chunk:  chunks[i],
			vector: vec,
			norm:   norm(vec),
		}
	}

	m.entries = append(m.entries, entries...)
	m.dim = dim

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "added vectors to memory index",
		"count", len(chunks), "total", len(m.entries), "dimension", m.dim)
	return nil
}

// Search ranks every entry against query.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]RetrievalResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return []RetrievalResult{}, nil
	}
	if len(query) != m.dim {
		return nil, &DimensionMismatchError{Expected: m.dim, Actual: len(query), Reason: "query vector"}
	}

	queryNorm := norm(query)
	results := make([]RetrievalResult, len(m.entries))
	for i, e := range m.entries {
		results[i] = RetrievalResult{
			Chunk: e.chunk,
			Score: cosine(query, queryNorm, e.vector, e.norm),
		}
	}

	// Entries are in insertion order, so a stable sort keeps ties that way.
	slices.SortStableFunc(results, func(a, b RetrievalResult) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if k < len(results) {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// Clear empties the index.
func (m *MemoryIndex) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.dim = 0
	return nil
}

// IsEmpty reports whether the index has no entries.
func (m *MemoryIndex) IsEmpty() bool {
	return m.Len() == 0
}

// Len returns the number of entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Dimension returns the index dimension.
func (m *MemoryIndex) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dim
}

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either norm is zero.
// a and b must have equal length.
func CosineSimilarity(a, b []float32) float64 {
	return cosine(a, norm(a), b, norm(b))
}

func cosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	score := dot / (normA * normB)
	// Rounding can push a self-match a hair past 1.
	return math.Max(-1, math.Min(1, score))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
