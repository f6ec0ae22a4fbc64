package indexer

import (
	"fmt"
	"strings"
	"unicode"

	"filechat-ai/internal/apperr"
)

const (
	// DefaultChunkSize is the nominal chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of characters shared by consecutive chunks.
	DefaultChunkOverlap = 200
	// DefaultLookback is how far before the nominal cut a boundary may be.
	DefaultLookback = 100
)

// Chunker splits plain text into overlapping fixed-size chunks, snapping the
// cut point back to a paragraph or sentence boundary when one is close.
type Chunker struct {
	size     int
	overlap  int
	lookback int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLookback sets the boundary search window. Zero disables snapping.
func WithLookback(n int) Option {
	return func(c *Chunker) {
		c.lookback = n
	}
}

// NewChunker creates a chunker. It fails with apperr.ErrInvalidConfiguration
// unless size > 0 and 0 <= overlap < size.
func NewChunker(size, overlap int, opts ...Option) (*Chunker, error) {
	if err := ValidateParams(size, overlap); err != nil {
		return nil, err
	}

	c := &Chunker{
		size:     size,
		overlap:  overlap,
		lookback: DefaultLookback,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.lookback < 0 {
		return nil, fmt.Errorf("%w: lookback must be >= 0, got %d", apperr.ErrInvalidConfiguration, c.lookback)
	}

	return c, nil
}

// ValidateParams checks a chunk size / overlap pair.
func ValidateParams(size, overlap int) error {
	switch {
	case size <= 0:
		return fmt.Errorf("%w: chunk size must be > 0, got %d", apperr.ErrInvalidConfiguration, size)
	case overlap < 0:
		return fmt.Errorf("%w: chunk overlap must be >= 0, got %d", apperr.ErrInvalidConfiguration, overlap)
	case overlap >= size:
		return fmt.Errorf("%w: chunk overlap (%d) must be smaller than chunk size (%d)", apperr.ErrInvalidConfiguration, overlap, size)
	}
	return nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks text for the given document. Empty or whitespace-only text
// yields no chunks.
func (c *Chunker) Split(documentID, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)
	window := c.effectiveLookback()

	var chunks []Chunk
	start := 0
	for {
		end := start + c.size
		if end >= n {
			chunks = append(chunks, newChunk(runes, start, n, documentID, len(chunks)))
			break
		}

		cut := snapBoundary(runes, end, window)
		chunks = append(chunks, newChunk(runes, start, cut, documentID, len(chunks)))

		// cut >= start+size-window and window < size-overlap, so this always advances.
		start = cut - c.overlap
	}

	return chunks, nil
}

// effectiveLookback clamps the window so the next start stays strictly
// after the current one.
func (c *Chunker) effectiveLookback() int {
	limit := c.size - c.overlap - 1
	if c.lookback < limit {
		return c.lookback
	}
	if limit < 0 {
		return 0
	}
	return limit
}

func newChunk(runes []rune, start, end int, documentID string, seq int) Chunk {
	return Chunk{
		Text:          string(runes[start:end]),
		StartOffset:   start,
		EndOffset:     end,
		DocumentID:    documentID,
		SequenceIndex: seq,
	}
}

// snapBoundary returns the cut point for a chunk whose nominal end is end.
// Candidates lie in [end-window, end]. A paragraph break wins over a
// sentence terminator; within a class the candidate nearest end wins.
// Without candidates the nominal end is returned.
func snapBoundary(runes []rune, end, window int) int {
	if window <= 0 {
		return end
	}
	lo := end - window

	// Paragraph break: cut lands after "\n\n".
	for cut := end; cut >= lo && cut >= 2; cut-- {
		if runes[cut-1] == '\n' && runes[cut-2] == '\n' {
			return cut
		}
	}

	// Sentence terminator followed by whitespace: cut lands after the terminator.
	for cut := end; cut >= lo && cut >= 1; cut-- {
		if cut < len(runes) && isTerminator(runes[cut-1]) && unicode.IsSpace(runes[cut]) {
			return cut
		}
	}

	return end
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
