package vectorstore

import (
	"errors"
	"fmt"

	"filechat-ai/internal/apperr"
)

// ErrInvalidK is returned when Search is called with k <= 0.
var ErrInvalidK = errors.New("k must be greater than 0")

// DimensionMismatchError reports vectors that do not fit the index.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	Reason   string
}

func (e *DimensionMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("dimension mismatch: %s (expected %d, got %d)", e.Reason, e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is matches apperr.ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == apperr.ErrDimensionMismatch
}

// validateBatch checks an Add call against the current index dimension
// (0 when the index is empty) and returns the batch dimension.
func validateBatch(dim, chunks, vectors int, vecs [][]float32) (int, error) {
	if chunks != vectors {
		return 0, &DimensionMismatchError{Expected: chunks, Actual: vectors, Reason: "chunk and vector counts differ"}
	}
	if vectors == 0 {
		return dim, nil
	}

	want := dim
	if want == 0 {
		want = len(vecs[0])
	}
	if want == 0 {
		return 0, &DimensionMismatchError{Expected: 1, Actual: 0, Reason: "empty vector"}
	}
	for i, v := range vecs {
		if len(v) != want {
			return 0, &DimensionMismatchError{
				Expected: want,
				Actual:   len(v),
				Reason:   fmt.Sprintf("vector %d", i),
			}
		}
	}
	return want, nil
}
