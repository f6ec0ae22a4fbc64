// Package extract turns uploaded document bytes into plain text. Each format
// is handled by its own TextExtractor registered in a Registry.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"filechat-ai/internal/apperr"
)

// Format identifies a document format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatTXT      Format = "txt"
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "md"
)

// ErrNoText is wrapped in an ExtractionError when a document has no text.
var ErrNoText = errors.New("no text content found")

// TextExtractor converts document bytes of one format into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
	Format() Format
}

// ExtractionError reports a document that could not be read, e.g. a
// corrupted or encrypted file.
type ExtractionError struct {
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s text: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is matches apperr.ErrExtraction.
func (e *ExtractionError) Is(target error) bool {
	return target == apperr.ErrExtraction
}

// FormatFromName maps a file name or bare extension to a Format. Unknown
// extensions map to their lowercase form so the registry can reject them.
func FormatFromName(name string) Format {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		ext = name
	}
	switch ext = strings.ToLower(ext); ext {
	case "text":
		return FormatTXT
	case "markdown":
		return FormatMarkdown
	default:
		return Format(ext)
	}
}

// Registry dispatches extraction by format.
type Registry struct {
	extractors map[Format]TextExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[Format]TextExtractor)}
}

// DefaultRegistry returns a registry with pdf, txt, docx and md extractors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPDFExtractor())
	r.Register(NewTextFileExtractor())
	r.Register(NewDOCXExtractor())
	r.Register(NewMarkdownExtractor())
	return r
}

// Register adds or replaces the extractor for its format.
func (r *Registry) Register(e TextExtractor) {
	r.extractors[e.Format()] = e
}

// Supports reports whether a format has an extractor.
func (r *Registry) Supports(f Format) bool {
	_, ok := r.extractors[f]
	return ok
}

// Formats returns the supported formats, sorted.
func (r *Registry) Formats() []Format {
	formats := make([]Format, 0, len(r.extractors))
	for f := range r.extractors {
		formats = append(formats, f)
	}
	slices.Sort(formats)
	return formats
}

// Extract returns the plain text of data. Line endings are normalized to "\n".
func (r *Registry) Extract(ctx context.Context, format Format, data []byte) (string, error) {
	e, ok := r.extractors[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", apperr.ErrUnsupportedFormat, format)
	}

	text, err := e.Extract(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var extErr *ExtractionError
		if errors.As(err, &extErr) {
			return "", err
		}
		return "", &ExtractionError{Format: format, Err: err}
	}

	return normalizeNewlines(text), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
