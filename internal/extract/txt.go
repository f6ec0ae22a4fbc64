package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var errBinary = errors.New("content looks binary")

// TextFileExtractor decodes plain text files. It honors UTF-8 and UTF-16
// byte order marks, accepts valid UTF-8, and otherwise falls back to
// Windows-1252, a superset of Latin-1.
type TextFileExtractor struct{}

// NewTextFileExtractor creates a plain text extractor.
func NewTextFileExtractor() *TextFileExtractor {
	return &TextFileExtractor{}
}

// Format returns FormatTXT.
func (*TextFileExtractor) Format() Format { return FormatTXT }

// Extract decodes data to a UTF-8 string.
func (*TextFileExtractor) Extract(_ context.Context, data []byte) (string, error) {
	return decodeText(data)
}

func decodeText(data []byte) (string, error) {
	if hasBOM(data) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", fmt.Errorf("failed to decode text: %w", err)
		}
		return string(out), nil
	}

	if bytes.IndexByte(data, 0) >= 0 {
		return "", errBinary
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(out), nil
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF})
}
