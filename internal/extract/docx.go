package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

var errNoDocumentBody = errors.New("docx package has no document body")

// DOCXExtractor reads a .docx package with go-docx. Body paragraphs come
// first, one per line, then table rows with their cells joined by spaces.
// Blank paragraphs and cells are skipped; tabs and breaks are preserved.
type DOCXExtractor struct{}

// NewDOCXExtractor creates a DOCX extractor.
func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

// Format returns FormatDOCX.
func (*DOCXExtractor) Format() Format { return FormatDOCX }

// Extract returns the document text.
func (*DOCXExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a valid docx package: %w", err)
	}

	items := doc.Document.Body.Items
	if len(items) == 0 {
		return "", errNoDocumentBody
	}

	var b strings.Builder
	var tables []*docx.Table
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		switch it := item.(type) {
		case *docx.Paragraph:
			if text := paragraphText(it); strings.TrimSpace(text) != "" {
				b.WriteString(text)
				b.WriteByte('\n')
			}
		case *docx.Table:
			tables = append(tables, it)
		}
	}

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		writeTable(&b, t)
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func writeTable(b *strings.Builder, t *docx.Table) {
	for _, row := range t.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			if text := cellText(cell); strings.TrimSpace(text) != "" {
				cells = append(cells, text)
			}
		}
		b.WriteString(strings.Join(cells, " "))
		b.WriteByte('\n')
	}
}

// cellText joins the cell's paragraphs. Nested tables are ignored.
func cellText(cell *docx.WTableCell) string {
	paras := make([]string, 0, len(cell.Paragraphs))
	for _, p := range cell.Paragraphs {
		paras = append(paras, paragraphText(p))
	}
	return strings.Join(paras, "\n")
}

func paragraphText(p *docx.Paragraph) string {
	var b strings.Builder
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRun(&b, c)
		case *docx.Hyperlink:
			writeRun(&b, &c.Run)
		}
	}
	return b.String()
}

func writeRun(b *strings.Builder, r *docx.Run) {
	for _, child := range r.Children {
		switch c := child.(type) {
		case *docx.Text:
			b.WriteString(c.Text)
		case *docx.Tab:
			b.WriteByte('\t')
		case *docx.BarterRabbet:
			b.WriteByte('\n')
		}
	}
}
