package extract

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor renders markdown to plain text: markup is dropped and
// blocks are separated by blank lines so the chunker can snap to them.
type MarkdownExtractor struct {
	parser goldmark.Markdown
}

// NewMarkdownExtractor creates a markdown extractor with GFM tables.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		),
	}
}

// Format returns FormatMarkdown.
func (*MarkdownExtractor) Format() Format { return FormatMarkdown }

// Extract parses data and returns its text content.
func (m *MarkdownExtractor) Extract(_ context.Context, data []byte) (string, error) {
	source, err := decodeText(data)
	if err != nil {
		return "", err
	}
	content := []byte(source)
	doc := m.parser.Parser().Parse(text.NewReader(content))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			appendBlock(&b, extractTextFromNode(n, content))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			appendBlock(&b, linesText(v, content))
			return ast.WalkSkipChildren, nil
		case *extast.TableHeader, *extast.TableRow:
			appendBlock(&b, extractTableRowText(v, content))
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return b.String(), nil
}

func appendBlock(b *strings.Builder, s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(s)
}

// extractTextFromNode extracts inline text content from a node and its children.
func extractTextFromNode(n ast.Node, content []byte) string {
	var textBuilder strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			textBuilder.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				textBuilder.WriteByte('\n')
			}
		case *ast.String:
			textBuilder.Write(v.Value)
		case *ast.AutoLink:
			textBuilder.Write(v.URL(content))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(textBuilder.String())
}

// extractTableRowText extracts text from a table row, formatting cells with pipe separators.
func extractTableRowText(row ast.Node, content []byte) string {
	cells := make([]string, 0, row.ChildCount())
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cells = append(cells, extractTextFromNode(c, content))
	}
	return strings.Join(cells, " | ")
}

func linesText(n ast.Node, content []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(content))
	}
	return b.String()
}
