package attachment

import (
	"errors"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
)

// ExtractDocxText returns the plain text of a Word document: one line per
// paragraph and one line per table row, cells separated by " | ".
func ExtractDocxText(r io.ReaderAt, size int64) (string, error) {
	doc, err := docx.Parse(r, size)
	if err != nil {
		return "", &AttachmentReadError{Err: err}
	}

	var lines []string
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			lines = append(lines, paragraphText(it))
		case *docx.Table:
			lines = append(lines, tableLines(it)...)
		}
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return "", &AttachmentReadError{Err: errors.New("document contains no text")}
	}
	return text, nil
}

func paragraphText(p *docx.Paragraph) string {
	var b strings.Builder
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Run:
			runText(&b, c)
		case *docx.Hyperlink:
			runText(&b, &c.Run)
		}
	}
	return b.String()
}

func runText(b *strings.Builder, r *docx.Run) {
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

func tableLines(t *docx.Table) []string {
	var lines []string
	for _, row := range t.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			var parts []string
			for _, p := range cell.Paragraphs {
				if s := strings.TrimSpace(paragraphText(p)); s != "" {
					parts = append(parts, s)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		lines = append(lines, strings.Join(cells, " | "))
	}
	return lines
}
