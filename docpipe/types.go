package docpipe

import (
	"fmt"
	"strings"
)

// Format identifies a source document type.
type Format string

const (
	FormatDocx Format = "docx"
	FormatXlsx Format = "xlsx"
	FormatPptx Format = "pptx"
	FormatODT  Format = "odt"
	FormatPDF  Format = "pdf"
	FormatMD   Format = "md"
	FormatTXT  Format = "txt"
	FormatHTML Format = "html"
	FormatCSV  Format = "csv"
)

// Part is one text-bearing unit of a document: an archive entry for Office
// and OpenDocument sources, a page for PDF, the whole file for text sources.
type Part struct {
	Name       string   `json:"name,omitempty"` // archive entry name
	Page       int      `json:"page,omitempty"` // 1-based PDF page number
	Paragraphs []string `json:"paragraphs"`
}

// Text joins the part's paragraphs with newlines.
func (p Part) Text() string {
	return strings.Join(p.Paragraphs, "\n")
}

// Document is the result of extracting content from a file.
type Document struct {
	Path    string             `json:"path,omitempty"`
	Format  Format             `json:"format"`
	Title   string             `json:"title,omitempty"`
	Parts   []Part             `json:"parts"`
	Rows    [][]string         `json:"rows,omitempty"`    // spreadsheet and CSV cells
	Quality *ExtractionQuality `json:"quality,omitempty"` // PDF only
}

// Text returns the concatenated plain text. PDF pages are joined with a
// page separator; other parts are joined with a blank line.
func (d *Document) Text() string {
	if d.Format == FormatPDF {
		return JoinPages(d.Pages())
	}
	texts := make([]string, 0, len(d.Parts))
	for _, p := range d.Parts {
		texts = append(texts, p.Text())
	}
	return strings.Join(texts, "\n\n")
}

// Paragraphs returns every paragraph of every part, in order.
func (d *Document) Paragraphs() []string {
	var out []string
	for _, p := range d.Parts {
		out = append(out, p.Paragraphs...)
	}
	return out
}

// Pages returns one string per part. For PDF sources this is one string
// per page, empty for pages without a text layer.
func (d *Document) Pages() []string {
	out := make([]string, len(d.Parts))
	for i, p := range d.Parts {
		out[i] = p.Text()
	}
	return out
}

// Lines splits the full text into lines, the unit used for row-per-line
// and paragraph-per-line conversions.
func (d *Document) Lines() []string {
	var lines []string
	for _, p := range d.Parts {
		for _, para := range p.Paragraphs {
			lines = append(lines, strings.Split(para, "\n")...)
		}
	}
	return lines
}

// JoinPages joins page texts with "--- Page N ---" separators, where N is
// the 1-based number of the page that follows.
func JoinPages(pages []string) string {
	var sb strings.Builder
	for i, page := range pages {
		if i > 0 {
			fmt.Fprintf(&sb, "\n\n--- Page %d ---\n\n", i+1)
		}
		sb.WriteString(page)
	}
	return sb.String()
}
