package convert

import (
	"strings"

	"github.com/hazyhaar/docforge/docpipe"
	"github.com/hazyhaar/docforge/ooxml"
)

// officeContent lays the extracted document out for an OOXML target.
func officeContent(doc *docpipe.Document, target ooxml.Format) ooxml.Content {
	switch target {
	case ooxml.FormatDocx:
		return ooxml.Content{Paragraphs: docxParagraphs(doc)}
	case ooxml.FormatXlsx:
		return ooxml.Content{Rows: xlsxRows(doc)}
	case ooxml.FormatPptx:
		return ooxml.Content{Slides: doc.Pages()}
	}
	return ooxml.Content{}
}

// docxParagraphs gives a PDF one paragraph per line with a blank paragraph
// between pages. Other sources keep their paragraphs.
func docxParagraphs(doc *docpipe.Document) []string {
	if doc.Format != docpipe.FormatPDF {
		return doc.Paragraphs()
	}
	var out []string
	for i, page := range doc.Pages() {
		if i > 0 {
			out = append(out, "")
		}
		if page == "" {
			continue
		}
		out = append(out, strings.Split(page, "\n")...)
	}
	return out
}

// xlsxRows keeps tabular sources as they are and puts one line per row in
// column A for everything else.
func xlsxRows(doc *docpipe.Document) [][]string {
	if doc.Rows != nil {
		return doc.Rows
	}
	var rows [][]string
	for _, line := range doc.Lines() {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, []string{line})
	}
	return rows
}

// renderOffice builds and packs an OOXML target.
func (c *Converter) renderOffice(doc *docpipe.Document, target ooxml.Format) ([]byte, error) {
	opts := []ooxml.Option{ooxml.WithCreator(c.cfg.Creator), ooxml.WithTime(c.now())}
	if doc.Title != "" {
		opts = append(opts, ooxml.WithTitle(doc.Title))
	}
	return ooxml.Archive(target, officeContent(doc, target), opts...)
}
