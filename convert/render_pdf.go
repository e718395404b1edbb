package convert

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/hazyhaar/docforge/docpipe"
)

// ptToMM converts a font size in points to millimetres.
const ptToMM = 25.4 / 72

// lineSpacing is the line height as a multiple of the font size.
const lineSpacing = 1.4

// renderPDF lays text out on pages with a core font. Slide decks get one
// page per slide; every other source flows paragraph after paragraph, with
// a blank line between parts.
func (c *Converter) renderPDF(doc *docpipe.Document) ([]byte, error) {
	cfg := c.cfg.PDF
	pdf := gofpdf.New("P", "mm", cfg.PageSize, "")
	pdf.SetMargins(cfg.MarginMM, cfg.MarginMM, cfg.MarginMM)
	pdf.SetAutoPageBreak(true, cfg.MarginMM)
	pdf.SetCreator(c.cfg.Creator, true)
	if doc.Title != "" {
		pdf.SetTitle(doc.Title, true)
	}
	pdf.SetCreationDate(c.now())
	pdf.SetFont(cfg.FontFamily, "", cfg.FontSize)

	// Core fonts are cp1252; unmapped runes come out as '.'.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	lineH := cfg.FontSize * ptToMM * lineSpacing

	write := func(paragraphs []string) {
		for _, para := range paragraphs {
			para = strings.ReplaceAll(para, "\t", "    ")
			if strings.TrimSpace(para) == "" {
				pdf.Ln(lineH)
				continue
			}
			pdf.MultiCell(0, lineH, tr(para), "", "L", false)
		}
	}

	if doc.Format == docpipe.FormatPptx {
		for _, part := range doc.Parts {
			pdf.AddPage()
			write(part.Paragraphs)
		}
	} else {
		pdf.AddPage()
		for i, part := range doc.Parts {
			if i > 0 {
				pdf.Ln(lineH)
			}
			write(part.Paragraphs)
		}
	}
	if pdf.PageCount() == 0 {
		pdf.AddPage()
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
