package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PageSource is a PDF text layer: a page count and per-page text.
// Pages are numbered from 1.
type PageSource interface {
	PageCount() int
	PageText(pageNr int) (string, error)
}

// imageProber is implemented by page sources that can tell whether the
// document embeds raster images.
type imageProber interface {
	HasImages() bool
}

// OpenPDF parses and validates a PDF with pdfcpu.
func OpenPDF(data []byte) (PageSource, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: pdfcpu read: %v", ErrCorruptPDF, err)
	}
	return &pdfcpuSource{ctx: ctx}, nil
}

type pdfcpuSource struct {
	ctx *model.Context
}

func (s *pdfcpuSource) PageCount() int { return s.ctx.PageCount }

func (s *pdfcpuSource) PageText(pageNr int) (string, error) {
	r, err := pdfcpu.ExtractPageContent(s.ctx, pageNr)
	if err != nil {
		return "", fmt.Errorf("page %d content: %w", pageNr, err)
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("page %d read: %w", pageNr, err)
	}
	return extractTextFromStream(data), nil
}

// HasImages reports whether any page references an image XObject, falling
// back to a scan of the cross-reference table.
func (s *pdfcpuSource) HasImages() bool {
	ctx := s.ctx
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

func (p *Pipeline) extractPDF(ctx context.Context, data []byte) (*Document, error) {
	src, err := OpenPDF(data)
	if err != nil {
		return nil, err
	}
	return p.ExtractPages(ctx, src)
}

// ExtractPages reads every page of src in order. Pages without text stay in
// the result as empty parts so that page numbering holds. A page that fails
// to decode is logged and treated as empty.
func (p *Pipeline) ExtractPages(ctx context.Context, src PageSource) (*Document, error) {
	count := src.PageCount()
	if count == 0 {
		return nil, ErrEmptyDocument
	}

	doc := &Document{Format: FormatPDF, Parts: make([]Part, 0, count)}
	pages := make([]string, 0, count)
	found := false
	for pageNr := 1; pageNr <= count; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := src.PageText(pageNr)
		if err != nil {
			p.logger.Warn("pdf page skipped", "page", pageNr, "error", err)
			text = ""
		}
		part := Part{Page: pageNr}
		if text != "" {
			found = true
			part.Paragraphs = strings.Split(text, "\n")
			if doc.Title == "" {
				doc.Title = firstLine(text)
			}
		}
		doc.Parts = append(doc.Parts, part)
		pages = append(pages, text)
	}

	hasImages := false
	if prober, ok := src.(imageProber); ok {
		hasImages = prober.HasImages()
	}
	doc.Quality = assessQuality(pages, hasImages)

	if !found {
		if doc.Quality.NeedsOCR() {
			return nil, fmt.Errorf("%w: %d pages, images only (scanned document?)", ErrNoTextFound, count)
		}
		return nil, fmt.Errorf("%w: %d pages without a text layer", ErrNoTextFound, count)
	}
	p.logger.Debug("pdf extracted", "pages", count, "chars_per_page", doc.Quality.CharsPerPage)
	return doc, nil
}
