// Package docpipe extracts text from document files.
//
// Supported formats:
//   - .docx  Word (word/*.xml text runs)
//   - .xlsx  Excel (shared strings resolved, cells placed by reference)
//   - .pptx  PowerPoint (ppt/slides/slideN.xml in slide order)
//   - .odt   OpenDocument Text (content.xml)
//   - .pdf   PDF text layer via pdfcpu, one part per page
//   - .md, .txt, .html, .csv
//
// Archives are read from memory with archive/zip and walked with
// encoding/xml on namespace-qualified names.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	doc, err := pipe.Extract(ctx, "/path/to/file.pptx")
//	fmt.Println(doc.Text())
package docpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/docforge/fsafe"
)

// Pipeline is the document extraction engine.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Detect returns the document format based on file extension.
func (p *Pipeline) Detect(path string) (Format, error) {
	return DetectExt(filepath.Ext(path))
}

// DetectExt maps a file extension, with or without the dot, to a format.
func DetectExt(ext string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "docx":
		return FormatDocx, nil
	case "xlsx":
		return FormatXlsx, nil
	case "pptx":
		return FormatPptx, nil
	case "odt":
		return FormatODT, nil
	case "pdf":
		return FormatPDF, nil
	case "md", "markdown":
		return FormatMD, nil
	case "txt", "text":
		return FormatTXT, nil
	case "html", "htm":
		return FormatHTML, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Extract reads a file and extracts its text. When the content is
// recognisably a PDF or an Office/OpenDocument archive, the content wins
// over the extension.
func (p *Pipeline) Extract(ctx context.Context, path string) (*Document, error) {
	data, err := p.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format, err := p.Resolve(path, data)
	if err != nil {
		return nil, err
	}
	doc, err := p.ExtractBytes(ctx, data, format)
	if err != nil {
		return nil, fmt.Errorf("extract %s (%s): %w", path, format, err)
	}
	doc.Path = path
	return doc, nil
}

// ReadFile reads a source file within the configured size limit.
func (p *Pipeline) ReadFile(path string) ([]byte, error) {
	data, err := fsafe.ReadFileLimited(path, p.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, fsafe.ErrTooLarge) {
			return nil, fmt.Errorf("%w: %s: %v", ErrFileTooLarge, path, err)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Resolve picks the format of data read from path: the sniffed content
// format when there is one, the extension otherwise.
func (p *Pipeline) Resolve(path string, data []byte) (Format, error) {
	format, err := p.Detect(path)
	if sniffed, ok := Sniff(data); ok && sniffed != format {
		p.logger.Debug("content does not match extension", "path", path, "ext_format", format, "content_format", sniffed)
		return sniffed, nil
	}
	return format, err
}

// ExtractBytes extracts text from an in-memory document of a known format.
func (p *Pipeline) ExtractBytes(ctx context.Context, data []byte, format Format) (*Document, error) {
	if int64(len(data)) > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(data), p.cfg.MaxFileSize)
	}
	p.logger.Debug("extracting document", "format", format, "bytes", len(data))

	var (
		doc *Document
		err error
	)
	switch format {
	case FormatDocx:
		doc, err = p.extractDocx(ctx, data)
	case FormatXlsx:
		doc, err = p.extractXlsx(ctx, data)
	case FormatPptx:
		doc, err = p.extractPptx(ctx, data)
	case FormatODT:
		doc, err = p.extractODT(data)
	case FormatPDF:
		doc, err = p.extractPDF(ctx, data)
	case FormatMD:
		doc = extractMarkdown(data)
	case FormatTXT:
		doc = extractText(data)
	case FormatHTML:
		doc, err = extractHTML(data)
	case FormatCSV:
		doc, err = extractCSV(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	doc.Format = format
	if doc.Title == "" {
		doc.Title = firstLine(doc.Text())
	}
	return doc, nil
}

// SupportedFormats returns all supported source format extensions.
func SupportedFormats() []string {
	return []string{"docx", "xlsx", "pptx", "odt", "pdf", "md", "txt", "html", "csv"}
}
