// Package convert turns a source document into another format: it extracts
// the text with docpipe, renders the target (OOXML through ooxml, PDF through
// gofpdf, text formats directly) and writes the result next to the source or
// into an output directory without ever overwriting an existing file.
//
// Usage:
//
//	c, err := convert.New(convert.DefaultConfig(), convert.WithJournal(j))
//	res, err := c.Convert(ctx, convert.Request{Source: "report.docx", Target: "pdf"})
//	fmt.Println(res.Dest)
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/docforge/docpipe"
	"github.com/hazyhaar/docforge/fsafe"
	"github.com/hazyhaar/docforge/idgen"
	"github.com/hazyhaar/docforge/journal"
	"github.com/hazyhaar/docforge/kit"
	"github.com/hazyhaar/docforge/ooxml"
)

// Stages reported in Error.Stage and in the journal.
const (
	StageValidate = "validate"
	StageExtract  = "extract"
	StageBuild    = "build"
	StageRender   = "render"
	StageWrite    = "write"
)

// ErrUnsupportedConversion is returned when the target is not reachable from
// the source format.
var ErrUnsupportedConversion = errors.New("convert: unsupported conversion")

// Error is a failed conversion. Unwrap exposes the underlying sentinel
// (docpipe.ErrExtraction, ooxml.ErrPackageBuild, fsafe.ErrWrite, ...).
type Error struct {
	Stage  string
	Source string
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("convert %s to %s: %s: %v", e.Source, e.Target, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Request describes one conversion.
type Request struct {
	Source string `json:"source"`
	Target string `json:"target"`
	OutDir string `json:"out_dir,omitempty"` // overrides Config.OutputDir
}

// Result describes a written conversion.
type Result struct {
	ID           string                     `json:"id"`
	Source       string                     `json:"source"`
	SourceFormat docpipe.Format             `json:"source_format"`
	Target       string                     `json:"target"`
	Dest         string                     `json:"dest"`
	Bytes        int64                      `json:"bytes"`
	DurationMS   int64                      `json:"duration_ms"`
	Quality      *docpipe.ExtractionQuality `json:"quality,omitempty"`
}

// Recorder stores conversion attempts. *journal.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Option configures a Converter.
type Option func(*Converter)

// WithJournal records every attempt, successful or not.
func WithJournal(r Recorder) Option {
	return func(c *Converter) { c.journal = r }
}

// WithIDGenerator replaces the conversion ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(c *Converter) { c.newID = gen }
}

// WithClock fixes the time source used for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) { c.now = now }
}

// Converter runs conversions. It is safe for concurrent use.
type Converter struct {
	cfg       Config
	pipe      *docpipe.Pipeline
	logger    *slog.Logger
	journal   Recorder
	newID     idgen.Generator
	now       func() time.Time
	sanitizer *bluemonday.Policy
	markdown  *converter.Converter
}

// New creates a Converter. A nil cfg means DefaultConfig.
func New(cfg *Config, opts ...Option) (*Converter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Converter{cfg: *cfg}
	c.cfg.defaults()
	if err := c.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("convert: config: %w", err)
	}

	c.logger = c.cfg.Logger
	c.pipe = docpipe.New(docpipe.Config{MaxFileSize: c.cfg.MaxFileBytes(), Logger: c.logger})
	c.newID = idgen.Conversion
	c.now = time.Now
	c.sanitizer = bluemonday.UGCPolicy().SkipElementsContent("head")
	c.markdown = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Pipeline returns the extraction pipeline used by the converter.
func (c *Converter) Pipeline() *docpipe.Pipeline { return c.pipe }

// Formats reads path and returns its resolved format with the reachable
// targets. The content decides the format when it is recognisable.
func (c *Converter) Formats(path string) (docpipe.Format, []string, error) {
	raw, err := c.pipe.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	format, err := c.pipe.Resolve(path, raw)
	if err != nil {
		return "", nil, err
	}
	return format, Targets(format, filepath.Ext(path)), nil
}

// Convert converts req.Source to req.Target. The destination is
// "<stem>.<target>" in req.OutDir, Config.OutputDir or the source directory,
// in that order; an existing name becomes "<stem> N.<target>". A failed
// conversion writes nothing and returns an *Error.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if kit.GetRequestID(ctx) == "" {
		ctx = kit.WithRequestID(ctx, idgen.Request())
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	id := c.newID()
	target := NormalizeTarget(req.Target)
	res, format, err := c.convert(ctx, req, target)
	elapsed := time.Since(start)

	attrs := []any{
		"id", id,
		"request_id", kit.GetRequestID(ctx),
		"source", req.Source,
		"target", target,
		"duration_ms", elapsed.Milliseconds(),
	}
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			attrs = append(attrs, "stage", ce.Stage)
		}
		c.logger.WarnContext(ctx, "conversion failed", append(attrs, "error", err)...)
	} else {
		res.ID = id
		res.DurationMS = elapsed.Milliseconds()
		c.logger.InfoContext(ctx, "converted", append(attrs, "format", format, "dest", res.Dest, "bytes", res.Bytes)...)
	}
	c.record(ctx, id, req, target, format, res, err, elapsed)
	return res, err
}

func (c *Converter) convert(ctx context.Context, req Request, target string) (*Result, docpipe.Format, error) {
	src := req.Source
	fail := func(stage string, err error) error {
		return &Error{Stage: stage, Source: src, Target: target, Err: err}
	}
	if src == "" {
		return nil, "", fail(StageValidate, errors.New("source path is required"))
	}
	if target == "" {
		return nil, "", fail(StageValidate, errors.New("target format is required"))
	}

	raw, err := c.pipe.ReadFile(src)
	if err != nil {
		return nil, "", fail(StageExtract, err)
	}
	format, err := c.pipe.Resolve(src, raw)
	if err != nil {
		return nil, "", fail(StageExtract, err)
	}
	if !canConvert(format, filepath.Ext(src), target) {
		return nil, format, fail(StageValidate, fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, format, target))
	}

	doc, err := c.pipe.ExtractBytes(ctx, raw, format)
	if err != nil {
		return nil, format, fail(StageExtract, err)
	}
	doc.Path = src
	if doc.Quality != nil && doc.Quality.NeedsOCR() {
		c.logger.WarnContext(ctx, "pdf text layer looks unreliable",
			"source", src, "pages", doc.Quality.PageCount, "chars_per_page", doc.Quality.CharsPerPage)
	}

	data, stage, err := c.render(doc, raw, target)
	if err != nil {
		return nil, format, fail(stage, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, format, fail(StageWrite, err)
	}

	dest, err := fsafe.WriteFileUnique(c.outDir(req), outputName(src, target), data, 0o644)
	if err != nil {
		return nil, format, fail(StageWrite, err)
	}
	return &Result{
		Source:       src,
		SourceFormat: format,
		Target:       target,
		Dest:         dest,
		Bytes:        int64(len(data)),
		Quality:      doc.Quality,
	}, format, nil
}

// render produces the target bytes and the stage to blame on failure.
func (c *Converter) render(doc *docpipe.Document, raw []byte, target string) ([]byte, string, error) {
	var (
		data []byte
		err  error
	)
	switch target {
	case TargetDocx, TargetXlsx, TargetPptx:
		data, err = c.renderOffice(doc, ooxml.Format(target))
		return data, StageBuild, err
	case TargetTXT:
		data = renderTXT(doc)
	case TargetRTF:
		data = renderRTF(doc)
	case TargetCSV:
		data, err = renderCSV(doc)
	case TargetHTML, TargetHTM:
		data, err = c.renderHTML(doc, raw)
	case TargetMD:
		data, err = c.renderMD(raw)
	case TargetPDF:
		data, err = c.renderPDF(doc)
	default:
		err = fmt.Errorf("%w: no renderer for %q", ErrUnsupportedConversion, target)
	}
	return data, StageRender, err
}

func (c *Converter) outDir(req Request) string {
	switch {
	case req.OutDir != "":
		return req.OutDir
	case c.cfg.OutputDir != "":
		return c.cfg.OutputDir
	default:
		return filepath.Dir(req.Source)
	}
}

// outputName replaces the source extension with the target one.
func outputName(src, target string) string {
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return stem + "." + target
}

// record writes the attempt to the journal. Journal failures are logged and
// never fail the conversion.
func (c *Converter) record(ctx context.Context, id string, req Request, target string, format docpipe.Format, res *Result, convErr error, elapsed time.Duration) {
	if c.journal == nil {
		return
	}
	e := journal.Entry{
		ID:           id,
		RequestID:    kit.GetRequestID(ctx),
		Source:       req.Source,
		SourceFormat: string(format),
		Target:       target,
		DurationMS:   elapsed.Milliseconds(),
		CreatedAt:    time.Now(),
	}
	if convErr != nil {
		e.Error = convErr.Error()
		var ce *Error
		if errors.As(convErr, &ce) {
			e.Stage = ce.Stage
			e.Error = ce.Err.Error()
		}
	} else {
		e.Dest = res.Dest
		e.Bytes = res.Bytes
	}
	if err := c.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		c.logger.WarnContext(ctx, "journal record failed", "id", id, "error", err)
	}
}
