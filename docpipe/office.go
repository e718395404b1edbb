package docpipe

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Namespaces whose elements carry text runs.
const (
	nsWordprocessingML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsDrawingML        = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsSpreadsheetML    = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
)

// maxXMLDepth bounds element nesting in archive parts.
const maxXMLDepth = 256

// depthDecoder is an xml.Decoder that refuses documents nested deeper than
// maxXMLDepth.
type depthDecoder struct {
	*xml.Decoder
	depth int
}

func newDecoder(data []byte) *depthDecoder {
	return &depthDecoder{Decoder: xml.NewDecoder(bytes.NewReader(data))}
}

func (d *depthDecoder) Token() (xml.Token, error) {
	tok, err := d.Decoder.Token()
	switch tok.(type) {
	case xml.StartElement:
		d.depth++
		if d.depth > maxXMLDepth {
			return nil, fmt.Errorf("xml nesting depth exceeds %d", maxXMLDepth)
		}
	case xml.EndElement:
		d.depth--
	}
	return tok, err
}

func openZip(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	return zr, nil
}

// readZipEntry reads one entry, refusing anything that decompresses past max.
func readZipEntry(f *zip.File, max int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorruptArchive, f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, max+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorruptArchive, f.Name, err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrCorruptArchive, f.Name, max)
	}
	return data, nil
}

// entriesIn returns the .xml entries directly under dir whose base name
// starts with prefix, in archive order.
func entriesIn(zr *zip.Reader, dir, prefix string) []*zip.File {
	var out []*zip.File
	for _, f := range zr.File {
		rest, ok := strings.CutPrefix(f.Name, dir)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		if strings.HasPrefix(rest, prefix) && strings.HasSuffix(rest, ".xml") {
			out = append(out, f)
		}
	}
	return out
}

// sortByNumber orders entries such as slide10.xml after slide2.xml.
func sortByNumber(files []*zip.File) {
	sort.SliceStable(files, func(i, j int) bool {
		return entryNumber(files[i].Name) < entryNumber(files[j].Name)
	})
}

// entryNumber returns the trailing integer of an entry base name, e.g. 12
// for "ppt/slides/slide12.xml", or 0 when there is none.
func entryNumber(name string) int {
	base := name[strings.LastIndex(name, "/")+1:]
	base = strings.TrimSuffix(base, ".xml")
	end := len(base)
	start := end
	for start > 0 && base[start-1] >= '0' && base[start-1] <= '9' {
		start--
	}
	n, _ := strconv.Atoi(base[start:end])
	return n
}

// runMarkup names the elements of a markup language that delimit
// paragraphs and hold text.
type runMarkup struct {
	ns        string
	paragraph string
	text      string
	tab       string
	breaks    []string
	skip      []string // subtrees without visible text, e.g. paragraph properties
}

var (
	wordRuns    = runMarkup{ns: nsWordprocessingML, paragraph: "p", text: "t", tab: "tab", breaks: []string{"br", "cr"}, skip: []string{"pPr"}}
	drawingRuns = runMarkup{ns: nsDrawingML, paragraph: "p", text: "t", breaks: []string{"br"}}
)

// parseParagraphs walks an XML part and returns its paragraphs along with the
// number of text elements seen. Nested paragraphs (text boxes inside a
// paragraph) are emitted on their own, before the enclosing one.
func parseParagraphs(data []byte, rs runMarkup) ([]string, int, error) {
	dec := newDecoder(data)

	var (
		paragraphs []string
		stack      []*strings.Builder
		inText     int
		skipping   int
		runs       int
	)
	current := func() *strings.Builder {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != rs.ns {
				continue
			}
			if skipping > 0 || isOneOf(t.Name.Local, rs.skip) {
				skipping++
				continue
			}
			switch local := t.Name.Local; {
			case local == rs.paragraph:
				stack = append(stack, &strings.Builder{})
			case local == rs.text:
				inText++
				runs++
			case rs.tab != "" && local == rs.tab && inText == 0:
				if sb := current(); sb != nil {
					sb.WriteByte('\t')
				}
			case isOneOf(local, rs.breaks) && inText == 0:
				if sb := current(); sb != nil {
					sb.WriteByte('\n')
				}
			}

		case xml.CharData:
			if inText > 0 {
				if sb := current(); sb != nil {
					sb.Write(t)
				}
			}

		case xml.EndElement:
			if t.Name.Space != rs.ns {
				continue
			}
			if skipping > 0 {
				skipping--
				continue
			}
			switch t.Name.Local {
			case rs.text:
				if inText > 0 {
					inText--
				}
			case rs.paragraph:
				if sb := current(); sb != nil {
					paragraphs = append(paragraphs, sb.String())
					stack = stack[:len(stack)-1]
				}
			}
		}
	}
	return paragraphs, runs, nil
}

func isOneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// extractRuns parses each entry and keeps those holding at least one text run.
func (p *Pipeline) extractRuns(ctx context.Context, files []*zip.File, rs runMarkup) ([]Part, error) {
	var parts []Part
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readZipEntry(f, p.cfg.MaxEntrySize)
		if err != nil {
			return nil, err
		}
		paragraphs, runs, err := parseParagraphs(data, rs)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrCorruptArchive, f.Name, err)
		}
		if runs == 0 {
			continue
		}
		parts = append(parts, Part{Name: f.Name, Paragraphs: paragraphs})
	}
	if len(parts) == 0 {
		return nil, ErrNoTextFound
	}
	return parts, nil
}

// extractDocx reads every word/*.xml part in archive order.
func (p *Pipeline) extractDocx(ctx context.Context, data []byte) (*Document, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}
	parts, err := p.extractRuns(ctx, entriesIn(zr, "word/", ""), wordRuns)
	if err != nil {
		return nil, err
	}
	return &Document{Parts: parts}, nil
}

// extractPptx reads ppt/slides/slideN.xml in slide order.
func (p *Pipeline) extractPptx(ctx context.Context, data []byte) (*Document, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}
	slides := entriesIn(zr, "ppt/slides/", "slide")
	sortByNumber(slides)
	parts, err := p.extractRuns(ctx, slides, drawingRuns)
	if err != nil {
		return nil, err
	}
	return &Document{Parts: parts}, nil
}
