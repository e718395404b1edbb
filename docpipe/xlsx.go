package docpipe

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxColumns is the widest sheet SpreadsheetML allows (column XFD).
const maxColumns = 16384

// extractXlsx resolves the shared string table first, then reads every
// worksheet in sheet order. Each sheet becomes one part whose paragraphs are
// rows with cells joined by TAB. All rows are also kept in Document.Rows.
func (p *Pipeline) extractXlsx(ctx context.Context, data []byte) (*Document, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}

	var shared []string
	for _, f := range zr.File {
		if f.Name != "xl/sharedStrings.xml" {
			continue
		}
		raw, err := readZipEntry(f, p.cfg.MaxEntrySize)
		if err != nil {
			return nil, err
		}
		if shared, err = parseSharedStrings(raw); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrCorruptArchive, f.Name, err)
		}
		break
	}

	sheets := entriesIn(zr, "xl/worksheets/", "")
	sortByNumber(sheets)

	doc := &Document{}
	for _, f := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := readZipEntry(f, p.cfg.MaxEntrySize)
		if err != nil {
			return nil, err
		}
		rows, cells, err := parseWorksheet(raw, shared)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrCorruptArchive, f.Name, err)
		}
		if cells == 0 {
			continue
		}
		part := Part{Name: f.Name, Paragraphs: make([]string, len(rows))}
		for i, row := range rows {
			part.Paragraphs[i] = strings.Join(row, "\t")
		}
		doc.Parts = append(doc.Parts, part)
		doc.Rows = append(doc.Rows, rows...)
	}
	if len(doc.Parts) == 0 {
		return nil, ErrNoTextFound
	}
	return doc, nil
}

// parseSharedStrings reads xl/sharedStrings.xml. Each <si> contributes one
// string: its plain <t> or the concatenation of its rich-text runs.
// Phonetic hints (<rPh>) are not part of the value.
func parseSharedStrings(data []byte) ([]string, error) {
	dec := newDecoder(data)

	var (
		out     []string
		current strings.Builder
		inSI    bool
		inT     bool
		inRPh   bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsSpreadsheetML {
				continue
			}
			switch t.Name.Local {
			case "si":
				inSI = true
				current.Reset()
			case "rPh":
				inRPh = true
			case "t":
				inT = inSI && !inRPh
			}
		case xml.CharData:
			if inT {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Space != nsSpreadsheetML {
				continue
			}
			switch t.Name.Local {
			case "si":
				out = append(out, current.String())
				inSI = false
			case "rPh":
				inRPh = false
			case "t":
				inT = false
			}
		}
	}
}

// parseWorksheet returns the sheet's rows in document order. Cells are
// placed at the column named by their r attribute, so gaps inside a row are
// kept as empty strings. It also reports how many non-empty cells it saw.
func parseWorksheet(data []byte, shared []string) ([][]string, int, error) {
	dec := newDecoder(data)

	var (
		rows    [][]string
		row     []string
		inRow   bool
		cells   int
		col     int
		cellRef string
		cellTyp string
		value   strings.Builder
		inValue bool
		inCell  bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return rows, cells, nil
		}
		if err != nil {
			return nil, 0, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsSpreadsheetML {
				continue
			}
			switch t.Name.Local {
			case "row":
				inRow = true
				row = nil
				col = 0
			case "c":
				if !inRow {
					continue
				}
				inCell = true
				cellRef, cellTyp = attr(t, "r"), attr(t, "t")
				value.Reset()
			case "v":
				inValue = inCell
			case "t":
				// Inline string text, <is><t>, or a rich run inside it.
				inValue = inCell && cellTyp == "inlineStr"
			}
		case xml.CharData:
			if inValue {
				value.Write(t)
			}
		case xml.EndElement:
			if t.Name.Space != nsSpreadsheetML {
				continue
			}
			switch t.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				if !inCell {
					continue
				}
				inCell = false
				if idx := columnIndex(cellRef); idx >= 0 {
					col = idx
				}
				text := cellText(cellTyp, value.String(), shared)
				if text != "" && col < maxColumns {
					for len(row) < col {
						row = append(row, "")
					}
					row = append(row, text)
					cells++
				}
				col++
			case "row":
				inRow = false
				rows = append(rows, row)
			}
		}
	}
}

// cellText resolves a raw cell value according to its type attribute.
func cellText(typ, raw string, shared []string) string {
	switch typ {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "b":
		switch strings.TrimSpace(raw) {
		case "1":
			return "TRUE"
		case "0":
			return "FALSE"
		}
		return raw
	default:
		return raw
	}
}

// columnIndex converts the letters of a cell reference ("AB12") into a
// zero-based column, or -1 when there are none.
func columnIndex(ref string) int {
	n := 0
	letters := 0
	for _, c := range ref {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			break
		}
		n = n*26 + int(c-'A') + 1
		letters++
		if letters > 3 {
			return -1
		}
	}
	if letters == 0 {
		return -1
	}
	return n - 1
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
