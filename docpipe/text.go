package docpipe

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// extractText keeps one paragraph per line. Trailing blank lines and a
// UTF-8 byte order mark are dropped.
func extractText(data []byte) *Document {
	lines := splitTextLines(decodeText(data))
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return &Document{Parts: []Part{{Paragraphs: lines}}}
}

// extractMarkdown turns ATX headings into their own paragraphs and joins
// the lines of each body paragraph with a space.
func extractMarkdown(data []byte) *Document {
	var (
		title      string
		paragraphs []string
		current    strings.Builder
	)
	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
		current.Reset()
	}

	for _, line := range splitTextLines(decodeText(data)) {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			flush()
			heading := strings.TrimSpace(strings.Trim(trimmed, "#"))
			if heading != "" {
				if title == "" {
					title = heading
				}
				paragraphs = append(paragraphs, heading)
			}
			continue
		}
		if trimmed == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(trimmed)
	}
	flush()

	return &Document{Title: title, Parts: []Part{{Paragraphs: paragraphs}}}
}

// extractCSV reads comma-separated records. Rows may have differing widths.
func extractCSV(data []byte) (*Document, error) {
	r := csv.NewReader(strings.NewReader(decodeText(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv: %v", ErrExtraction, err)
		}
		rows = append(rows, rec)
	}

	paragraphs := make([]string, len(rows))
	for i, row := range rows {
		paragraphs[i] = strings.Join(row, "\t")
	}
	return &Document{Rows: rows, Parts: []Part{{Paragraphs: paragraphs}}}, nil
}

// decodeText strips a UTF-8 BOM and replaces invalid sequences.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}

func splitTextLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// firstLine returns the first non-blank line, truncated to 200 bytes on a
// rune boundary.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 200 {
			cut := 200
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			line = line[:cut]
		}
		return line
	}
	return ""
}
