package docpipe

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const nsODFText = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"

// extractODT reads the text:h and text:p elements of content.xml. The first
// heading becomes the title.
func (p *Pipeline) extractODT(data []byte) (*Document, error) {
	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}
	var content []byte
	for _, f := range zr.File {
		if f.Name == "content.xml" {
			if content, err = readZipEntry(f, p.cfg.MaxEntrySize); err != nil {
				return nil, err
			}
			break
		}
	}
	if content == nil {
		return nil, fmt.Errorf("%w: content.xml not found", ErrCorruptArchive)
	}

	title, paragraphs, err := parseODTContent(content)
	if err != nil {
		return nil, fmt.Errorf("%w: parse content.xml: %v", ErrCorruptArchive, err)
	}
	if len(paragraphs) == 0 {
		return nil, ErrNoTextFound
	}
	return &Document{
		Title: title,
		Parts: []Part{{Name: "content.xml", Paragraphs: paragraphs}},
	}, nil
}

func parseODTContent(data []byte) (string, []string, error) {
	dec := newDecoder(data)

	var (
		title      string
		paragraphs []string
		current    strings.Builder
		depth      int // open text:h / text:p elements
		isHeading  bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return title, paragraphs, nil
		}
		if err != nil {
			return "", nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsODFText {
				continue
			}
			switch t.Name.Local {
			case "h", "p":
				if depth == 0 {
					current.Reset()
					isHeading = t.Name.Local == "h"
				}
				depth++
			case "tab":
				if depth > 0 {
					current.WriteByte('\t')
				}
			case "line-break":
				if depth > 0 {
					current.WriteByte('\n')
				}
			case "s":
				if depth > 0 {
					n := 1
					if c, err := strconv.Atoi(attr(t, "c")); err == nil && c > 0 {
						n = c
					}
					current.WriteString(strings.Repeat(" ", n))
				}
			}

		case xml.CharData:
			if depth > 0 {
				current.Write(t)
			}

		case xml.EndElement:
			if t.Name.Space != nsODFText || (t.Name.Local != "h" && t.Name.Local != "p") || depth == 0 {
				continue
			}
			depth--
			if depth > 0 {
				continue
			}
			text := strings.TrimSpace(current.String())
			if text == "" {
				continue
			}
			if isHeading && title == "" {
				title = text
			}
			paragraphs = append(paragraphs, text)
		}
	}
}
