package convert

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/docforge/docpipe"
)

// renderTXT writes the extracted text with a trailing newline.
func renderTXT(doc *docpipe.Document) []byte {
	text := doc.Text()
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return []byte(text)
}

const rtfHeader = `{\rtf1\ansi\deff0 {\fonttbl {\f0 Times New Roman;}}` + "\n" + `\f0\fs24 `

// renderRTF writes text as a single-font RTF document.
func renderRTF(doc *docpipe.Document) []byte {
	var sb strings.Builder
	sb.WriteString(rtfHeader)
	writeRTFText(&sb, doc.Text())
	sb.WriteString("\n}")
	return []byte(sb.String())
}

// writeRTFText escaps the RTF control characters, maps newlines to \par and
// writes non-ASCII runes as \uN? escapes, N being a signed 16-bit UTF-16 unit.
func writeRTFText(sb *strings.Builder, text string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, r := range text {
		switch {
		case r == '\\' || r == '{' || r == '}':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString("\\par\n")
		case r == '\t':
			sb.WriteString("\\tab ")
		case r < 0x20:
			// other control characters are dropped
		case r < 0x80:
			sb.WriteRune(r)
		default:
			for _, u := range utf16.Encode([]rune{r}) {
				fmt.Fprintf(sb, "\\u%d?", int16(u))
			}
		}
	}
}

// renderCSV writes spreadsheet rows as RFC 4180 CSV. Rows are padded to the
// widest row so every record has the same field count.
func renderCSV(doc *docpipe.Document) ([]byte, error) {
	rows := doc.Rows
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range rows {
		rec := r
		if len(r) < width {
			rec = make([]string, width)
			copy(rec, r)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderHTML writes a standalone HTML page. An HTML source is re-emitted
// through the sanitizer; other sources become one <p> per paragraph.
func (c *Converter) renderHTML(doc *docpipe.Document, raw []byte) ([]byte, error) {
	var body []*html.Node
	if doc.Format == docpipe.FormatHTML {
		clean := c.sanitizer.SanitizeBytes(raw)
		ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
		nodes, err := html.ParseFragment(bytes.NewReader(clean), ctx)
		if err != nil {
			return nil, fmt.Errorf("parse sanitized html: %w", err)
		}
		body = nodes
	} else {
		for _, para := range doc.Paragraphs() {
			body = append(body, paragraphNode(para))
		}
	}
	return htmlPage(doc.Title, body)
}

// paragraphNode builds <p>text</p>, with <br> for embedded newlines.
func paragraphNode(text string) *html.Node {
	p := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			p.AppendChild(&html.Node{Type: html.ElementNode, Data: "br", DataAtom: atom.Br})
		}
		if line != "" {
			p.AppendChild(&html.Node{Type: html.TextNode, Data: line})
		}
	}
	return p
}

// htmlPage wraps body nodes in a complete UTF-8 document.
func htmlPage(title string, body []*html.Node) ([]byte, error) {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	head := element(atom.Head)
	head.AppendChild(&html.Node{
		Type: html.ElementNode, Data: "meta", DataAtom: atom.Meta,
		Attr: []html.Attribute{{Key: "charset", Val: "utf-8"}},
	})
	if title != "" {
		t := element(atom.Title)
		t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
		head.AppendChild(t)
	}
	bodyEl := element(atom.Body)
	for _, n := range body {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		bodyEl.AppendChild(n)
	}
	root.AppendChild(head)
	root.AppendChild(bodyEl)
	doc.AppendChild(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
}

// renderMD converts an HTML source to Markdown.
func (c *Converter) renderMD(raw []byte) ([]byte, error) {
	md, err := c.markdown.ConvertString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("html to markdown: %w", err)
	}
	md = strings.TrimSpace(md)
	if md != "" {
		md += "\n"
	}
	return []byte(md), nil
}
