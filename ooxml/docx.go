package ooxml

import "strings"

const nsWordprocessingML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// Docx builds a WordprocessingML package with one paragraph per element.
// An empty paragraph is written as a single space. Line breaks inside a
// paragraph become <w:br/>.
func Docx(paragraphs []string, opts ...Option) (*Package, error) {
	o := buildOptions(opts)

	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<w:document xmlns:w="` + nsWordprocessingML + `"><w:body>`)
	for _, p := range paragraphs {
		writeDocxParagraph(&sb, p)
	}
	sb.WriteString(`<w:sectPr/></w:body></w:document>`)

	docRels, err := relationshipsXML(nil)
	if err != nil {
		return nil, err
	}
	parts := []part{
		{name: "word/document.xml", contentType: ctDocxMain, data: []byte(sb.String())},
		{name: "word/_rels/document.xml.rels", data: docRels},
	}
	return assemble(FormatDocx, o, mainPart{name: "word/document.xml"}, parts)
}

func writeDocxParagraph(sb *strings.Builder, text string) {
	if text == "" {
		text = " "
	}
	sb.WriteString("<w:p><w:r>")
	for i, line := range splitLines(text) {
		if i > 0 {
			sb.WriteString("<w:br/>")
		}
		sb.WriteString(`<w:t xml:space="preserve">`)
		sb.WriteString(Escape(line))
		sb.WriteString("</w:t>")
	}
	sb.WriteString("</w:r></w:p>")
}

// splitLines splits on LF after normalising CRLF and lone CR.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}
