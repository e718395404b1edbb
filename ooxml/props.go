package ooxml

import "strings"

// w3cdtf is the dcterms:W3CDTF layout used in core.xml.
const w3cdtf = "2006-01-02T15:04:05Z"

func appXML(o options, extra string) []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">`)
	sb.WriteString("<Application>")
	sb.WriteString(Escape(o.creator))
	sb.WriteString("</Application>")
	sb.WriteString("<TotalTime>0</TotalTime>")
	sb.WriteString(extra)
	sb.WriteString("</Properties>")
	return []byte(sb.String())
}

func coreXML(o options) []byte {
	stamp := o.now.UTC().Format(w3cdtf)

	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	if o.title != "" {
		sb.WriteString("<dc:title>" + Escape(o.title) + "</dc:title>")
	}
	sb.WriteString("<dc:creator>" + Escape(o.creator) + "</dc:creator>")
	sb.WriteString(`<dcterms:created xsi:type="dcterms:W3CDTF">` + stamp + "</dcterms:created>")
	sb.WriteString(`<dcterms:modified xsi:type="dcterms:W3CDTF">` + stamp + "</dcterms:modified>")
	sb.WriteString("</cp:coreProperties>")
	return []byte(sb.String())
}
