package ooxml

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	nsPresentationML = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"

	firstSlideID = 256

	// 16:9 slide and portrait notes page, in EMU.
	slideWidth  = 12192000
	slideHeight = 6858000
)

// Pptx builds a PresentationML package with one slide per element. Each
// line of a slide becomes its own paragraph in a single text box. The
// package carries one slide master, one blank layout and one theme.
func Pptx(slides []string, opts ...Option) (*Package, error) {
	o := buildOptions(opts)

	var pres strings.Builder
	pres.WriteString(xmlHeader)
	pres.WriteString(`<p:presentation xmlns:a="` + nsDrawingML + `" xmlns:r="` + nsOfficeRelationships + `" xmlns:p="` + nsPresentationML + `" saveSubsetFonts="1">`)
	pres.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	if len(slides) > 0 {
		pres.WriteString(`<p:sldIdLst>`)
		for i := range slides {
			fmt.Fprintf(&pres, `<p:sldId id="%d" r:id="rId%d"/>`, firstSlideID+i, i+3)
		}
		pres.WriteString(`</p:sldIdLst>`)
	}
	fmt.Fprintf(&pres, `<p:sldSz cx="%d" cy="%d"/><p:notesSz cx="%d" cy="%d"/>`, slideWidth, slideHeight, slideHeight, slideWidth)
	pres.WriteString(`</p:presentation>`)

	presRels := []Relationship{
		{ID: "rId1", Type: relSlideMaster, Target: "slideMasters/slideMaster1.xml"},
		{ID: "rId2", Type: relTheme, Target: "theme/theme1.xml"},
	}
	for i := range slides {
		presRels = append(presRels, Relationship{
			ID:     "rId" + strconv.Itoa(i+3),
			Type:   relSlide,
			Target: "slides/slide" + strconv.Itoa(i+1) + ".xml",
		})
	}

	presRelsXML, err := relationshipsXML(presRels)
	if err != nil {
		return nil, err
	}
	masterRels, err := relationshipsXML([]Relationship{
		{ID: "rId1", Type: relSlideLayout, Target: "../slideLayouts/slideLayout1.xml"},
		{ID: "rId2", Type: relTheme, Target: "../theme/theme1.xml"},
	})
	if err != nil {
		return nil, err
	}
	layoutRels, err := relationshipsXML([]Relationship{
		{ID: "rId1", Type: relSlideMaster, Target: "../slideMasters/slideMaster1.xml"},
	})
	if err != nil {
		return nil, err
	}
	slideRels, err := relationshipsXML([]Relationship{
		{ID: "rId1", Type: relSlideLayout, Target: "../slideLayouts/slideLayout1.xml"},
	})
	if err != nil {
		return nil, err
	}

	parts := []part{
		{name: "ppt/presentation.xml", contentType: ctPptxMain, data: []byte(pres.String())},
		{name: "ppt/_rels/presentation.xml.rels", data: presRelsXML},
		{name: "ppt/slideMasters/slideMaster1.xml", contentType: ctSlideMaster, data: []byte(slideMasterXML)},
		{name: "ppt/slideMasters/_rels/slideMaster1.xml.rels", data: masterRels},
		{name: "ppt/slideLayouts/slideLayout1.xml", contentType: ctSlideLayout, data: []byte(slideLayoutXML)},
		{name: "ppt/slideLayouts/_rels/slideLayout1.xml.rels", data: layoutRels},
		{name: "ppt/theme/theme1.xml", contentType: ctTheme, data: []byte(themeXML)},
	}
	for i, text := range slides {
		n := strconv.Itoa(i + 1)
		parts = append(parts,
			part{name: "ppt/slides/slide" + n + ".xml", contentType: ctSlide, data: slideXML(text)},
			part{name: "ppt/slides/_rels/slide" + n + ".xml.rels", data: slideRels},
		)
	}

	extra := "<Slides>" + strconv.Itoa(len(slides)) + "</Slides>"
	return assemble(FormatPptx, o, mainPart{name: "ppt/presentation.xml", appExtra: extra}, parts)
}

func slideXML(text string) []byte {
	if text == "" {
		text = " "
	}

	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<p:sld xmlns:a="` + nsDrawingML + `" xmlns:r="` + nsOfficeRelationships + `" xmlns:p="` + nsPresentationML + `">`)
	sb.WriteString(`<p:cSld><p:spTree>`)
	sb.WriteString(emptyGroupShape)
	sb.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="2" name="TextBox 1"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`)
	fmt.Fprintf(&sb, `<p:spPr><a:xfrm><a:off x="457200" y="457200"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>`,
		slideWidth-2*457200, slideHeight-2*457200)
	sb.WriteString(`<p:txBody><a:bodyPr wrap="square"><a:normAutofit/></a:bodyPr><a:lstStyle/>`)
	for _, line := range splitLines(text) {
		if line == "" {
			sb.WriteString(`<a:p><a:endParaRPr lang="en-US"/></a:p>`)
			continue
		}
		sb.WriteString(`<a:p><a:r><a:rPr lang="en-US" dirty="0"/><a:t>`)
		sb.WriteString(Escape(line))
		sb.WriteString(`</a:t></a:r></a:p>`)
	}
	sb.WriteString(`</p:txBody></p:sp>`)
	sb.WriteString(`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)
	return []byte(sb.String())
}
