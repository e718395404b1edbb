package ooxml

import (
	"strconv"
	"strings"
)

const nsSpreadsheetML = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"

const nsOfficeRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

// Xlsx builds a single-sheet SpreadsheetML workbook. Each row is one <row>;
// cells are inline strings addressed A1, B1 and so on. A row without any
// non-empty cell is written as a single A cell holding a space, so every
// input row stays visible. Empty cells inside a wider row are omitted.
func Xlsx(rows [][]string, opts ...Option) (*Package, error) {
	o := buildOptions(opts)

	var sheet strings.Builder
	sheet.WriteString(xmlHeader)
	sheet.WriteString(`<worksheet xmlns="` + nsSpreadsheetML + `"><sheetData>`)
	for i, row := range rows {
		writeXlsxRow(&sheet, i+1, row)
	}
	sheet.WriteString(`</sheetData></worksheet>`)

	workbook := xmlHeader +
		`<workbook xmlns="` + nsSpreadsheetML + `" xmlns:r="` + nsOfficeRelationships + `">` +
		`<sheets><sheet name="Sheet1" sheetId="1" r:id="rId1"/></sheets></workbook>`

	wbRels, err := relationshipsXML([]Relationship{
		{ID: "rId1", Type: relWorksheet, Target: "worksheets/sheet1.xml"},
	})
	if err != nil {
		return nil, err
	}

	parts := []part{
		{name: "xl/workbook.xml", contentType: ctXlsxMain, data: []byte(workbook)},
		{name: "xl/_rels/workbook.xml.rels", data: wbRels},
		{name: "xl/worksheets/sheet1.xml", contentType: ctWorksheet, data: []byte(sheet.String())},
	}
	return assemble(FormatXlsx, o, mainPart{name: "xl/workbook.xml"}, parts)
}

// MaxColumns is the widest sheet SpreadsheetML allows (column XFD). Cells
// beyond it are not written.
const MaxColumns = 16384

func writeXlsxRow(sb *strings.Builder, n int, row []string) {
	if len(row) > MaxColumns {
		row = row[:MaxColumns]
	}
	rowRef := strconv.Itoa(n)
	sb.WriteString(`<row r="` + rowRef + `">`)
	written := 0
	for col, cell := range row {
		if cell == "" {
			continue
		}
		writeInlineCell(sb, ColumnName(col)+rowRef, cell)
		written++
	}
	if written == 0 {
		writeInlineCell(sb, "A"+rowRef, " ")
	}
	sb.WriteString(`</row>`)
}

func writeInlineCell(sb *strings.Builder, ref, text string) {
	sb.WriteString(`<c r="` + ref + `" t="inlineStr"><is><t xml:space="preserve">`)
	sb.WriteString(Escape(text))
	sb.WriteString(`</t></is></c>`)
}

// ColumnName returns the spreadsheet column letters for a zero-based index:
// 0 is A, 25 is Z, 26 is AA.
func ColumnName(i int) string {
	var buf [8]byte
	pos := len(buf)
	for i >= 0 {
		pos--
		buf[pos] = byte('A' + i%26)
		i = i/26 - 1
	}
	return string(buf[pos:])
}
