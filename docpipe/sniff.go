package docpipe

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
)

const (
	pdfMagic    = "%PDF"
	zipMagic    = "PK\x03\x04"
	odtMimetype = "application/vnd.oasis.opendocument.text"
)

// Sniff identifies PDF and Office/OpenDocument content from its bytes.
// A PDF must start with its header; text that merely quotes one is not a
// PDF. ZIP archives are classified by the entries they contain. Text
// formats are not recognised.
func Sniff(data []byte) (Format, bool) {
	if bytes.HasPrefix(data, []byte(pdfMagic)) {
		return FormatPDF, true
	}
	if !bytes.HasPrefix(data, []byte(zipMagic)) {
		return "", false
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", false
	}
	for _, f := range zr.File {
		switch f.Name {
		case "mimetype":
			if readMimetype(f) == odtMimetype {
				return FormatODT, true
			}
		case "word/document.xml":
			return FormatDocx, true
		case "xl/workbook.xml":
			return FormatXlsx, true
		case "ppt/presentation.xml":
			return FormatPptx, true
		}
	}
	return "", false
}

func readMimetype(f *zip.File) string {
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, 128))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
