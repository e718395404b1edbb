package convert

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/hazyhaar/docforge/docpipe"
)

// Target formats.
const (
	TargetPDF  = "pdf"
	TargetDocx = "docx"
	TargetXlsx = "xlsx"
	TargetPptx = "pptx"
	TargetTXT  = "txt"
	TargetRTF  = "rtf"
	TargetCSV  = "csv"
	TargetHTML = "html"
	TargetHTM  = "htm"
	TargetMD   = "md"
)

// matrix lists the targets reachable from each source format.
var matrix = map[docpipe.Format][]string{
	docpipe.FormatPDF:  {TargetTXT, TargetDocx, TargetXlsx, TargetPptx},
	docpipe.FormatDocx: {TargetPDF, TargetTXT, TargetRTF},
	docpipe.FormatXlsx: {TargetPDF, TargetCSV, TargetTXT},
	docpipe.FormatPptx: {TargetPDF, TargetTXT},
	docpipe.FormatODT:  {TargetDocx, TargetPDF, TargetTXT, TargetRTF},
	docpipe.FormatTXT:  {TargetHTML, TargetRTF, TargetPDF, TargetDocx},
	docpipe.FormatMD:   {TargetTXT, TargetHTML, TargetRTF, TargetPDF, TargetDocx},
	docpipe.FormatHTML: {TargetTXT, TargetMD, TargetHTML, TargetHTM, TargetRTF, TargetPDF, TargetDocx},
	docpipe.FormatCSV:  {TargetXlsx, TargetTXT},
}

// Targets returns the formats a source of the given format can be converted
// to. ext is the source extension: when it names the same format, the
// identical target is left out, so an .html file offers htm and an .htm file
// offers html. A mislabeled file (a PDF named .docx) keeps every target.
func Targets(format docpipe.Format, ext string) []string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	same := false
	if f, err := docpipe.DetectExt(ext); err == nil && f == format {
		same = true
	}
	var out []string
	for _, t := range matrix[format] {
		if same && t == ext {
			continue
		}
		out = append(out, t)
	}
	return out
}

// AvailableFormats returns the conversion targets for path, judged by its
// extension. Unknown extensions have none.
func AvailableFormats(path string) []string {
	ext := filepath.Ext(path)
	format, err := docpipe.DetectExt(ext)
	if err != nil {
		return nil
	}
	return Targets(format, ext)
}

// NormalizeTarget lowercases a target name, drops a leading dot and maps
// aliases onto their canonical names.
func NormalizeTarget(target string) string {
	t := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(target), ".")))
	switch t {
	case "markdown":
		return TargetMD
	case "text":
		return TargetTXT
	}
	return t
}

// canConvert reports whether target is reachable from format.
func canConvert(format docpipe.Format, ext, target string) bool {
	return slices.Contains(Targets(format, ext), target)
}
