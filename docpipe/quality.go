package docpipe

import (
	"regexp"
	"strings"
	"unicode"
)

// ExtractionQuality describes how much usable text a PDF text layer gave.
type ExtractionQuality struct {
	PageCount       int     `json:"page_count"`
	EmptyPages      int     `json:"empty_pages"`
	CharsPerPage    float64 `json:"chars_per_page"`
	PrintableRatio  float64 `json:"printable_ratio"`
	WordlikeRatio   float64 `json:"wordlike_ratio"`
	HasImageStreams bool    `json:"has_image_streams"`
	VisualRefCount  int     `json:"visual_ref_count"`
}

// NeedsOCR reports a text layer too thin or too noisy to trust, typically a
// scanned document.
func (q *ExtractionQuality) NeedsOCR() bool {
	return (q.CharsPerPage < 50 && q.HasImageStreams) || q.PrintableRatio < 0.85
}

// HasVisualGap reports text that cites figures or tables which only exist as images.
func (q *ExtractionQuality) HasVisualGap() bool {
	return q.VisualRefCount > 0 && q.HasImageStreams
}

func assessQuality(pages []string, hasImages bool) *ExtractionQuality {
	q := &ExtractionQuality{
		PageCount:       len(pages),
		HasImageStreams: hasImages,
	}
	chars := 0
	for _, p := range pages {
		if p == "" {
			q.EmptyPages++
		}
		chars += len([]rune(p))
	}
	if q.PageCount > 0 {
		q.CharsPerPage = float64(chars) / float64(q.PageCount)
	}
	full := strings.Join(pages, "\n")
	q.PrintableRatio = printableRatio(full)
	q.WordlikeRatio = wordlikeRatio(full)
	q.VisualRefCount = countVisualRefs(full)
	return q
}

// printableRatio is the share of printable runes, counting private-use,
// replacement and control characters (except TAB, LF, CR) as noise.
func printableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if isNoiseRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isNoiseRune(r rune) bool {
	switch {
	case r >= 0xE000 && r <= 0xF8FF:
		return true
	case r == unicode.ReplacementChar:
		return true
	case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
		return true
	}
	return false
}

// wordlikeRatio is the share of whitespace-separated tokens 2 to 15 runes long.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	n := 0
	for _, f := range fields {
		if l := len([]rune(f)); l >= 2 && l <= 15 {
			n++
		}
	}
	return float64(n) / float64(len(fields))
}

var visualRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(see|refer\s+to|cf\.?|voir)\s+(the\s+|la\s+)?(figure|fig\.?|table|tableau|chart|diagram|diagramme|image|illustration|graph|sch[eé]ma)\s*\d`),
	regexp.MustCompile(`(?i)(figure|fig\.?|table|tableau)\s+\d+`),
}

func countVisualRefs(text string) int {
	n := 0
	for _, pat := range visualRefPatterns {
		n += len(pat.FindAllStringIndex(text, -1))
	}
	return n
}
