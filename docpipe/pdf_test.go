package docpipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestExtractPDF_Simple(t *testing.T) {
	// WHAT: PDF with text content extracts correctly with quality metrics.
	// WHY: Core PDF extraction using pdfcpu must produce usable text.
	dir := t.TempDir()
	path := filepath.Join(dir, "text.pdf")
	raw := buildRealTextPDF("Hello World from PDF extraction test")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}

	pipe := New(Config{})
	doc, err := pipe.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Quality == nil {
		t.Fatal("expected non-nil Quality for PDF")
	}
	if doc.Quality.PageCount != 1 {
		t.Errorf("page count = %d", doc.Quality.PageCount)
	}
	if doc.Text() != "Hello World from PDF extraction test" {
		t.Errorf("text = %q", doc.Text())
	}
	if doc.Parts[0].Page != 1 {
		t.Errorf("page number = %d", doc.Parts[0].Page)
	}
}

func TestExtractPDF_MultiPage(t *testing.T) {
	// WHAT: Pages come back in order, joined by page separators naming the
	// page that follows.
	// WHY: Converted text files keep the page structure readable.
	raw := buildTextPDF("Alpha", "Beta", "Gamma")

	doc, err := New(Config{}).ExtractBytes(context.Background(), raw, FormatPDF)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := doc.Pages(); !reflect.DeepEqual(got, []string{"Alpha", "Beta", "Gamma"}) {
		t.Fatalf("pages = %q", got)
	}
	want := "Alpha\n\n--- Page 2 ---\n\nBeta\n\n--- Page 3 ---\n\nGamma"
	if doc.Text() != want {
		t.Fatalf("text = %q, want %q", doc.Text(), want)
	}
	if doc.Title != "Alpha" {
		t.Errorf("title = %q", doc.Title)
	}
}

func TestExtractPDF_ImageOnly(t *testing.T) {
	// WHAT: PDF without text but with image XObject is reported as needing OCR.
	// WHY: Image-only PDFs must be flagged instead of converting to nothing.
	_, err := New(Config{}).ExtractBytes(context.Background(), buildImageOnlyPDF(), FormatPDF)
	if err == nil {
		t.Fatal("expected an error for an image-only PDF")
	}
	// pdfcpu may reject the truncated JPEG payload before extraction starts.
	if errors.Is(err, ErrCorruptPDF) {
		return
	}
	if !errors.Is(err, ErrNoTextFound) {
		t.Fatalf("got %v, want ErrNoTextFound", err)
	}
	if !strings.Contains(err.Error(), "scanned") {
		t.Errorf("expected OCR hint, got: %v", err)
	}
}

func TestExtractPDF_VisualRefs(t *testing.T) {
	// WHAT: Text with "voir figure 3" is counted as a visual reference.
	// WHY: Visual references without image extraction = information loss.
	raw := buildRealTextPDF("voir figure 3 et cf. tableau 2 pour les details")

	doc, err := New(Config{}).ExtractBytes(context.Background(), raw, FormatPDF)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Quality.VisualRefCount == 0 {
		t.Error("expected VisualRefCount > 0 for text with 'voir figure' patterns")
	}
	if doc.Quality.HasVisualGap() {
		t.Error("no images: there is no visual gap")
	}
}

func TestExtractPDF_Corrupt(t *testing.T) {
	_, err := New(Config{}).ExtractBytes(context.Background(), []byte("%PDF-1.4\nnot really"), FormatPDF)
	if !errors.Is(err, ErrCorruptPDF) {
		t.Fatalf("got %v, want ErrCorruptPDF", err)
	}
}

// fakePages is an in-memory PageSource.
type fakePages struct {
	pages  []string
	errs   map[int]error
	images bool
}

func (f *fakePages) PageCount() int { return len(f.pages) }

func (f *fakePages) PageText(n int) (string, error) {
	if err := f.errs[n]; err != nil {
		return "", err
	}
	return f.pages[n-1], nil
}

func (f *fakePages) HasImages() bool { return f.images }

func TestExtractPages(t *testing.T) {
	pipe := New(Config{})
	ctx := context.Background()

	t.Run("separators", func(t *testing.T) {
		doc, err := pipe.ExtractPages(ctx, &fakePages{pages: []string{"A", "B", "C"}})
		if err != nil {
			t.Fatal(err)
		}
		if doc.Text() != "A\n\n--- Page 2 ---\n\nB\n\n--- Page 3 ---\n\nC" {
			t.Fatalf("text = %q", doc.Text())
		}
	})

	t.Run("empty pages keep numbering", func(t *testing.T) {
		doc, err := pipe.ExtractPages(ctx, &fakePages{pages: []string{"", "two", ""}})
		if err != nil {
			t.Fatal(err)
		}
		if len(doc.Parts) != 3 || doc.Parts[1].Page != 2 {
			t.Fatalf("parts = %+v", doc.Parts)
		}
		if doc.Text() != "\n\n--- Page 2 ---\n\ntwo\n\n--- Page 3 ---\n\n" {
			t.Fatalf("text = %q", doc.Text())
		}
		if doc.Quality.EmptyPages != 2 {
			t.Fatalf("empty pages = %d", doc.Quality.EmptyPages)
		}
	})

	t.Run("page error is skipped", func(t *testing.T) {
		src := &fakePages{pages: []string{"one", "two"}, errs: map[int]error{1: errors.New("bad stream")}}
		doc, err := pipe.ExtractPages(ctx, src)
		if err != nil {
			t.Fatal(err)
		}
		if got := doc.Pages(); !reflect.DeepEqual(got, []string{"", "two"}) {
			t.Fatalf("pages = %q", got)
		}
	})

	t.Run("no pages", func(t *testing.T) {
		_, err := pipe.ExtractPages(ctx, &fakePages{})
		if !errors.Is(err, ErrEmptyDocument) {
			t.Fatalf("got %v, want ErrEmptyDocument", err)
		}
	})

	t.Run("no text", func(t *testing.T) {
		_, err := pipe.ExtractPages(ctx, &fakePages{pages: []string{"", ""}})
		if !errors.Is(err, ErrNoTextFound) {
			t.Fatalf("got %v, want ErrNoTextFound", err)
		}
	})

	t.Run("scanned", func(t *testing.T) {
		_, err := pipe.ExtractPages(ctx, &fakePages{pages: []string{""}, images: true})
		if !errors.Is(err, ErrNoTextFound) || !strings.Contains(err.Error(), "scanned") {
			t.Fatalf("got %v, want ErrNoTextFound with OCR hint", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := pipe.ExtractPages(cctx, &fakePages{pages: []string{"x"}})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v, want context.Canceled", err)
		}
	})
}

func TestJoinPages(t *testing.T) {
	tests := []struct {
		pages []string
		want  string
	}{
		{nil, ""},
		{[]string{"only"}, "only"},
		{[]string{"a", "b"}, "a\n\n--- Page 2 ---\n\nb"},
	}
	for _, tt := range tests {
		if got := JoinPages(tt.pages); got != tt.want {
			t.Errorf("JoinPages(%q) = %q, want %q", tt.pages, got, tt.want)
		}
	}
}

func TestExtractTextFromStream(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{"Tj", "BT /F1 12 Tf 72 720 Td (Hello World) Tj ET", "Hello World"},
		{"escapes", `BT (a\(b\) \\ c\101) Tj ET`, `a(b) \ cA`},
		{"nested parens", "BT (f(x)) Tj ET", "f(x)"},
		{"TJ kerning", "BT [(Hel) 20 (lo) -300 (World)] TJ ET", "Hello World"},
		{"Td newline", "BT (one) Tj 0 -14 Td (two) Tj ET", "one\ntwo"},
		{"Td same line", "BT (one) Tj 50 0 Td (two) Tj ET", "one two"},
		{"T*", "BT (one) Tj T* (two) Tj ET", "one\ntwo"},
		{"quote", "BT (one) Tj (two) ' ET", "one\ntwo"},
		{"Tm lines", "BT 1 0 0 1 72 700 Tm (a) Tj 1 0 0 1 72 680 Tm (b) Tj ET", "a\nb"},
		{"hex", "BT <48656C6C6F> Tj ET", "Hello"},
		{"utf16 hex", "BT <FEFF00E9007400E9> Tj ET", "été"},
		{"glyph ids dropped", "BT <00030004> Tj (ok) Tj ET", "ok"},
		{"comments", "% header\nBT (x) Tj ET", "x"},
		{"dict operand", "/P <</MCID 0>> BDC BT (tagged) Tj ET EMC", "tagged"},
		{"inline image", "BI /W 1 /H 1 ID \x00\xff) EI BT (after) Tj ET", "after"},
		{"no text", "q 1 0 0 1 0 0 cm Q", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTextFromStream([]byte(tt.stream)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodePDFText(t *testing.T) {
	if got := decodePDFText([]byte{0xFE, 0xFF, 0x00, 'A', 0x00, 0xE9}); got != "Aé" {
		t.Errorf("utf16: %q", got)
	}
	if got := decodePDFText([]byte("caf\xc3\xa9")); got != "café" {
		t.Errorf("utf8: %q", got)
	}
	if got := decodePDFText([]byte("caf\xe9")); got != "café" {
		t.Errorf("latin1: %q", got)
	}
}

// --- PDF test helpers ---

// buildRealTextPDF creates a one-page PDF with proper xref offsets.
func buildRealTextPDF(text string) []byte {
	return buildTextPDF(text)
}

// buildTextPDF creates a PDF with one page per argument. Objects: 1 catalog,
// 2 page tree, 3 font, then a page and a content stream per page.
func buildTextPDF(pages ...string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	total := 3 + 2*len(pages)
	offsets := make([]int, total+1)

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [" + strings.Join(kids, " ") + "] /Count " + pdfItoa(len(pages)) + " >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	for i, text := range pages {
		pageObj, contentObj := 4+2*i, 5+2*i

		escaped := strings.ReplaceAll(text, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, "(", `\(`)
		escaped = strings.ReplaceAll(escaped, ")", `\)`)
		stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + escaped + ") Tj\nET"

		offsets[pageObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>\nendobj\n", pageObj, contentObj)

		offsets[contentObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", contentObj, len(stream), stream)
	}

	xrefOffset := b.Len()
	b.WriteString("xref\n0 " + pdfItoa(total+1) + "\n")
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= total; i++ {
		b.WriteString(pdfPadOffset(offsets[i]))
		b.WriteString(" 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size " + pdfItoa(total+1) + " /Root 1 0 R >>\nstartxref\n")
	b.WriteString(pdfItoa(xrefOffset))
	b.WriteString("\n%%EOF\n")

	return []byte(b.String())
}

func buildImageOnlyPDF() []byte {
	imgData := "\xff\xd8\xff\xe0"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n")

	offsets[4] = b.Len()
	b.WriteString("4 0 obj\n<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Length ")
	b.WriteString(pdfItoa(len(imgData)))
	b.WriteString(" >>\nstream\n")
	b.WriteString(imgData)
	b.WriteString("\nendstream\nendobj\n")

	drawStream := "q 100 0 0 100 72 692 cm /Im1 Do Q"
	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Length ")
	b.WriteString(pdfItoa(len(drawStream)))
	b.WriteString(" >>\nstream\n")
	b.WriteString(drawStream)
	b.WriteString("\nendstream\nendobj\n")

	xrefOffset := b.Len()
	b.WriteString("xref\n0 6\n")
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		b.WriteString(pdfPadOffset(offsets[i]))
		b.WriteString(" 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n")
	b.WriteString(pdfItoa(xrefOffset))
	b.WriteString("\n%%EOF\n")
	return []byte(b.String())
}

func pdfItoa(n int) string {
	if n == 0 {
		return "0"
	}
	s := ""
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	return s
}

func pdfPadOffset(n int) string {
	s := pdfItoa(n)
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}
