package convert

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/docforge/docpipe"
)

func TestWriteRTFText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "Hello", "Hello"},
		{"control chars", `a\b{c}`, `a\\b\{c\}`},
		{"newlines", "one\r\ntwo\nthree", "one\\par\ntwo\\par\nthree"},
		{"tab", "a\tb", `a\tab b`},
		{"latin", "Café", `Caf\u233?`},
		{"bmp", "5€", `5\u8364?`},
		{"surrogates", "😀", `\u-10179?\u-8704?`},
		{"dropped controls", "a\x00\x07b", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			writeRTFText(&sb, tt.in)
			if got := sb.String(); got != tt.want {
				t.Fatalf("writeRTFText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderRTF_Document(t *testing.T) {
	doc := &docpipe.Document{Format: docpipe.FormatTXT, Parts: []docpipe.Part{{Paragraphs: []string{"a", "b"}}}}
	got := string(renderRTF(doc))
	if !strings.HasPrefix(got, `{\rtf1\ansi\deff0`) || !strings.HasSuffix(got, "\n}") {
		t.Fatalf("rtf = %q", got)
	}
	if !strings.Contains(got, "a\\par\nb") {
		t.Fatalf("rtf body = %q", got)
	}
}

func TestRenderTXT(t *testing.T) {
	tests := []struct {
		paragraphs []string
		want       string
	}{
		{[]string{"x"}, "x\n"},
		{[]string{"x", ""}, "x\n"},
		{nil, ""},
	}
	for _, tt := range tests {
		doc := &docpipe.Document{Format: docpipe.FormatTXT, Parts: []docpipe.Part{{Paragraphs: tt.paragraphs}}}
		if got := string(renderTXT(doc)); got != tt.want {
			t.Errorf("renderTXT(%q) = %q, want %q", tt.paragraphs, got, tt.want)
		}
	}
}

func TestRenderCSV_PadsRows(t *testing.T) {
	doc := &docpipe.Document{Rows: [][]string{{"a"}, {"b", "c", "d"}, {}}}
	got, err := renderCSV(doc)
	if err != nil {
		t.Fatal(err)
	}
	if want := "a,,\nb,c,d\n,,\n"; string(got) != want {
		t.Fatalf("csv = %q, want %q", got, want)
	}
}

func TestParagraphNode(t *testing.T) {
	var buf bytes.Buffer
	if err := html.Render(&buf, paragraphNode("one\ntwo & <three>")); err != nil {
		t.Fatal(err)
	}
	if want := "<p>one<br/>two &amp; &lt;three&gt;</p>"; buf.String() != want {
		t.Fatalf("paragraph = %q, want %q", buf.String(), want)
	}
}

func TestHTMLPage_NoTitle(t *testing.T) {
	out, err := htmlPage("", []*html.Node{paragraphNode("x")})
	if err != nil {
		t.Fatal(err)
	}
	want := `<!DOCTYPE html><html><head><meta charset="utf-8"/></head><body><p>x</p></body></html>` + "\n"
	if string(out) != want {
		t.Fatalf("page = %q, want %q", out, want)
	}
}

func TestOfficeLayout(t *testing.T) {
	pdf := &docpipe.Document{Format: docpipe.FormatPDF, Parts: []docpipe.Part{
		{Page: 1, Paragraphs: []string{"l1", "l2"}},
		{Page: 2},
		{Page: 3, Paragraphs: []string{"l3"}},
	}}
	paras := docxParagraphs(pdf)
	if want := []string{"l1", "l2", "", "", "l3"}; strings.Join(paras, "|") != strings.Join(want, "|") {
		t.Fatalf("docx paragraphs = %q, want %q", paras, want)
	}
	rows := xlsxRows(pdf)
	if len(rows) != 3 || rows[2][0] != "l3" {
		t.Fatalf("xlsx rows = %q", rows)
	}

	csvDoc := &docpipe.Document{Format: docpipe.FormatCSV, Rows: [][]string{{"a", "b"}}}
	if got := xlsxRows(csvDoc); len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("csv rows = %q", got)
	}
}
