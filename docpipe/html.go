package docpipe

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)font-size\s*:\s*0[^1-9]`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0[^.]`),
}

func hasHiddenStyle(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "hidden" {
			return true
		}
		if a.Key != "style" {
			continue
		}
		for _, pat := range hiddenStylePatterns {
			if pat.MatchString(a.Val + ";") {
				return true
			}
		}
	}
	return false
}

// extractHTML returns one paragraph per block element (headings,
// paragraphs, list items, table rows, preformatted text). Script, style and
// hidden elements are skipped.
func extractHTML(data []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: html: %v", ErrExtraction, err)
	}

	var paragraphs []string
	walkHTMLBlocks(root, &paragraphs)
	if len(paragraphs) == 0 {
		if text := collectHTMLText(root); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return &Document{
		Title: findHTMLTitle(root),
		Parts: []Part{{Paragraphs: paragraphs}},
	}, nil
}

func findHTMLTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return strings.TrimSpace(collectHTMLText(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findHTMLTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func walkHTMLBlocks(n *html.Node, out *[]string) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		}
		if hasHiddenStyle(n) {
			return
		}
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
			atom.P, atom.Li, atom.Tr, atom.Blockquote, atom.Dt, atom.Dd, atom.Figcaption:
			if text := collectHTMLText(n); text != "" {
				*out = append(*out, text)
			}
			return
		case atom.Pre:
			if text := strings.Trim(rawHTMLText(n), "\n"); text != "" {
				*out = append(*out, text)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTMLBlocks(c, out)
	}
}

// collectHTMLText returns the visible text of a subtree with whitespace
// collapsed. Table cells are separated by TAB and <br> by a newline.
func collectHTMLText(n *html.Node) string {
	var sb strings.Builder
	pendingSpace := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if n.Data == "" {
				return
			}
			if isHTMLSpace(n.Data[0]) {
				pendingSpace = true
			}
			for i, word := range strings.Fields(n.Data) {
				if (i > 0 || pendingSpace) && sb.Len() > 0 && !endsWithBreak(&sb) {
					sb.WriteByte(' ')
				}
				sb.WriteString(word)
			}
			pendingSpace = isHTMLSpace(n.Data[len(n.Data)-1])
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.Br:
				sb.WriteByte('\n')
				pendingSpace = false
				return
			case atom.Td, atom.Th:
				if sb.Len() > 0 {
					sb.WriteByte('\t')
				}
				pendingSpace = false
			}
			if hasHiddenStyle(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func isHTMLSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func endsWithBreak(sb *strings.Builder) bool {
	s := sb.String()
	return s != "" && (s[len(s)-1] == '\n' || s[len(s)-1] == '\t')
}

func rawHTMLText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
