package docpipe

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// TJ kerning adjustments below this value (thousandths of an em) are
// rendered as a word gap.
const tjSpaceThreshold = -200

type pdfTokenKind int

const (
	tokOther pdfTokenKind = iota
	tokString
	tokNumber
	tokOperator
	tokArrayOpen
	tokArrayClose
)

type pdfToken struct {
	kind pdfTokenKind
	text string  // decoded string or operator keyword
	num  float64 // tokNumber
}

// pdfLexer splits a content stream into operands and operators.
type pdfLexer struct {
	data []byte
	pos  int
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *pdfLexer) next() (pdfToken, bool) {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isPDFSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			return pdfToken{kind: tokString, text: l.literalString()}, true
		case c == '<':
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
				l.pos += 2
				return pdfToken{kind: tokOther}, true
			}
			return l.hexString(), true
		case c == '>':
			l.pos++
			if l.pos < len(l.data) && l.data[l.pos] == '>' {
				l.pos++
			}
			return pdfToken{kind: tokOther}, true
		case c == '[':
			l.pos++
			return pdfToken{kind: tokArrayOpen}, true
		case c == ']':
			l.pos++
			return pdfToken{kind: tokArrayClose}, true
		case c == '/':
			l.pos++
			l.word()
			return pdfToken{kind: tokOther}, true
		case c == '{' || c == '}' || c == ')':
			l.pos++
			return pdfToken{kind: tokOther}, true
		default:
			w := l.word()
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return pdfToken{kind: tokNumber, num: n}, true
			}
			if w == "ID" {
				l.skipInlineImage()
			}
			return pdfToken{kind: tokOperator, text: w}, true
		}
	}
	return pdfToken{}, false
}

func (l *pdfLexer) word() string {
	start := l.pos
	for l.pos < len(l.data) && !isPDFSpace(l.data[l.pos]) && !isPDFDelim(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// skipInlineImage jumps past binary inline image data up to the EI operator.
func (l *pdfLexer) skipInlineImage() {
	for i := l.pos; i+2 <= len(l.data); i++ {
		if l.data[i] == 'E' && l.data[i+1] == 'I' &&
			i > 0 && isPDFSpace(l.data[i-1]) &&
			(i+2 == len(l.data) || isPDFSpace(l.data[i+2])) {
			l.pos = i + 2
			return
		}
	}
	l.pos = len(l.data)
}

// literalString decodes a (string) with balanced parentheses and escapes.
func (l *pdfLexer) literalString() string {
	l.pos++ // (
	var buf []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			buf = append(buf, c)
		case ')':
			depth--
			if depth == 0 {
				return decodePDFText(buf)
			}
			buf = append(buf, c)
		case '\\':
			if l.pos >= len(l.data) {
				break
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; k++ {
						val = val*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					buf = append(buf, byte(val))
				} else {
					buf = append(buf, e)
				}
			}
		default:
			buf = append(buf, c)
		}
	}
	return decodePDFText(buf)
}

// hexString decodes <48656C6C6F>. Glyph-id strings from composite fonts do
// not decode to text and are dropped.
func (l *pdfLexer) hexString() pdfToken {
	l.pos++ // <
	end := bytes.IndexByte(l.data[l.pos:], '>')
	if end < 0 {
		l.pos = len(l.data)
		return pdfToken{kind: tokOther}
	}
	raw := l.data[l.pos : l.pos+end]
	l.pos += end + 1

	digits := make([]byte, 0, len(raw)+1)
	for _, c := range raw {
		if !isPDFSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	b := make([]byte, hex.DecodedLen(len(digits)))
	if _, err := hex.Decode(b, digits); err != nil {
		return pdfToken{kind: tokOther}
	}
	text := decodePDFText(b)
	for _, r := range text {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return pdfToken{kind: tokString}
		}
	}
	return pdfToken{kind: tokString, text: text}
}

// decodePDFText turns string bytes into UTF-8: UTF-16BE when a byte order
// mark is present, UTF-8 when valid, Latin-1 otherwise.
func decodePDFText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
		u := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	if utf8.Valid(b) {
		return string(b)
	}
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = rune(c)
	}
	return string(rs)
}

// extractTextFromStream interprets the text operators of a content stream:
// Tj, TJ, ' and " show text; Td, TD, Tm and T* move the pen. Vertical moves
// start a new line, horizontal moves insert a space.
func extractTextFromStream(data []byte) string {
	var (
		sb       strings.Builder
		operands []pdfToken
		lastTmY  float64
		haveTm   bool
	)
	newline := func() {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
	}
	space := func() {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
	}
	lastString := func() string {
		for i := len(operands) - 1; i >= 0; i-- {
			if operands[i].kind == tokString {
				return operands[i].text
			}
		}
		return ""
	}
	number := func(fromEnd int) (float64, bool) {
		var nums []float64
		for _, op := range operands {
			if op.kind == tokNumber {
				nums = append(nums, op.num)
			}
		}
		if fromEnd > len(nums) {
			return 0, false
		}
		return nums[len(nums)-fromEnd], true
	}

	lex := &pdfLexer{data: data}
	for {
		tok, ok := lex.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			sb.WriteString(lastString())
		case "TJ":
			for _, op := range operands {
				switch {
				case op.kind == tokString:
					sb.WriteString(op.text)
				case op.kind == tokNumber && op.num < tjSpaceThreshold:
					space()
				}
			}
		case "'":
			newline()
			sb.WriteString(lastString())
		case `"`:
			newline()
			sb.WriteString(lastString())
		case "Td", "TD":
			if ty, ok := number(1); ok && ty != 0 {
				newline()
			} else {
				space()
			}
		case "Tm":
			if y, ok := number(1); ok {
				if haveTm && y != lastTmY {
					newline()
				} else {
					space()
				}
				lastTmY, haveTm = y, true
			}
		case "T*":
			newline()
		case "ET":
			haveTm = false
		}
		operands = operands[:0]
	}
	return cleanPDFText(sb.String())
}

// cleanPDFText collapses whitespace inside each line, drops unprintable
// runes and blank lines.
func cleanPDFText(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		var sb strings.Builder
		prevSpace := false
		for _, r := range line {
			switch {
			case unicode.IsSpace(r):
				if !prevSpace && sb.Len() > 0 {
					sb.WriteByte(' ')
					prevSpace = true
				}
			case unicode.IsPrint(r):
				sb.WriteRune(r)
				prevSpace = false
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}
