package ooxml

import (
	"strings"
	"unicode/utf8"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape returns s safe for XML character data and attribute values.
// Characters XML 1.0 cannot carry are dropped.
func Escape(s string) string {
	return escaper.Replace(stripInvalidXML(s))
}

func stripInvalidXML(s string) string {
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !validRune(r, size) {
			break
		}
		i += size
	}
	if i == len(s) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	sb.WriteString(s[:i])
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if validRune(r, size) {
			sb.WriteString(s[i : i+size])
		}
		i += size
	}
	return sb.String()
}

// validRune rejects bytes that failed to decode. A literal U+FFFD decodes
// with size 3 and is kept.
func validRune(r rune, size int) bool {
	if r == utf8.RuneError && size <= 1 {
		return false
	}
	return isXMLChar(r)
}

// isXMLChar reports whether r is in the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r < 0x20:
		return false
	case r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}
