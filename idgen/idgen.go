// Package idgen provides pluggable ID generation.
//
// Conversions and requests are identified by prefixed UUIDv7 strings, which
// sort by creation time in the journal.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7. Prefixed variants compose on top.
var Default Generator = UUIDv7()

// Conversion and Request are the generators used for journal rows and
// request-scoped log correlation.
var (
	Conversion = Prefixed("conv_", Default)
	Request    = Prefixed("req_", Default)
)

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID, optionally carrying a "xxx_" prefix, and returns
// it unchanged.
func Parse(s string) (string, error) {
	raw := s
	if i := strings.IndexByte(s, '_'); i >= 0 {
		raw = s[i+1:]
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return s, nil
}
