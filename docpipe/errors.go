package docpipe

import (
	"errors"
	"fmt"
)

// ErrExtraction is the root of every extraction failure.
var ErrExtraction = errors.New("docpipe: extraction failed")

var (
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrExtraction)
	ErrCorruptArchive    = fmt.Errorf("%w: corrupt archive", ErrExtraction)
	ErrCorruptPDF        = fmt.Errorf("%w: unreadable pdf", ErrExtraction)
	ErrNoTextFound       = fmt.Errorf("%w: no text found", ErrExtraction)
	ErrEmptyDocument     = fmt.Errorf("%w: document has no pages", ErrExtraction)
	ErrFileTooLarge      = fmt.Errorf("%w: file too large", ErrExtraction)
)
