// Package storezip writes ZIP archives whose members are stored without
// compression.
//
// The layout is the classic one: a local file header followed by the raw
// bytes for every member, then one central directory record per member,
// then a single end-of-central-directory record. ZIP64 is not produced, so an
// archive is limited to 65535 members and 4 GiB.
//
// Usage:
//
//	w := storezip.NewWriter()
//	w.AddStoredEntry("[Content_Types].xml", ct)
//	w.AddStoredEntry("_rels/.rels", rels)
//	data, err := w.Finalize()
package storezip

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"vimagination.zapto.org/byteio"
)

const (
	sigLocalFile  = 0x04034B50
	sigCentralDir = 0x02014B50
	sigEndRecord  = 0x06054B50

	zipVersion  = 20
	methodStore = 0
	flagUTF8    = 0x0800

	// EndRecordLen is the size of an end-of-central-directory record without comment.
	EndRecordLen = 22

	maxEntries = 0xFFFF
	maxUint32  = 0xFFFFFFFF
)

var (
	// ErrArchiveWrite is the root of every archive assembly failure.
	ErrArchiveWrite = errors.New("storezip: archive write failed")

	ErrInvalidPath   = fmt.Errorf("%w: invalid member path", ErrArchiveWrite)
	ErrDuplicatePath = fmt.Errorf("%w: duplicate member path", ErrArchiveWrite)
	ErrTooLarge      = fmt.Errorf("%w: archive exceeds zip limits", ErrArchiveWrite)
	ErrFinalized     = fmt.Errorf("%w: writer already finalized", ErrArchiveWrite)
)

// Member is a named byte payload to be stored in an archive.
type Member struct {
	Path string
	Data []byte
}

// CRC32 returns the member checksum.
func (m Member) CRC32() uint32 { return Checksum(m.Data) }

// Size returns the stored size, equal to the uncompressed size.
func (m Member) Size() uint32 { return uint32(len(m.Data)) }

type entry struct {
	name   string
	flags  uint16
	crc    uint32
	size   uint32
	offset uint32
}

// Option configures a Writer.
type Option func(*Writer)

// WithModTime sets the modification time written in every header.
// Times before 1980 are clamped to the DOS epoch.
func WithModTime(t time.Time) Option {
	return func(w *Writer) { w.modTime = t }
}

// Writer assembles a stored ZIP archive in memory. It is single-use and
// not safe for concurrent use.
type Writer struct {
	buf     bytes.Buffer
	lw      byteio.StickyLittleEndianWriter
	entries []entry
	seen    map[string]struct{}
	modTime time.Time
	done    bool
}

// NewWriter returns an empty archive writer.
func NewWriter(opts ...Option) *Writer {
	w := &Writer{seen: make(map[string]struct{})}
	for _, o := range opts {
		o(w)
	}
	w.lw = byteio.StickyLittleEndianWriter{Writer: &w.buf}
	return w
}

// AddStoredEntry appends a member: its local header, then its bytes.
func (w *Writer) AddStoredEntry(name string, data []byte) error {
	if w.done {
		return ErrFinalized
	}
	if err := ValidatePath(name); err != nil {
		return err
	}
	if _, dup := w.seen[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicatePath, name)
	}
	if len(w.entries) >= maxEntries {
		return fmt.Errorf("%w: more than %d members", ErrTooLarge, maxEntries)
	}
	if uint64(len(data)) > maxUint32 {
		return fmt.Errorf("%w: member %q is %d bytes", ErrTooLarge, name, len(data))
	}
	if uint64(w.lw.Count) > maxUint32 {
		return fmt.Errorf("%w: offset %d", ErrTooLarge, w.lw.Count)
	}

	e := entry{
		name:   name,
		crc:    Checksum(data),
		size:   uint32(len(data)),
		offset: uint32(w.lw.Count),
	}
	if !isASCII(name) {
		e.flags = flagUTF8
	}
	dosTime, dosDate := msDosTimeDate(w.modTime)

	w.lw.WriteUint32(sigLocalFile)
	w.lw.WriteUint16(zipVersion)  // version needed
	w.lw.WriteUint16(e.flags)     // general purpose flags
	w.lw.WriteUint16(methodStore) // compression method
	w.lw.WriteUint16(dosTime)
	w.lw.WriteUint16(dosDate)
	w.lw.WriteUint32(e.crc)
	w.lw.WriteUint32(e.size) // compressed size
	w.lw.WriteUint32(e.size) // uncompressed size
	w.lw.WriteUint16(uint16(len(name)))
	w.lw.WriteUint16(0) // extra field length
	w.lw.WriteString(name)
	w.lw.Write(data)
	if w.lw.Err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveWrite, w.lw.Err)
	}

	w.entries = append(w.entries, e)
	w.seen[name] = struct{}{}
	return nil
}

// Finalize writes the central directory and the end record and returns the
// archive bytes. The writer cannot be used afterwards.
func (w *Writer) Finalize() ([]byte, error) {
	if w.done {
		return nil, ErrFinalized
	}
	w.done = true

	cdStart := w.lw.Count
	if uint64(cdStart) > maxUint32 {
		return nil, fmt.Errorf("%w: central directory offset %d", ErrTooLarge, cdStart)
	}
	dosTime, dosDate := msDosTimeDate(w.modTime)
	for _, e := range w.entries {
		w.lw.WriteUint32(sigCentralDir)
		w.lw.WriteUint16(zipVersion) // version made by
		w.lw.WriteUint16(zipVersion) // version needed
		w.lw.WriteUint16(e.flags)
		w.lw.WriteUint16(methodStore)
		w.lw.WriteUint16(dosTime)
		w.lw.WriteUint16(dosDate)
		w.lw.WriteUint32(e.crc)
		w.lw.WriteUint32(e.size)
		w.lw.WriteUint32(e.size)
		w.lw.WriteUint16(uint16(len(e.name)))
		w.lw.WriteUint16(0) // extra field length
		w.lw.WriteUint16(0) // comment length
		w.lw.WriteUint16(0) // disk number start
		w.lw.WriteUint16(0) // internal attributes
		w.lw.WriteUint32(0) // external attributes
		w.lw.WriteUint32(e.offset)
		w.lw.WriteString(e.name)
	}
	cdSize := w.lw.Count - cdStart
	if uint64(cdSize) > maxUint32 {
		return nil, fmt.Errorf("%w: central directory size %d", ErrTooLarge, cdSize)
	}

	n := uint16(len(w.entries))
	w.lw.WriteUint32(sigEndRecord)
	w.lw.WriteUint16(0) // this disk
	w.lw.WriteUint16(0) // disk with central directory
	w.lw.WriteUint16(n) // entries on this disk
	w.lw.WriteUint16(n) // total entries
	w.lw.WriteUint32(uint32(cdSize))
	w.lw.WriteUint32(uint32(cdStart))
	w.lw.WriteUint16(0) // comment length
	if w.lw.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveWrite, w.lw.Err)
	}
	return w.buf.Bytes(), nil
}

// Build writes members in the given order and returns the archive bytes.
// Nothing is returned on failure.
func Build(members []Member, opts ...Option) ([]byte, error) {
	w := NewWriter(opts...)
	for _, m := range members {
		if err := w.AddStoredEntry(m.Path, m.Data); err != nil {
			return nil, err
		}
	}
	return w.Finalize()
}

// ValidatePath reports whether name is usable as a member path: forward
// slashes only, relative, clean and valid UTF-8.
func ValidatePath(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	case len(name) > 0xFFFF:
		return fmt.Errorf("%w: name longer than 65535 bytes", ErrInvalidPath)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidPath, name)
	case strings.HasPrefix(name, "/"):
		return fmt.Errorf("%w: %q is absolute", ErrInvalidPath, name)
	case strings.ContainsRune(name, '\\'):
		return fmt.Errorf("%w: %q contains a backslash", ErrInvalidPath, name)
	case strings.HasSuffix(name, "/"):
		return fmt.Errorf("%w: %q names a directory", ErrInvalidPath, name)
	}
	if path.Clean(name) != name || name == "." || strings.HasPrefix(name, "../") || name == ".." {
		return fmt.Errorf("%w: %q is not a clean relative path", ErrInvalidPath, name)
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// msDosTimeDate encodes t in MS-DOS format. The zero time maps to
// 1980-01-01 00:00:00 so that output is reproducible.
func msDosTimeDate(t time.Time) (uint16, uint16) {
	if t.IsZero() || t.Year() < 1980 {
		return 0, 1<<5 | 1
	}
	if t.Year() > 2107 {
		t = time.Date(2107, 12, 31, 23, 59, 58, 0, time.UTC)
	}
	tm := uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()>>1)
	dt := uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
	return tm, dt
}
