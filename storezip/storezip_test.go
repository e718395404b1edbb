package storezip

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestChecksum_Vectors(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 0x00000000},
		{"123456789", 0xCBF43926},
		{"The quick brown fox jumps over the lazy dog", 0x414FA339},
		{"a", 0xE8B7BE43},
	}
	for _, tt := range tests {
		if got := Checksum([]byte(tt.in)); got != tt.want {
			t.Errorf("Checksum(%q) = %#08x, want %#08x", tt.in, got, tt.want)
		}
	}
}

func TestMember_Derived(t *testing.T) {
	m := Member{Path: "a.txt", Data: []byte("123456789")}
	if m.CRC32() != 0xCBF43926 {
		t.Fatalf("crc: got %#x", m.CRC32())
	}
	if m.Size() != 9 {
		t.Fatalf("size: got %d", m.Size())
	}
}

func TestBuild_EmptyArchive(t *testing.T) {
	// An archive with no members is only the end record.
	data, err := Build(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != EndRecordLen {
		t.Fatalf("length: got %d, want %d", len(data), EndRecordLen)
	}
	if !bytes.HasPrefix(data, []byte("PK\x05\x06")) {
		t.Fatalf("signature: got % x", data[:4])
	}
	rec, err := ReadEndRecord(data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.TotalEntries != 0 || rec.DirSize != 0 || rec.DirOffset != 0 {
		t.Fatalf("record: %+v", rec)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("archive/zip rejects empty archive: %v", err)
	}
	if len(zr.File) != 0 {
		t.Fatalf("files: got %d", len(zr.File))
	}
}

func TestBuild_ReadableByArchiveZip(t *testing.T) {
	members := []Member{
		{Path: "[Content_Types].xml", Data: []byte("<Types/>")},
		{Path: "_rels/.rels", Data: []byte("<Relationships/>")},
		{Path: "word/document.xml", Data: []byte("<w:document>héllo</w:document>")},
		{Path: "empty.bin", Data: nil},
	}
	data, err := Build(members)
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(zr.File) != len(members) {
		t.Fatalf("files: got %d, want %d", len(zr.File), len(members))
	}
	for i, f := range zr.File {
		if f.Name != members[i].Path {
			t.Errorf("file %d: got %q, want %q", i, f.Name, members[i].Path)
		}
		if f.Method != zip.Store {
			t.Errorf("%s: method %d, want stored", f.Name, f.Method)
		}
		if f.CRC32 != members[i].CRC32() {
			t.Errorf("%s: crc %#x, want %#x", f.Name, f.CRC32, members[i].CRC32())
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("%s: open: %v", f.Name, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("%s: read: %v", f.Name, err)
		}
		if !bytes.Equal(got, members[i].Data) {
			t.Errorf("%s: content %q, want %q", f.Name, got, members[i].Data)
		}
	}
}

func TestBuild_Layout(t *testing.T) {
	members := []Member{
		{Path: "a.txt", Data: []byte("alpha")},
		{Path: "dir/b.txt", Data: []byte("bravo!")},
	}
	data, err := Build(members)
	if err != nil {
		t.Fatal(err)
	}

	// Local header of the first member sits at offset 0.
	if binary.LittleEndian.Uint32(data) != sigLocalFile {
		t.Fatalf("first signature: % x", data[:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != 20 {
		t.Errorf("version needed: %d", v)
	}
	if v := binary.LittleEndian.Uint16(data[8:]); v != 0 {
		t.Errorf("method: %d", v)
	}
	if v := binary.LittleEndian.Uint32(data[14:]); v != Checksum([]byte("alpha")) {
		t.Errorf("crc: %#x", v)
	}

	// The second local header follows 30 + name + data bytes.
	second := 30 + len("a.txt") + len("alpha")
	if binary.LittleEndian.Uint32(data[second:]) != sigLocalFile {
		t.Fatalf("second local header not at %d", second)
	}

	rec, err := ReadEndRecord(data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Offset != len(data)-EndRecordLen {
		t.Errorf("end record offset: %d, want %d", rec.Offset, len(data)-EndRecordLen)
	}
	if rec.TotalEntries != 2 || rec.DiskEntries != 2 {
		t.Errorf("entries: %+v", rec)
	}
	if int(rec.DirOffset)+int(rec.DirSize) != rec.Offset {
		t.Errorf("central directory does not end at the end record: %+v", rec)
	}

	// Central directory records point back at the local headers.
	cd := data[rec.DirOffset:]
	if binary.LittleEndian.Uint32(cd) != sigCentralDir {
		t.Fatalf("central directory signature: % x", cd[:4])
	}
	if off := binary.LittleEndian.Uint32(cd[42:]); off != 0 {
		t.Errorf("first record offset: %d", off)
	}
	next := cd[46+len("a.txt"):]
	if off := binary.LittleEndian.Uint32(next[42:]); int(off) != second {
		t.Errorf("second record offset: %d, want %d", off, second)
	}
}

func TestBuild_PreservesOrder(t *testing.T) {
	members := []Member{
		{Path: "z.txt", Data: []byte("z")},
		{Path: "a.txt", Data: []byte("a")},
		{Path: "m.txt", Data: []byte("m")},
	}
	data, err := Build(members)
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range zr.File {
		if f.Name != members[i].Path {
			t.Fatalf("order[%d]: got %q, want %q", i, f.Name, members[i].Path)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	members := []Member{{Path: "x.xml", Data: []byte("<x/>")}}
	a, err := Build(members)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(members)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("two builds of the same members differ")
	}
}

func TestWithModTime(t *testing.T) {
	mod := time.Date(2024, 3, 15, 10, 30, 20, 0, time.UTC)
	data, err := Build([]Member{{Path: "t.txt", Data: []byte("t")}}, WithModTime(mod))
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	got := zr.File[0].Modified
	if got.Year() != 2024 || got.Month() != 3 || got.Day() != 15 || got.Hour() != 10 || got.Minute() != 30 || got.Second() != 20 {
		t.Fatalf("modified: got %v", got)
	}
}

func TestAddStoredEntry_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want error
	}{
		{"empty", "", ErrInvalidPath},
		{"absolute", "/abs.xml", ErrInvalidPath},
		{"backslash", `word\document.xml`, ErrInvalidPath},
		{"dotdot", "../escape.xml", ErrInvalidPath},
		{"unclean", "word/../x.xml", ErrInvalidPath},
		{"directory", "word/", ErrInvalidPath},
		{"invalid utf8", "bad\xff.xml", ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			err := w.AddStoredEntry(tt.path, []byte("x"))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrArchiveWrite) {
				t.Fatalf("error %v does not wrap ErrArchiveWrite", err)
			}
		})
	}
}

func TestAddStoredEntry_Duplicate(t *testing.T) {
	_, err := Build([]Member{
		{Path: "a.xml", Data: []byte("1")},
		{Path: "a.xml", Data: []byte("2")},
	})
	if !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("got %v, want ErrDuplicatePath", err)
	}
}

func TestAddStoredEntry_TooManyMembers(t *testing.T) {
	w := NewWriter()
	for i := 0; i < maxEntries; i++ {
		w.entries = append(w.entries, entry{})
	}
	err := w.AddStoredEntry("one-more.txt", nil)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}

func TestFinalize_Twice(t *testing.T) {
	w := NewWriter()
	if _, err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Finalize(); !errors.Is(err, ErrFinalized) {
		t.Fatalf("second finalize: got %v", err)
	}
	if err := w.AddStoredEntry("late.txt", nil); !errors.Is(err, ErrFinalized) {
		t.Fatalf("add after finalize: got %v", err)
	}
}

func TestNonASCIIName_SetsUTF8Flag(t *testing.T) {
	data, err := Build([]Member{{Path: "résumé.txt", Data: []byte("cv")}})
	if err != nil {
		t.Fatal(err)
	}
	if flags := binary.LittleEndian.Uint16(data[6:]); flags&flagUTF8 == 0 {
		t.Fatalf("flags: %#x", flags)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if zr.File[0].Name != "résumé.txt" {
		t.Fatalf("name: %q", zr.File[0].Name)
	}
}

func TestReadEndRecord_Garbage(t *testing.T) {
	if _, err := ReadEndRecord([]byte("short")); !errors.Is(err, ErrNoEndRecord) {
		t.Fatalf("short input: %v", err)
	}
	if _, err := ReadEndRecord([]byte(strings.Repeat("x", 100))); !errors.Is(err, ErrNoEndRecord) {
		t.Fatalf("no signature: %v", err)
	}
}
