package storezip

import (
	"encoding/binary"
	"errors"
)

// ErrNoEndRecord is returned when no end-of-central-directory record can be found.
var ErrNoEndRecord = errors.New("storezip: end of central directory not found")

// EndRecord is the decoded end-of-central-directory record.
type EndRecord struct {
	Offset        int    // position of the record in the archive
	DiskEntries   uint16 // entries on this disk
	TotalEntries  uint16
	DirSize       uint32
	DirOffset     uint32
	CommentLength uint16
}

// ReadEndRecord locates the end record by scanning backward from the end of
// b, the way ZIP readers do.
func ReadEndRecord(b []byte) (EndRecord, error) {
	if len(b) < EndRecordLen {
		return EndRecord{}, ErrNoEndRecord
	}
	// The comment is at most 65535 bytes long.
	lowest := len(b) - EndRecordLen - 0xFFFF
	if lowest < 0 {
		lowest = 0
	}
	for i := len(b) - EndRecordLen; i >= lowest; i-- {
		if binary.LittleEndian.Uint32(b[i:]) != sigEndRecord {
			continue
		}
		rec := EndRecord{
			Offset:        i,
			DiskEntries:   binary.LittleEndian.Uint16(b[i+8:]),
			TotalEntries:  binary.LittleEndian.Uint16(b[i+10:]),
			DirSize:       binary.LittleEndian.Uint32(b[i+12:]),
			DirOffset:     binary.LittleEndian.Uint32(b[i+16:]),
			CommentLength: binary.LittleEndian.Uint16(b[i+20:]),
		}
		if i+EndRecordLen+int(rec.CommentLength) != len(b) {
			continue
		}
		if uint64(rec.DirOffset)+uint64(rec.DirSize) > uint64(i) {
			continue
		}
		return rec, nil
	}
	return EndRecord{}, ErrNoEndRecord
}
