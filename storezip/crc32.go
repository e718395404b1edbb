package storezip

import "hash/crc32"

// ieee is the reflected 0xEDB88320 table shared by every archive.
// It is built once and never mutated.
var ieee = crc32.MakeTable(crc32.IEEE)

// Checksum returns the ZIP CRC-32 of data (seed 0xFFFFFFFF, inverted output).
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, ieee)
}
