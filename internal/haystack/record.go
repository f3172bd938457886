// Package haystack implements the on-disk record codec for an AVS
// (append-only object store) file: header + key + body + padding framing,
// checksums, optional body compression, and the handle pair a container
// keeps open against its live file.
//
// Adapted from the teacher's pkg/barrel/header.go (fixed-width header via
// encoding/binary) and internal/datafile/datafile.go (offset-tracked
// append/read pair), generalized to the addr_id-partitioned, tombstone-aware
// record shape spec.md §3 describes.
package haystack

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Flag bits packed into Header.Flags.
const (
	FlagDel        uint8 = 1 << 0 // tombstone: supersedes all prior records for this key.
	FlagCompressed uint8 = 1 << 1 // body was run through the s2 compressor.
)

// HeaderSize is the fixed on-disk width of a Header in bytes.
const HeaderSize = 22

// Header is the fixed-width prefix of every record.
//
//	checksum(4) | timestamp(4) | addr_id(4) | flags(1) | pad_size(1) | key_size(4) | body_size(4)
type Header struct {
	Checksum  uint32
	Timestamp uint32
	AddrID    uint32
	Flags     uint8
	PadSize   uint8
	KeySize   uint32
	BodySize  uint32
}

// IsDel reports whether this header marks a tombstone.
func (h Header) IsDel() bool { return h.Flags&FlagDel != 0 }

// IsCompressed reports whether the body was stored compressed.
func (h Header) IsCompressed() bool { return h.Flags&FlagCompressed != 0 }

// RecordSize returns the total framed size (header+key+body+padding) for a
// record whose key/body occupy the given number of bytes on disk.
func RecordSize(keyLen, bodyLen int) int64 {
	raw := HeaderSize + keyLen + bodyLen
	pad := padLen(raw)
	return int64(raw + pad)
}

// padLen returns how many zero bytes are needed to round n up to the next
// 8-byte boundary (0-7).
func padLen(n int) int {
	rem := n % 8
	if rem == 0 {
		return 0
	}
	return 8 - rem
}

// encode writes the header to buf.
func (h *Header) encode(buf *bytes.Buffer) error {
	return binary.Write(buf, binary.LittleEndian, h)
}

// decode populates h from the first HeaderSize bytes of record.
func (h *Header) decode(record []byte) error {
	if len(record) < HeaderSize {
		return fmt.Errorf("%w: short record: %d bytes", ErrInvalidRecord, len(record))
	}
	return binary.Read(bytes.NewReader(record[:HeaderSize]), binary.LittleEndian, h)
}

// checksum computes the murmur3 checksum of key+body bytes as stored on disk
// (i.e. post-compression, if compression is in effect for this record).
func checksum(keyBin, bodyBin []byte) uint32 {
	h := murmur3.New32()
	_, _ = h.Write(keyBin)
	_, _ = h.Write(bodyBin)
	return h.Sum32()
}
