// Package compactwire frames batches of packed bitfield records for storage
// or transport.
//
// Frame layout, integers little endian:
//
//	magic    2B  'B' 'F'
//	type     1B  TypeData
//	length   4B  whole frame including CRC
//	flags    1B  FlagZstd | FlagBrotli
//	schema   8B  bitfield.Layout.ID of every record
//	count    uvarint
//	size     uvarint  bytes per record
//	rawlen   uvarint  only when compressed: count*size
//	payload  records back to back, possibly compressed
//	crc      4B  CRC32 (IEEE) of everything after the magic up to the payload end
//
// Record bytes are copied verbatim, so the bit order inside each record is
// the bitfield package's most-significant-bit-first order.
package compactwire

import (
	"bytes"
	"errors"
	"io"
)

const (
	Magic0 = 'B'
	Magic1 = 'F'

	TypeData byte = 0x01

	FlagZstd   byte = 0x01
	FlagBrotli byte = 0x02

	compressionMask = FlagZstd | FlagBrotli

	preambleSize = 3
	fixedSize    = preambleSize + 4 + 1 + 8 // preamble, length, flags, schema
	crcSize      = 4

	// MaxPayload bounds the uncompressed record bytes of one frame.
	MaxPayload = 64 << 20
)

var (
	ErrNotFrame       = errors.New("not a data frame")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrCRCMismatch    = errors.New("crc mismatch")
	ErrSchemaUnknown  = errors.New("unknown schema id")
	ErrSchemaMismatch = errors.New("record layout differs from frame layout")
	ErrRecordSize     = errors.New("record size does not match layout")
	ErrBadFlags       = errors.New("unsupported flag combination")
	ErrTruncated      = errors.New("truncated frame")
)

func writePreamble(buf *bytes.Buffer, t byte) {
	buf.WriteByte(Magic0)
	buf.WriteByte(Magic1)
	buf.WriteByte(t)
}

func readPreamble(r io.ByteReader) (byte, error) {
	m0, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	m1, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if m0 != Magic0 || m1 != Magic1 {
		return 0, ErrNotFrame
	}
	return r.ReadByte()
}

func checkFlags(flags byte) error {
	if flags&^compressionMask != 0 || flags&compressionMask == compressionMask {
		return ErrBadFlags
	}
	return nil
}
