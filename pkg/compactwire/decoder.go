package compactwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/rawbytedev/bitfield"
	"github.com/rawbytedev/bitfield/internal/common"
)

// Resolver maps a frame's schema ID to its layout.
type Resolver func(id uint64) (*bitfield.Layout, bool)

// DecodeRecords parses a data frame and returns its layout and records. A
// nil resolve looks the schema up in the bitfield registry. Records of an
// uncompressed frame alias data.
func (d *DataFrame) DecodeRecords(data []byte, resolve Resolver) (*bitfield.Layout, []*bitfield.Record, error) {
	if resolve == nil {
		resolve = bitfield.LookupID
	}
	if len(data) < fixedSize+crcSize {
		return nil, nil, ErrTruncated
	}

	// 1) preamble
	t, err := readPreamble(bytes.NewReader(data))
	if err != nil || t != TypeData {
		return nil, nil, ErrNotFrame
	}

	// 2) total length + flags
	length := binary.LittleEndian.Uint32(data[preambleSize:])
	if int(length) != len(data) {
		return nil, nil, ErrLengthMismatch
	}
	flags := data[preambleSize+4]
	if err := checkFlags(flags); err != nil {
		return nil, nil, err
	}

	// 3) CRC check
	payloadEnd := len(data) - crcSize
	want := binary.LittleEndian.Uint32(data[payloadEnd:])
	if crc32.ChecksumIEEE(data[2:payloadEnd]) != want {
		return nil, nil, ErrCRCMismatch
	}

	// 4) schema + record table
	id := binary.LittleEndian.Uint64(data[preambleSize+5:])
	pos := fixedSize
	count, n := common.ReadVarUint(data[pos:payloadEnd])
	if n == 0 {
		return nil, nil, ErrTruncated
	}
	pos += n
	size, n := common.ReadVarUint(data[pos:payloadEnd])
	if n == 0 {
		return nil, nil, ErrTruncated
	}
	pos += n
	if size == 0 && count != 0 {
		return nil, nil, fmt.Errorf("%d zero-byte records: %w", count, ErrRecordSize)
	}
	if size > MaxPayload || count > MaxPayload || (size > 0 && count > MaxPayload/size) {
		return nil, nil, ErrLengthMismatch
	}
	rawLen := int(count * size)
	if flags&compressionMask != 0 {
		rl, n := common.ReadVarUint(data[pos:payloadEnd])
		if n == 0 {
			return nil, nil, ErrTruncated
		}
		if rl != uint64(rawLen) {
			return nil, nil, ErrLengthMismatch
		}
		pos += n
	} else if payloadEnd-pos != rawLen {
		return nil, nil, ErrLengthMismatch
	}

	l, ok := resolve(id)
	if !ok {
		return nil, nil, fmt.Errorf("schema %#016x: %w", id, ErrSchemaUnknown)
	}
	if int(size) != l.Size() {
		return nil, nil, fmt.Errorf("%s: frame has %d-byte records, layout %d: %w", l.Name(), size, l.Size(), ErrRecordSize)
	}

	// 5) payload
	raw, err := d.decompress(flags, data[pos:payloadEnd], rawLen)
	if err != nil {
		return nil, nil, err
	}
	records := make([]*bitfield.Record, count)
	sz := int(size)
	for i := range records {
		r, err := l.Wrap(raw[i*sz : (i+1)*sz : (i+1)*sz])
		if err != nil {
			return nil, nil, err
		}
		records[i] = r
	}
	return l, records, nil
}

// DecodeRecords parses a frame with a throwaway DataFrame.
func DecodeRecords(data []byte, resolve Resolver) (*bitfield.Layout, []*bitfield.Record, error) {
	d := NewDataFrame()
	defer d.Close()
	return d.DecodeRecords(data, resolve)
}
