package compactwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/rawbytedev/bitfield"
	"github.com/rawbytedev/bitfield/internal/common"
)

// DataFrame encodes and decodes record frames. It keeps its compressors
// between calls and is not safe for concurrent use.
type DataFrame struct {
	buf *bytes.Buffer
	raw []byte
	codecs
}

func NewDataFrame() *DataFrame {
	return &DataFrame{}
}

// Close releases the compressors.
func (d *DataFrame) Close() {
	d.codecs.Close()
}

// EncodeRecords serializes records, which must all belong to l, into one
// data frame. flags selects optional payload compression.
func (d *DataFrame) EncodeRecords(l *bitfield.Layout, records []*bitfield.Record, flags byte) ([]byte, error) {
	if err := checkFlags(flags); err != nil {
		return nil, err
	}
	size := l.Size()
	if size == 0 && len(records) > 0 {
		return nil, fmt.Errorf("%s has no bits: %w", l.Name(), ErrRecordSize)
	}
	if len(records) > MaxPayload || (size > 0 && len(records) > MaxPayload/size) {
		return nil, fmt.Errorf("%d records of %d bytes: %w", len(records), size, ErrLengthMismatch)
	}

	d.raw = d.raw[:0]
	for i, r := range records {
		if r.Layout().ID() != l.ID() {
			return nil, fmt.Errorf("record %d is %s, frame is %s: %w", i, r.Layout().Name(), l.Name(), ErrSchemaMismatch)
		}
		d.raw = append(d.raw, r.Bytes()...)
	}
	payload, err := d.compress(flags, d.raw)
	if err != nil {
		return nil, err
	}

	d.buf = &bytes.Buffer{}
	writePreamble(d.buf, TypeData)

	// reserve length
	binary.Write(d.buf, binary.LittleEndian, uint32(0))
	d.buf.WriteByte(flags)
	binary.Write(d.buf, binary.LittleEndian, l.ID())

	var scratch [binary.MaxVarintLen64]byte
	d.buf.Write(common.WriteVarUint(scratch[:0], uint64(len(records))))
	d.buf.Write(common.WriteVarUint(scratch[:0], uint64(size)))
	if flags&compressionMask != 0 {
		d.buf.Write(common.WriteVarUint(scratch[:0], uint64(len(d.raw))))
	}
	d.buf.Write(payload)

	// fill in length (includes everything up to + including CRC)
	out := d.buf.Bytes()
	total := uint32(len(out) + crcSize)
	binary.LittleEndian.PutUint32(out[preambleSize:], total)

	// CRC over entire frame minus magic
	crc := crc32.ChecksumIEEE(out[2:])
	out = binary.LittleEndian.AppendUint32(out, crc)
	return out, nil
}

// EncodeRecords frames records with a throwaway DataFrame.
func EncodeRecords(l *bitfield.Layout, records []*bitfield.Record, flags byte) ([]byte, error) {
	d := NewDataFrame()
	defer d.Close()
	return d.EncodeRecords(l, records, flags)
}
