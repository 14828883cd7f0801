package compactwire

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/bitfield"
)

func testLayout(t testing.TB, name string) *bitfield.Layout {
	t.Helper()
	l, err := bitfield.NewBuilder(name).
		Add("on", bitfield.Bool).
		Add("level", bitfield.B(7)).
		Add("seq", bitfield.B(24)).
		Build()
	require.NoError(t, err)
	return l
}

func makeRecords(t testing.TB, l *bitfield.Layout, n int) []*bitfield.Record {
	t.Helper()
	out := make([]*bitfield.Record, n)
	for i := range out {
		r := l.New()
		require.NoError(t, r.Set("on", i%2 == 0))
		require.NoError(t, r.Set("level", i%128))
		require.NoError(t, r.Set("seq", i*7919))
		out[i] = r
	}
	return out
}

func resolverFor(l *bitfield.Layout) Resolver {
	return func(id uint64) (*bitfield.Layout, bool) {
		if id == l.ID() {
			return l, true
		}
		return nil, false
	}
}

// buildFrame writes a frame field by field, bypassing the encoder's checks.
func buildFrame(id uint64, flags byte, count, size, rawLen uint64, payload []byte) []byte {
	b := []byte{Magic0, Magic1, TypeData, 0, 0, 0, 0, flags}
	b = binary.LittleEndian.AppendUint64(b, id)
	b = binary.AppendUvarint(b, count)
	b = binary.AppendUvarint(b, size)
	if flags&compressionMask != 0 {
		b = binary.AppendUvarint(b, rawLen)
	}
	b = append(b, payload...)
	binary.LittleEndian.PutUint32(b[preambleSize:], uint32(len(b)+crcSize))
	return binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b[2:]))
}

func TestRoundTrip(t *testing.T) {
	l := testLayout(t, "Sample")
	recs := makeRecords(t, l, 200)
	for _, flags := range []byte{0, FlagZstd, FlagBrotli} {
		d := NewDataFrame()
		frame, err := d.EncodeRecords(l, recs, flags)
		require.NoError(t, err)
		gotL, got, err := d.DecodeRecords(frame, resolverFor(l))
		require.NoError(t, err)
		require.Same(t, l, gotL)
		require.Len(t, got, len(recs))
		for i := range recs {
			require.Equal(t, recs[i].Bytes(), got[i].Bytes(), "flags %#x record %d", flags, i)
		}
		d.Close()
	}
}

func TestFrameHeader(t *testing.T) {
	l := testLayout(t, "Header")
	frame, err := EncodeRecords(l, makeRecords(t, l, 3), 0)
	require.NoError(t, err)

	assert.Equal(t, []byte{'B', 'F', TypeData}, frame[:3])
	assert.Equal(t, uint32(len(frame)), binary.LittleEndian.Uint32(frame[3:]))
	assert.Equal(t, byte(0), frame[7])
	assert.Equal(t, l.ID(), binary.LittleEndian.Uint64(frame[8:]))
	assert.Equal(t, byte(3), frame[16])
	assert.Equal(t, byte(4), frame[17])
	assert.Len(t, frame, fixedSize+2+12+crcSize)
}

func TestCompressionShrinksRepetitiveBatches(t *testing.T) {
	l := testLayout(t, "Repeat")
	recs := make([]*bitfield.Record, 1000)
	for i := range recs {
		recs[i] = l.New()
	}
	plain, err := EncodeRecords(l, recs, 0)
	require.NoError(t, err)
	for _, flags := range []byte{FlagZstd, FlagBrotli} {
		packed, err := EncodeRecords(l, recs, flags)
		require.NoError(t, err)
		assert.Less(t, len(packed), len(plain))
	}
}

func TestEmptyBatch(t *testing.T) {
	l := testLayout(t, "Empty")
	for _, flags := range []byte{0, FlagZstd, FlagBrotli} {
		frame, err := EncodeRecords(l, nil, flags)
		require.NoError(t, err)
		assert.Len(t, frame, fixedSize+2+btoi(flags != 0)+crcSize)
		_, got, err := DecodeRecords(frame, resolverFor(l))
		require.NoError(t, err)
		assert.Empty(t, got)
	}

	junk := buildFrame(l.ID(), FlagZstd, 0, uint64(l.Size()), 0, []byte{0xDE, 0xAD})
	_, _, err := DecodeRecords(junk, resolverFor(l))
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestZeroSizeRecords(t *testing.T) {
	empty := bitfield.MustLayout("empty")
	resolve := resolverFor(empty)

	frame := buildFrame(empty.ID(), 0, 1<<24, 0, 0, nil)
	_, _, err := DecodeRecords(frame, resolve)
	require.ErrorIs(t, err, ErrRecordSize)

	frame = buildFrame(empty.ID(), 0, 0, 0, 0, nil)
	_, got, err := DecodeRecords(frame, resolve)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = EncodeRecords(empty, []*bitfield.Record{empty.New()}, 0)
	require.ErrorIs(t, err, ErrRecordSize)
}

func TestDecodeErrors(t *testing.T) {
	l := testLayout(t, "Errors")
	frame, err := EncodeRecords(l, makeRecords(t, l, 4), 0)
	require.NoError(t, err)

	corrupt := func(mut func([]byte) []byte) []byte {
		return mut(append([]byte(nil), frame...))
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", frame[:10], ErrTruncated},
		{"magic", corrupt(func(b []byte) []byte { b[0] = 'X'; return b }), ErrNotFrame},
		{"type", corrupt(func(b []byte) []byte { b[2] = 0x7F; return b }), ErrNotFrame},
		{"length", corrupt(func(b []byte) []byte { return append(b, 0) }), ErrLengthMismatch},
		{"flags", corrupt(func(b []byte) []byte { b[7] = FlagZstd | FlagBrotli; return b }), ErrBadFlags},
		{"crc", corrupt(func(b []byte) []byte { b[20] ^= 0x01; return b }), ErrCRCMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeRecords(tc.data, resolverFor(l))
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, _, err = DecodeRecords(frame, func(uint64) (*bitfield.Layout, bool) { return nil, false })
	require.ErrorIs(t, err, ErrSchemaUnknown)

	other := bitfield.MustLayout("Errors", bitfield.FieldDecl{Name: "x", Spec: bitfield.B(8)})
	_, _, err = DecodeRecords(frame, func(uint64) (*bitfield.Layout, bool) { return other, true })
	require.ErrorIs(t, err, ErrRecordSize)
}

func TestEncodeErrors(t *testing.T) {
	a := testLayout(t, "A")
	b := testLayout(t, "B")
	_, err := EncodeRecords(a, makeRecords(t, b, 1), 0)
	require.ErrorIs(t, err, ErrSchemaMismatch)
	_, err = EncodeRecords(a, nil, 0x80)
	require.ErrorIs(t, err, ErrBadFlags)
}

func TestRegistryResolver(t *testing.T) {
	l := testLayout(t, "compactwire-registered")
	require.NoError(t, bitfield.Register(l))
	t.Cleanup(func() { bitfield.Unregister(l.Name()) })

	frame, err := EncodeRecords(l, makeRecords(t, l, 2), FlagBrotli)
	require.NoError(t, err)
	gotL, got, err := DecodeRecords(frame, nil)
	require.NoError(t, err)
	require.Same(t, l, gotL)
	require.Len(t, got, 2)
	seq, err := got[1].Get("seq")
	require.NoError(t, err)
	assert.Equal(t, uint32(7919), seq)
}

func BenchmarkEncodeZstd(b *testing.B) {
	l := testLayout(b, "Bench")
	recs := makeRecords(b, l, 1024)
	d := NewDataFrame()
	defer d.Close()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = d.EncodeRecords(l, recs, FlagZstd)
	}
}
