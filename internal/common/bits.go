package common

import "fmt"

// Bits are numbered from the most significant bit of byte 0: bit 0 is the
// top bit of data[0], bit 7 its lowest, bit 8 the top bit of data[1].

// byteMask selects bits [lo, hi) of a byte, counted from the MSB.
func byteMask(lo, hi int) byte {
	return byte(0xFF)>>uint(lo) &^ (byte(0xFF) >> uint(hi))
}

func checkRange(data []byte, start, width int) {
	if start < 0 || width < 0 || width > 64 || start+width > len(data)*8 {
		panic(fmt.Sprintf("bitfield: bit range [%d,%d) out of bounds for %d-byte buffer",
			start, start+width, len(data)))
	}
}

// ReadBits extracts width bits starting at absolute bit index start. The
// first bit read lands in the most significant position of the result.
// It panics when the range does not fit in data.
func ReadBits(data []byte, start, width int) uint64 {
	checkRange(data, start, width)
	end := start + width

	var v uint64
	for pos := start &^ 7; pos < end; pos += 8 {
		lo, hi := 0, 8
		if pos < start {
			lo = start - pos
		}
		if end-pos < 8 {
			hi = end - pos
		}
		b := data[pos>>3]
		if lo == 0 && hi == 8 {
			v = v<<8 | uint64(b)
			continue
		}
		bits := (b & byteMask(lo, hi)) >> uint(8-hi)
		v = v<<uint(hi-lo) | uint64(bits)
	}
	return v
}

// WriteBits stores the low width bits of v at absolute bit index start.
// Bits outside [start, start+width) are left untouched. Bytes are visited
// from the end of the range backwards so the low bits of v are consumed
// first. It panics when the range does not fit in data.
func WriteBits(data []byte, start, width int, v uint64) {
	checkRange(data, start, width)
	if width == 0 {
		return
	}
	end := start + width

	first := start &^ 7
	for pos := (end - 1) &^ 7; pos >= first; pos -= 8 {
		lo, hi := 0, 8
		if pos < start {
			lo = start - pos
		}
		if end-pos < 8 {
			hi = end - pos
		}
		n := hi - lo
		bits := byte(v & (1<<uint(n) - 1))
		v >>= uint(n)

		if n == 8 {
			data[pos>>3] = bits
			continue
		}
		mask := byteMask(lo, hi)
		data[pos>>3] = data[pos>>3]&^mask | bits<<uint(8-hi)&mask
	}
}
