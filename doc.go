// Package bitfield packs an ordered list of fixed-width fields into a
// minimal byte buffer and gives bit-exact access to each field, including
// fields that straddle byte boundaries.
//
// A Layout is built once from field declarations. Each field has a
// Specifier that fixes its width and converts between a native Go value and
// the unsigned integer stored in the buffer:
//
//   - Bool: one bit
//   - B(n), Bits8..Bits64: n-bit unsigned integers, 1 <= n <= 64
//   - Enum: user enumerations with a power-of-two variant count
//
// All validation happens in BuildLayout: field widths must sum to a whole
// number of bytes, explicit width annotations must agree with their
// specifier, and enum discriminants must fit their derived width. After
// that, reads and writes never fail; out-of-range raw bit access panics.
//
// # Bit order
//
// Fields are stored in declaration order with no padding. Bit 0 is the most
// significant bit of byte 0, and each field is written most significant bit
// first, so a persisted buffer reads the same on every platform:
//
//	fields a:B3=0b101, b:B5=0b00011, c:B8=0xAB
//	bytes  1010 0011  1010 1011
//	       aaab bbbb  cccc cccc
//
// # Access
//
// Record.Get and Record.Set dispatch by field name at runtime. Accessor[T],
// obtained with FieldOf, resolves the field once and reads or writes the
// native type directly. Codec derives layouts from tagged Go structs.
package bitfield
