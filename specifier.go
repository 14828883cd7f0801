package bitfield

import (
	"fmt"
	"math/bits"
	"reflect"
	"strconv"
	"strings"
)

// Specifier binds a type to a bit width and a lossless mapping to and from
// an unsigned 64-bit domain value. ToU64 and FromU64 are the runtime
// dispatch forms used by Record.Get and Record.Set.
type Specifier interface {
	Name() string
	Bits() int
	ToU64(v any) (uint64, error)
	FromU64(u uint64) any
}

// TypedSpecifier is a Specifier with a static native type. Encode must
// return a value below 2^Bits() and Decode(Encode(v)) must equal v.
type TypedSpecifier[T any] interface {
	Specifier
	Encode(v T) uint64
	Decode(u uint64) T
}

// Unsigned is the set of native containers for integer specifiers.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func widthMask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(n) - 1
}

func containerBits[T Unsigned]() int {
	return bits.Len64(uint64(^T(0)))
}

// Uint is an n-bit unsigned integer specifier stored in native type T.
type Uint[T Unsigned] struct {
	bits int
}

func newUint[T Unsigned](n int) Uint[T] {
	if n < 1 || n > containerBits[T]() {
		panic(fmt.Sprintf("bitfield: %d bits does not fit a %d-bit container", n, containerBits[T]()))
	}
	return Uint[T]{bits: n}
}

// Bits8 returns the n-bit specifier backed by uint8. It panics unless 1 <= n <= 8.
func Bits8(n int) Uint[uint8] { return newUint[uint8](n) }

// Bits16 returns the n-bit specifier backed by uint16. It panics unless 1 <= n <= 16.
func Bits16(n int) Uint[uint16] { return newUint[uint16](n) }

// Bits32 returns the n-bit specifier backed by uint32. It panics unless 1 <= n <= 32.
func Bits32(n int) Uint[uint32] { return newUint[uint32](n) }

// Bits64 returns the n-bit specifier backed by uint64. It panics unless 1 <= n <= 64.
func Bits64(n int) Uint[uint64] { return newUint[uint64](n) }

// B returns the n-bit unsigned specifier in the smallest container that
// holds it: 1-8 bits use uint8, 9-16 uint16, 17-32 uint32, 33-64 uint64.
// It panics when n is outside [1, 64]; UintSpecifier is the checked form.
func B(n int) Specifier {
	s, err := UintSpecifier(n)
	if err != nil {
		panic(err)
	}
	return s
}

// UintSpecifier is like B but reports an invalid width as an error.
func UintSpecifier(n int) (Specifier, error) {
	switch {
	case n >= 1 && n <= 8:
		return Bits8(n), nil
	case n >= 9 && n <= 16:
		return Bits16(n), nil
	case n >= 17 && n <= 32:
		return Bits32(n), nil
	case n >= 33 && n <= 64:
		return Bits64(n), nil
	}
	return nil, fmt.Errorf("bitfield: B%d: %w", n, ErrInvalidWidth)
}

// ParseSpecifier resolves a built-in specifier name: "bool" or "B1" to "B64".
func ParseSpecifier(name string) (Specifier, error) {
	switch {
	case name == "bool":
		return Bool, nil
	case len(name) > 1 && (name[0] == 'B' || name[0] == 'b'):
		n, err := strconv.Atoi(name[1:])
		if err != nil {
			break
		}
		return UintSpecifier(n)
	}
	return nil, fmt.Errorf("bitfield: specifier %q: %w", name, ErrUnsupported)
}

func (u Uint[T]) Name() string { return "B" + strconv.Itoa(u.bits) }

func (u Uint[T]) Bits() int { return u.bits }

func (u Uint[T]) Encode(v T) uint64 { return uint64(v) & widthMask(u.bits) }

func (u Uint[T]) Decode(x uint64) T { return T(x & widthMask(u.bits)) }

func (u Uint[T]) ToU64(v any) (uint64, error) {
	x, err := unsignedValue(v)
	if err != nil {
		return 0, err
	}
	if x > widthMask(u.bits) {
		return 0, fmt.Errorf("%d in %s: %w", x, u.Name(), ErrValueOverflow)
	}
	return x, nil
}

func (u Uint[T]) FromU64(x uint64) any { return u.Decode(x) }

// unsignedValue accepts any integer kind, including named types, and
// rejects negative values.
func unsignedValue(v any) (uint64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Int() < 0 {
			return 0, fmt.Errorf("%d: %w", rv.Int(), ErrValueOverflow)
		}
		return uint64(rv.Int()), nil
	case reflect.String:
		x, err := strconv.ParseUint(strings.TrimSpace(rv.String()), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", rv.String(), ErrTypeMismatch)
		}
		return x, nil
	}
	return 0, fmt.Errorf("%T: %w", v, ErrTypeMismatch)
}

// BoolSpec is the one-bit boolean specifier.
type BoolSpec struct{}

// Bool maps true to 1 and false to 0.
var Bool BoolSpec

func (BoolSpec) Name() string { return "bool" }

func (BoolSpec) Bits() int { return 1 }

func (BoolSpec) Encode(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func (BoolSpec) Decode(x uint64) bool { return x&1 == 1 }

func (b BoolSpec) ToU64(v any) (uint64, error) {
	switch t := v.(type) {
	case bool:
		return b.Encode(t), nil
	case string:
		x, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%q: %w", t, ErrTypeMismatch)
		}
		return b.Encode(x), nil
	}
	return 0, fmt.Errorf("%T: %w", v, ErrTypeMismatch)
}

func (b BoolSpec) FromU64(x uint64) any { return b.Decode(x) }
