package bitfield

import (
	"fmt"
	"reflect"

	"github.com/rawbytedev/bitfield/internal/common"
)

// Accessor reads and writes one field with its native type, skipping the
// name lookup and interface conversions of Record.Get/Set. It must only be
// used with records of the layout it was resolved from.
type Accessor[T any] struct {
	name   string
	offset int
	width  int
	spec   TypedSpecifier[T]
}

// FieldOf resolves a typed accessor for name. T must be the native type of
// the field's specifier, e.g. uint16 for B12 or bool for Bool.
func FieldOf[T any](l *Layout, name string) (Accessor[T], error) {
	f, ok := l.Field(name)
	if !ok {
		return Accessor[T]{}, fmt.Errorf("bitfield: %s.%s: %w", l.name, name, ErrUnknownField)
	}
	spec, ok := f.Spec.(TypedSpecifier[T])
	if !ok {
		if ns, native := f.Spec.(nativeSpecifier); native && ns.nativeType() == reflect.TypeOf((*T)(nil)).Elem() {
			spec, ok = convertSpec[T]{ns}, true
		}
	}
	if !ok {
		var zero T
		return Accessor[T]{}, fmt.Errorf("bitfield: %s.%s is %s, not %T: %w", l.name, name, f.Spec.Name(), zero, ErrTypeMismatch)
	}
	return Accessor[T]{name: name, offset: f.Offset, width: f.Width, spec: spec}, nil
}

// MustField is like FieldOf but panics on error.
func MustField[T any](l *Layout, name string) Accessor[T] {
	a, err := FieldOf[T](l, name)
	if err != nil {
		panic(err)
	}
	return a
}

// nativeSpecifier is implemented by specifiers whose Go type is only known
// at run time, such as enum fields of a struct read by Codec.
type nativeSpecifier interface {
	Specifier
	nativeType() reflect.Type
}

// convertSpec adapts a nativeSpecifier to T, which must be its native type.
type convertSpec[T any] struct {
	nativeSpecifier
}

func (c convertSpec[T]) Encode(v T) uint64 {
	return reflect.ValueOf(v).Uint() & widthMask(c.Bits())
}

func (c convertSpec[T]) Decode(x uint64) T {
	return c.FromU64(x).(T)
}

func (a Accessor[T]) Name() string { return a.name }

func (a Accessor[T]) Get(r *Record) T {
	return GetField(r.data, a.offset, a.width, a.spec)
}

func (a Accessor[T]) Set(r *Record, v T) {
	SetField(r.data, a.offset, a.width, a.spec, v)
}

// GetField reads width bits at offset and decodes them through spec.
func GetField[T any](buf []byte, offset, width int, spec TypedSpecifier[T]) T {
	return spec.Decode(common.ReadBits(buf, offset, width))
}

// SetField encodes v through spec and writes it at offset in place.
func SetField[T any](buf []byte, offset, width int, spec TypedSpecifier[T], v T) {
	common.WriteBits(buf, offset, width, spec.Encode(v))
}

// ReadBits exposes the raw codec: width bits at absolute bit index start,
// most significant bit first. Out of range arguments panic.
func ReadBits(buf []byte, start, width int) uint64 {
	return common.ReadBits(buf, start, width)
}

// WriteBits stores the low width bits of v at start, leaving every other
// bit of buf unchanged. Out of range arguments panic.
func WriteBits(buf []byte, start, width int, v uint64) {
	common.WriteBits(buf, start, width, v)
}
