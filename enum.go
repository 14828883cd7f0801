package bitfield

import (
	"fmt"
	"math/bits"
	"strconv"

	"go.uber.org/zap"
)

// Variant is one member of an enumeration used as a specifier.
// Discriminants need not be sequential.
type Variant struct {
	Name  string
	Value uint64
}

// Enumeration is implemented by types that can act as enum specifiers when
// declared through struct tags or schema files.
type Enumeration interface {
	Variants() []Variant
}

// ValidateEnumSpecifier checks that the variant count is a power of two and
// that every discriminant fits in log2(count) bits. Duplicate discriminants
// are accepted.
func ValidateEnumSpecifier(variants []Variant) error {
	n := uint64(len(variants))
	if n == 0 || n&(n-1) != 0 {
		err := &SpecifierError{Count: len(variants), Err: ErrNotPowerOfTwo}
		Logger().Debug("enum specifier rejected", zap.Error(err))
		return err
	}
	limit := n - 1
	for _, v := range variants {
		if v.Value > limit {
			err := &SpecifierError{Variant: v.Name, Value: v.Value, Max: limit, Count: len(variants), Err: ErrDiscriminantOutOfRange}
			Logger().Debug("enum specifier rejected", zap.Error(err))
			return err
		}
	}
	return nil
}

// enumWidth returns log2 of a validated variant count.
func enumWidth(count int) int {
	return bits.TrailingZeros64(uint64(count))
}

// Enum is a specifier over a user enumeration with native type T.
type Enum[T Unsigned] struct {
	name     string
	bits     int
	variants []Variant
	byValue  map[uint64]string
	byName   map[string]uint64
}

// NewEnum validates variants and returns the enum specifier for T. A single
// variant enum would be zero bits wide and is rejected with ErrInvalidWidth.
func NewEnum[T Unsigned](name string, variants ...Variant) (*Enum[T], error) {
	if err := ValidateEnumSpecifier(variants); err != nil {
		return nil, err
	}
	width := enumWidth(len(variants))
	if width < 1 || width > containerBits[T]() {
		return nil, &SpecifierError{Count: len(variants), Err: ErrInvalidWidth}
	}
	e := &Enum[T]{
		name:     name,
		bits:     width,
		variants: append([]Variant(nil), variants...),
		byValue:  make(map[uint64]string, len(variants)),
		byName:   make(map[string]uint64, len(variants)),
	}
	for _, v := range variants {
		// first name wins when discriminants repeat
		if _, ok := e.byValue[v.Value]; !ok {
			e.byValue[v.Value] = v.Name
		}
		e.byName[v.Name] = v.Value
	}
	return e, nil
}

// MustEnum is like NewEnum but panics on error. It is meant for package
// level specifier declarations.
func MustEnum[T Unsigned](name string, variants ...Variant) *Enum[T] {
	e, err := NewEnum[T](name, variants...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Enum[T]) Name() string { return e.name }

func (e *Enum[T]) Bits() int { return e.bits }

// Variants returns a copy of the declared variants in declaration order.
func (e *Enum[T]) Variants() []Variant {
	return append([]Variant(nil), e.variants...)
}

func (e *Enum[T]) Encode(v T) uint64 { return uint64(v) & widthMask(e.bits) }

func (e *Enum[T]) Decode(x uint64) T { return T(x & widthMask(e.bits)) }

// VariantName returns the name of the variant with discriminant x.
func (e *Enum[T]) VariantName(x uint64) (string, bool) {
	name, ok := e.byValue[x]
	return name, ok
}

// ToU64 accepts a declared discriminant as any integer type, or a variant
// name.
func (e *Enum[T]) ToU64(v any) (uint64, error) {
	if s, ok := v.(string); ok {
		if x, ok := e.byName[s]; ok {
			return x, nil
		}
		if x, err := strconv.ParseUint(s, 0, 64); err == nil {
			v = x
		} else {
			return 0, fmt.Errorf("%s has no variant %q: %w", e.name, s, ErrTypeMismatch)
		}
	}
	x, err := unsignedValue(v)
	if err != nil {
		return 0, err
	}
	if _, ok := e.byValue[x]; !ok {
		return 0, fmt.Errorf("%s has no discriminant %d: %w", e.name, x, ErrValueOverflow)
	}
	return x, nil
}

func (e *Enum[T]) FromU64(x uint64) any { return e.Decode(x) }

// enumOf builds a uint64-backed enum specifier from an Enumeration value.
func enumOf(name string, en Enumeration) (*Enum[uint64], error) {
	return NewEnum[uint64](name, en.Variants()...)
}
