package bitfield

import (
	"errors"
	"fmt"
)

var (
	ErrNotByteAligned         = errors.New("total size is not a multiple of 8 bits")
	ErrWidthMismatch          = errors.New("declared bits do not match specifier width")
	ErrInvalidWidth           = errors.New("specifier width must be between 1 and 64 bits")
	ErrDuplicateField         = errors.New("duplicate field name")
	ErrEmptyFieldName         = errors.New("empty field name")
	ErrNilSpecifier           = errors.New("nil specifier")
	ErrNotPowerOfTwo          = errors.New("variant count is not a power of two")
	ErrDiscriminantOutOfRange = errors.New("discriminant out of range")
	ErrUnknownField           = errors.New("unknown field")
	ErrTypeMismatch           = errors.New("value type does not match specifier")
	ErrValueOverflow          = errors.New("value does not fit in field width")
	ErrBufferSize             = errors.New("buffer size does not match layout")
	ErrNotStruct              = errors.New("expected struct")
	ErrNotStructPtr           = errors.New("expected pointer to struct")
	ErrUnsupported            = errors.New("unsupported type")
	ErrAlreadyRegistered      = errors.New("layout name already registered")
)

// LayoutError reports why a field list could not become a Layout.
type LayoutError struct {
	Field     string
	Declared  int
	Actual    int
	TotalBits int
	Err       error
}

func (e *LayoutError) Error() string {
	switch {
	case errors.Is(e.Err, ErrNotByteAligned):
		return fmt.Sprintf("bitfield: %v: %d bits", e.Err, e.TotalBits)
	case errors.Is(e.Err, ErrWidthMismatch):
		return fmt.Sprintf("bitfield: field %q: %v: declared %d, actual %d", e.Field, e.Err, e.Declared, e.Actual)
	case e.Field != "":
		return fmt.Sprintf("bitfield: field %q: %v", e.Field, e.Err)
	default:
		return "bitfield: " + e.Err.Error()
	}
}

func (e *LayoutError) Unwrap() error { return e.Err }

// SpecifierError reports an enumeration that cannot be used as a specifier.
type SpecifierError struct {
	Variant string
	Value   uint64
	Max     uint64
	Count   int
	Err     error
}

func (e *SpecifierError) Error() string {
	switch {
	case errors.Is(e.Err, ErrNotPowerOfTwo):
		return fmt.Sprintf("bitfield: %v: %d variants", e.Err, e.Count)
	case errors.Is(e.Err, ErrDiscriminantOutOfRange):
		return fmt.Sprintf("bitfield: variant %q: %v: %d > %d", e.Variant, e.Err, e.Value, e.Max)
	default:
		return fmt.Sprintf("bitfield: %v: %d variants", e.Err, e.Count)
	}
}

func (e *SpecifierError) Unwrap() error { return e.Err }
