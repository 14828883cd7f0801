package bitfield

import (
	"fmt"

	"github.com/rawbytedev/bitfield/internal/common"
)

// Record is one packed instance of a Layout. Its buffer is allocated once,
// sized exactly to the layout, and only changed through setters. Concurrent
// readers are safe; writers need external synchronisation.
type Record struct {
	layout *Layout
	data   []byte
}

// New returns a zeroed record.
func (l *Layout) New() *Record {
	return &Record{layout: l, data: AllocateBuffer(l.totalBits)}
}

// Wrap adopts data, typically read back from storage, as a record of l. The
// record aliases data.
func (l *Layout) Wrap(data []byte) (*Record, error) {
	if len(data) != l.Size() {
		return nil, fmt.Errorf("bitfield: %s wants %d bytes, got %d: %w", l.name, l.Size(), len(data), ErrBufferSize)
	}
	return &Record{layout: l, data: data}, nil
}

func (r *Record) Layout() *Layout { return r.layout }

// Bytes returns the packed buffer. Fields appear in declaration order, most
// significant bit first.
func (r *Record) Bytes() []byte { return r.data }

func (r *Record) Clone() *Record {
	return &Record{layout: r.layout, data: append([]byte(nil), r.data...)}
}

// Reset zeroes every field.
func (r *Record) Reset() {
	clear(r.data)
}

func (r *Record) field(name string) (Field, error) {
	f, ok := r.layout.Field(name)
	if !ok {
		return Field{}, fmt.Errorf("bitfield: %s.%s: %w", r.layout.name, name, ErrUnknownField)
	}
	return f, nil
}

// GetRaw returns the encoded value of a field.
func (r *Record) GetRaw(name string) (uint64, error) {
	f, err := r.field(name)
	if err != nil {
		return 0, err
	}
	return common.ReadBits(r.data, f.Offset, f.Width), nil
}

// SetRaw stores an already encoded value. It must fit the field width.
func (r *Record) SetRaw(name string, v uint64) error {
	f, err := r.field(name)
	if err != nil {
		return err
	}
	if v > widthMask(f.Width) {
		return fmt.Errorf("bitfield: %s.%s: %d: %w", r.layout.name, name, v, ErrValueOverflow)
	}
	common.WriteBits(r.data, f.Offset, f.Width, v)
	return nil
}

// Get decodes a field through its specifier.
func (r *Record) Get(name string) (any, error) {
	f, err := r.field(name)
	if err != nil {
		return nil, err
	}
	return f.Spec.FromU64(common.ReadBits(r.data, f.Offset, f.Width)), nil
}

// Set encodes v through the field's specifier and stores it.
func (r *Record) Set(name string, v any) error {
	f, err := r.field(name)
	if err != nil {
		return err
	}
	x, err := f.Spec.ToU64(v)
	if err != nil {
		return fmt.Errorf("bitfield: %s.%s: %w", r.layout.name, name, err)
	}
	common.WriteBits(r.data, f.Offset, f.Width, x)
	return nil
}

// Values decodes every field, keyed by name.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.layout.fields))
	for _, f := range r.layout.fields {
		out[f.Name] = f.Spec.FromU64(common.ReadBits(r.data, f.Offset, f.Width))
	}
	return out
}
