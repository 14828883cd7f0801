package bitfield

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// FieldDecl declares one field of a layout. Bits is the optional explicit
// width annotation; zero means none.
type FieldDecl struct {
	Name string
	Spec Specifier
	Bits int
}

// Field is a placed field: its specifier and the bit range it occupies.
type Field struct {
	Name   string
	Spec   Specifier
	Offset int
	Width  int
}

// Layout is the immutable placement of an ordered field list in a packed
// buffer. Field i starts at the sum of the widths of fields 0..i-1.
type Layout struct {
	name      string
	fields    []Field
	index     map[string]int
	totalBits int
	id        uint64
}

// ComputeOffsets returns the prefix-sum bit offsets of widths and their total.
func ComputeOffsets(widths []int) ([]int, int) {
	offsets := make([]int, len(widths))
	total := 0
	for i, w := range widths {
		offsets[i] = total
		total += w
	}
	return offsets, total
}

// BuildLayout validates decls and places them in declaration order. Field
// names must be unique, widths must lie in [1, 64], enum specifiers must pass
// ValidateEnumSpecifier, explicit widths must match their specifier, and the
// total must be a whole number of bytes.
func BuildLayout(name string, decls ...FieldDecl) (*Layout, error) {
	l, err := buildLayout(name, decls)
	if err != nil {
		Logger().Debug("layout rejected", zap.String("layout", name), zap.Error(err))
		return nil, err
	}
	Logger().Debug("layout built",
		zap.String("layout", name),
		zap.Int("fields", len(l.fields)),
		zap.Int("bits", l.totalBits),
		zap.Uint64("id", l.id))
	return l, nil
}

func buildLayout(name string, decls []FieldDecl) (*Layout, error) {
	l := &Layout{
		name:   name,
		fields: make([]Field, 0, len(decls)),
		index:  make(map[string]int, len(decls)),
	}
	offset := 0
	for _, d := range decls {
		if d.Name == "" {
			return nil, &LayoutError{Err: ErrEmptyFieldName}
		}
		if _, dup := l.index[d.Name]; dup {
			return nil, &LayoutError{Field: d.Name, Err: ErrDuplicateField}
		}
		if d.Spec == nil {
			return nil, &LayoutError{Field: d.Name, Err: ErrNilSpecifier}
		}
		if en, ok := d.Spec.(Enumeration); ok {
			if err := ValidateEnumSpecifier(en.Variants()); err != nil {
				return nil, fmt.Errorf("bitfield: field %q: %w", d.Name, err)
			}
		}
		width := d.Spec.Bits()
		if width < 1 || width > 64 {
			return nil, &LayoutError{Field: d.Name, Actual: width, Err: ErrInvalidWidth}
		}
		if d.Bits != 0 && d.Bits != width {
			return nil, &LayoutError{Field: d.Name, Declared: d.Bits, Actual: width, Err: ErrWidthMismatch}
		}
		l.index[d.Name] = len(l.fields)
		l.fields = append(l.fields, Field{Name: d.Name, Spec: d.Spec, Offset: offset, Width: width})
		offset += width
	}
	if offset%8 != 0 {
		return nil, &LayoutError{TotalBits: offset, Err: ErrNotByteAligned}
	}
	l.totalBits = offset
	l.id = fingerprint(l)
	return l, nil
}

// fingerprint hashes everything that defines the packed format.
func fingerprint(l *Layout) uint64 {
	d := xxhash.New()
	var scratch [8]byte
	_, _ = d.WriteString(l.name)
	for _, f := range l.fields {
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(f.Name)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(f.Spec.Name())
		binary.LittleEndian.PutUint16(scratch[:2], uint16(f.Width))
		_, _ = d.Write(scratch[:2])
		if en, ok := f.Spec.(Enumeration); ok {
			for _, v := range en.Variants() {
				_, _ = d.WriteString(v.Name)
				binary.LittleEndian.PutUint64(scratch[:], v.Value)
				_, _ = d.Write(scratch[:])
			}
		}
	}
	return d.Sum64()
}

// MustLayout is like BuildLayout but panics on error.
func MustLayout(name string, decls ...FieldDecl) *Layout {
	l, err := BuildLayout(name, decls...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Layout) Name() string { return l.name }

// ID is a stable 64-bit fingerprint of the layout's name, fields and
// specifiers. Frames carry it to identify their schema.
func (l *Layout) ID() uint64 { return l.id }

func (l *Layout) NumFields() int { return len(l.fields) }

func (l *Layout) TotalBits() int { return l.totalBits }

// Size is the packed buffer length in bytes.
func (l *Layout) Size() int { return l.totalBits / 8 }

// Fields returns the placed fields in declaration order.
func (l *Layout) Fields() []Field {
	return append([]Field(nil), l.fields...)
}

func (l *Layout) FieldAt(i int) Field { return l.fields[i] }

func (l *Layout) Field(name string) (Field, bool) {
	i, ok := l.index[name]
	if !ok {
		return Field{}, false
	}
	return l.fields[i], true
}

func (l *Layout) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d bits, %d bytes)\n", l.name, l.totalBits, l.Size())
	for _, f := range l.fields {
		fmt.Fprintf(&sb, "  %-16s %4d..%-4d %s\n", f.Name, f.Offset, f.Offset+f.Width, f.Spec.Name())
	}
	return sb.String()
}

// AllocateBuffer returns a zeroed buffer of totalBits/8 bytes. totalBits
// must come from a built Layout; anything else panics.
func AllocateBuffer(totalBits int) []byte {
	if totalBits < 0 || totalBits%8 != 0 {
		panic(fmt.Sprintf("bitfield: cannot allocate %d bits", totalBits))
	}
	return make([]byte, totalBits/8)
}
