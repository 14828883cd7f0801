package bitfield

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/rawbytedev/bitfield/internal/common"
)

// Struct tags understood by Codec:
//
//	bitfield:"B12"  field specifier ("bool", "B1".."B64"); "-" skips the field
//	bits:"12"       explicit width, checked against the specifier
//
// Untagged bool fields use Bool, uintN fields use BN, and fields whose type
// implements Enumeration become enum specifiers that decode to that type. An
// enum field takes its width from its variants, so a bitfield tag on it is an
// error; bits is still checked. Unexported fields are skipped.
const (
	tagSpec = "bitfield"
	tagBits = "bits"
)

// Codec packs tagged structs into their layouts. Plans are built once per
// struct type and cached; a Codec is safe for concurrent use.
type Codec struct {
	mu   sync.RWMutex
	plan map[reflect.Type]*structPlan
}

type structPlan struct {
	layout *Layout
	fields []planField
}

type planField struct {
	idx    int
	kind   reflect.Kind
	offset int
	width  int
}

func NewCodec() *Codec {
	return &Codec{plan: make(map[reflect.Type]*structPlan)}
}

var defaultCodec = NewCodec()

// Marshal packs v with the shared Codec.
func Marshal(v any) ([]byte, error) { return defaultCodec.Marshal(v) }

// Unmarshal unpacks data into out with the shared Codec.
func Unmarshal(data []byte, out any) error { return defaultCodec.Unmarshal(data, out) }

// LayoutOf returns the layout declared by v's struct type with the shared Codec.
func LayoutOf(v any) (*Layout, error) { return defaultCodec.LayoutOf(v) }

func (c *Codec) getPlan(t reflect.Type) (*structPlan, error) {
	c.mu.RLock()
	if plan, ok := c.plan[t]; ok {
		c.mu.RUnlock()
		return plan, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if plan, ok := c.plan[t]; ok {
		return plan, nil
	}

	var decls []FieldDecl
	var fields []planField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get(tagSpec)
		if tag == "-" {
			continue
		}
		spec, err := fieldSpecifier(sf, tag)
		if err != nil {
			return nil, fmt.Errorf("bitfield: %s.%s: %w", t.Name(), sf.Name, err)
		}
		decl := FieldDecl{Name: sf.Name, Spec: spec}
		if b := sf.Tag.Get(tagBits); b != "" {
			n, err := strconv.Atoi(b)
			if err != nil {
				return nil, fmt.Errorf("bitfield: %s.%s: bits %q: %w", t.Name(), sf.Name, b, ErrUnsupported)
			}
			decl.Bits = n
		}
		decls = append(decls, decl)
		fields = append(fields, planField{idx: i, kind: sf.Type.Kind()})
	}

	layout, err := BuildLayout(t.Name(), decls...)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		f := layout.FieldAt(i)
		fields[i].offset = f.Offset
		fields[i].width = f.Width
	}
	plan := &structPlan{layout: layout, fields: fields}
	c.plan[t] = plan
	return plan, nil
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func asEnumeration(t reflect.Type) (Enumeration, bool) {
	if en, ok := reflect.Zero(t).Interface().(Enumeration); ok {
		return en, true
	}
	en, ok := reflect.New(t).Interface().(Enumeration)
	return en, ok
}

func fieldSpecifier(sf reflect.StructField, tag string) (Specifier, error) {
	t := sf.Type
	k := t.Kind()
	if en, ok := asEnumeration(t); ok {
		if !isUintKind(k) {
			return nil, fmt.Errorf("enum type %s is %s: %w", t, k, ErrUnsupported)
		}
		if tag != "" {
			return nil, fmt.Errorf("enum type %s with tag %q: %w", t, tag, ErrTypeMismatch)
		}
		e, err := enumOf(t.Name(), en)
		if err != nil {
			return nil, err
		}
		if e.Bits() > t.Bits() {
			return nil, fmt.Errorf("%s cannot hold %d-bit %s: %w", t, e.Bits(), e.Name(), ErrTypeMismatch)
		}
		return enumField{Enum: e, typ: t}, nil
	}
	if tag == "" {
		switch {
		case k == reflect.Bool:
			return Bool, nil
		case isUintKind(k):
			return UintSpecifier(t.Bits())
		}
		return nil, fmt.Errorf("%s: %w", t, ErrUnsupported)
	}

	spec, err := ParseSpecifier(tag)
	if err != nil {
		return nil, err
	}
	_, isBool := spec.(BoolSpec)
	switch {
	case isBool && k == reflect.Bool:
	case !isBool && isUintKind(k) && spec.Bits() <= t.Bits():
	default:
		return nil, fmt.Errorf("%s cannot hold %s: %w", t, spec.Name(), ErrTypeMismatch)
	}
	return spec, nil
}

// enumField is an enum specifier derived from a struct field. It decodes to
// the field's own type instead of uint64.
type enumField struct {
	*Enum[uint64]
	typ reflect.Type
}

func (e enumField) FromU64(x uint64) any {
	return reflect.ValueOf(e.Decode(x)).Convert(e.typ).Interface()
}

func (e enumField) nativeType() reflect.Type { return e.typ }

func structValue(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, ErrNotStruct
	}
	return rv, nil
}

// LayoutOf returns the layout declared by v's struct type.
func (c *Codec) LayoutOf(v any) (*Layout, error) {
	rv, err := structValue(v)
	if err != nil {
		return nil, err
	}
	plan, err := c.getPlan(rv.Type())
	if err != nil {
		return nil, err
	}
	return plan.layout, nil
}

// Marshal packs the struct (or pointer to struct) v into a new buffer.
func (c *Codec) Marshal(v any) ([]byte, error) {
	rec, err := c.MarshalRecord(v)
	if err != nil {
		return nil, err
	}
	return rec.data, nil
}

// MarshalRecord packs v into a new Record of its layout. Values wider than
// their field fail with ErrValueOverflow.
func (c *Codec) MarshalRecord(v any) (*Record, error) {
	rv, err := structValue(v)
	if err != nil {
		return nil, err
	}
	plan, err := c.getPlan(rv.Type())
	if err != nil {
		return nil, err
	}
	rec := plan.layout.New()
	for _, f := range plan.fields {
		fv := rv.Field(f.idx)
		var x uint64
		if f.kind == reflect.Bool {
			if fv.Bool() {
				x = 1
			}
		} else {
			x = fv.Uint()
			if x > widthMask(f.width) {
				return nil, fmt.Errorf("bitfield: %s.%s: %d: %w",
					plan.layout.name, rv.Type().Field(f.idx).Name, x, ErrValueOverflow)
			}
		}
		common.WriteBits(rec.data, f.offset, f.width, x)
	}
	return rec, nil
}

// Unmarshal unpacks data into the struct pointed to by out. data must be
// exactly the layout's size.
func (c *Codec) Unmarshal(data []byte, out any) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return ErrNotStructPtr
	}
	dst := v.Elem()
	plan, err := c.getPlan(dst.Type())
	if err != nil {
		return err
	}
	if len(data) != plan.layout.Size() {
		return fmt.Errorf("bitfield: %s wants %d bytes, got %d: %w",
			plan.layout.name, plan.layout.Size(), len(data), ErrBufferSize)
	}
	for _, f := range plan.fields {
		x := common.ReadBits(data, f.offset, f.width)
		fv := dst.Field(f.idx)
		if f.kind == reflect.Bool {
			fv.SetBool(x == 1)
		} else {
			fv.SetUint(x)
		}
	}
	return nil
}
