package bitfield

import (
	"fmt"
	"strings"

	"github.com/rawbytedev/bitfield/internal/common"
)

type variantNamer interface {
	VariantName(x uint64) (string, bool)
}

// String renders the record as "name { field: value, ... }". Enum fields
// print their variant name.
func (r *Record) String() string {
	return r.Format(nil)
}

// Format renders the record like String, formatting the fields named in
// overrides with the given fmt verb instead, e.g. {"flags": "0b%08b"}.
func (r *Record) Format(overrides map[string]string) string {
	var sb strings.Builder
	sb.WriteString(r.layout.name)
	sb.WriteString(" {")
	for i, f := range r.layout.fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte(' ')
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		raw := common.ReadBits(r.data, f.Offset, f.Width)
		if verb, ok := overrides[f.Name]; ok {
			fmt.Fprintf(&sb, verb, f.Spec.FromU64(raw))
			continue
		}
		sb.WriteString(formatValue(f.Spec, raw))
	}
	sb.WriteString(" }")
	return sb.String()
}

// FieldString formats one field the way String does.
func (r *Record) FieldString(name string) (string, error) {
	f, err := r.field(name)
	if err != nil {
		return "", err
	}
	return formatValue(f.Spec, common.ReadBits(r.data, f.Offset, f.Width)), nil
}

func formatValue(spec Specifier, raw uint64) string {
	if vn, ok := spec.(variantNamer); ok {
		if name, ok := vn.VariantName(raw); ok {
			return name
		}
		return fmt.Sprintf("%s(%d)", spec.Name(), raw)
	}
	return fmt.Sprint(spec.FromU64(raw))
}
