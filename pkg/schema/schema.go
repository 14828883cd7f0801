// Package schema loads bitfield layouts from YAML or TOML declarations.
//
//	name: Header
//	enums:
//	  - name: Mode
//	    variants:
//	      - {name: Off}
//	      - {name: On}
//	fields:
//	  - {name: version, type: B3, bits: 3}
//	  - {name: mode, type: Mode}
//	  - {name: length, type: B12}
//
// A variant without a value takes the previous value plus one, starting at 0.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rawbytedev/bitfield"
)

var (
	ErrMissingName   = errors.New("missing name")
	ErrUnknownType   = errors.New("unknown field type")
	ErrDuplicateEnum = errors.New("duplicate enum name")
	ErrUnknownFormat = errors.New("unknown schema format")
	ErrUnknownKey    = errors.New("unknown schema key")
)

type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

type File struct {
	Name   string     `yaml:"name" toml:"name"`
	Enums  []EnumDef  `yaml:"enums" toml:"enums"`
	Fields []FieldDef `yaml:"fields" toml:"fields"`
}

type EnumDef struct {
	Name     string       `yaml:"name" toml:"name"`
	Variants []VariantDef `yaml:"variants" toml:"variants"`
}

type VariantDef struct {
	Name  string  `yaml:"name" toml:"name"`
	Value *uint64 `yaml:"value" toml:"value"`
}

type FieldDef struct {
	Name string `yaml:"name" toml:"name"`
	Type string `yaml:"type" toml:"type"`
	Bits int    `yaml:"bits" toml:"bits"`
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return 0, fmt.Errorf("schema %s: %w", path, ErrUnknownFormat)
}

// Parse decodes a schema document. Unknown keys are rejected in both formats.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("schema parse failed: %w", err)
		}
	case FormatTOML:
		meta, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, fmt.Errorf("schema parse failed: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("schema key %q: %w", undecoded[0].String(), ErrUnknownKey)
		}
	default:
		return nil, ErrUnknownFormat
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the declaration shape. Width, alignment and enum rules
// are enforced when the layout is built.
func Validate(f *File) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("schema: %w", ErrMissingName)
	}
	seen := make(map[string]bool, len(f.Enums))
	for i, e := range f.Enums {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("schema %s: enum[%d]: %w", f.Name, i, ErrMissingName)
		}
		if seen[e.Name] || isBuiltin(e.Name) {
			return fmt.Errorf("schema %s: enum %s: %w", f.Name, e.Name, ErrDuplicateEnum)
		}
		seen[e.Name] = true
		for j, v := range e.Variants {
			if strings.TrimSpace(v.Name) == "" {
				return fmt.Errorf("schema %s: enum %s: variant[%d]: %w", f.Name, e.Name, j, ErrMissingName)
			}
		}
	}
	for i, fd := range f.Fields {
		if strings.TrimSpace(fd.Name) == "" {
			return fmt.Errorf("schema %s: field[%d]: %w", f.Name, i, ErrMissingName)
		}
		if strings.TrimSpace(fd.Type) == "" {
			return fmt.Errorf("schema %s: field %s: %w", f.Name, fd.Name, ErrUnknownType)
		}
	}
	return nil
}

func isBuiltin(name string) bool {
	_, err := bitfield.ParseSpecifier(name)
	return err == nil
}

// Layout builds the declared layout. Enum variant rules are checked before
// any field is placed.
func (f *File) Layout() (*bitfield.Layout, error) {
	enums := make(map[string]bitfield.Specifier, len(f.Enums))
	for _, e := range f.Enums {
		variants := make([]bitfield.Variant, len(e.Variants))
		var next uint64
		for i, v := range e.Variants {
			if v.Value != nil {
				next = *v.Value
			}
			variants[i] = bitfield.Variant{Name: v.Name, Value: next}
			next++
		}
		spec, err := bitfield.NewEnum[uint64](e.Name, variants...)
		if err != nil {
			return nil, fmt.Errorf("schema %s: enum %s: %w", f.Name, e.Name, err)
		}
		enums[e.Name] = spec
	}

	decls := make([]bitfield.FieldDecl, 0, len(f.Fields))
	for _, fd := range f.Fields {
		spec, ok := enums[fd.Type]
		if !ok {
			var err error
			spec, err = bitfield.ParseSpecifier(fd.Type)
			if err != nil {
				return nil, fmt.Errorf("schema %s: field %s: type %q: %w", f.Name, fd.Name, fd.Type, ErrUnknownType)
			}
		}
		decls = append(decls, bitfield.FieldDecl{Name: fd.Name, Spec: spec, Bits: fd.Bits})
	}
	return bitfield.BuildLayout(f.Name, decls...)
}

// Load parses data and builds its layout.
func Load(data []byte, format Format) (*bitfield.Layout, error) {
	f, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	return f.Layout()
}

// LoadFile reads a .yaml, .yml or .toml schema and builds its layout.
func LoadFile(path string) (*bitfield.Layout, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema load failed (%s): %w", path, err)
	}
	l, err := Load(data, format)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return l, nil
}
