package bitfield

// Builder accumulates field declarations for BuildLayout.
//
//	l, err := bitfield.NewBuilder("header").
//		Add("version", bitfield.B(4)).
//		AddBits("flags", bitfield.B(4), 4).
//		Build()
type Builder struct {
	name  string
	decls []FieldDecl
}

func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Add appends a field with no explicit width annotation.
func (b *Builder) Add(name string, spec Specifier) *Builder {
	b.decls = append(b.decls, FieldDecl{Name: name, Spec: spec})
	return b
}

// AddBits appends a field annotated with the width it is expected to have.
func (b *Builder) AddBits(name string, spec Specifier, bits int) *Builder {
	b.decls = append(b.decls, FieldDecl{Name: name, Spec: spec, Bits: bits})
	return b
}

func (b *Builder) Build() (*Layout, error) {
	return BuildLayout(b.name, b.decls...)
}

func (b *Builder) MustBuild() *Layout {
	return MustLayout(b.name, b.decls...)
}
