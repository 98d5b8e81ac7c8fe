// Package schema holds the executable schema: the types the executor walks,
// built from the merged resolver sources or from inline SDL.
package schema

import "strings"

type Schema struct {
	Description  string
	QueryType    string
	MutationType string
	Types        map[string]*Type
	Directives   map[string]*Directive
}

// Root returns the root type for an operation kind ("query" or "mutation"),
// or nil when the schema has none.
func (s *Schema) Root(operation string) *Type {
	switch operation {
	case "query", "":
		return s.Types[s.QueryType]
	case "mutation":
		if s.MutationType == "" {
			return nil
		}
		return s.Types[s.MutationType]
	}
	return nil
}

type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// Type is a named type. Which member slice is used depends on Kind.
type Type struct {
	Name        string
	Kind        TypeKind
	Description string

	Fields      []*Field
	EnumValues  []*EnumValue
	InputFields []*InputValue
	// OneOf marks an input object that takes exactly one field.
	OneOf bool
}

func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Field is an output field. Async fields are resolved in batches between
// completion waves; the rest are resolved inline.
type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue
	Async             bool
	IsDeprecated      bool
	DeprecationReason string
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

// InputValue is an argument or input object field. A nil DefaultValue means
// no default.
type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	IsDeprecated      bool
	DeprecationReason string
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// TypeRef is a possibly wrapped reference to a named type.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef
	Named  string
}

func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }

func (t *TypeRef) IsNonNull() bool { return t != nil && t.Kind == TypeRefKindNonNull }

// IsList reports whether t is a list, possibly wrapped in Non-Null.
func (t *TypeRef) IsList() bool {
	if t.IsNonNull() {
		t = t.OfType
	}
	return t != nil && t.Kind == TypeRefKindList
}

// Name returns the innermost named type.
func (t *TypeRef) Name() string {
	for t != nil && t.Kind != TypeRefKindNamed {
		t = t.OfType
	}
	if t == nil {
		return ""
	}
	return t.Named
}

func (t *TypeRef) String() string {
	switch {
	case t == nil:
		return ""
	case t.Kind == TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	case t.Kind == TypeRefKindNonNull:
		return strings.TrimSuffix(t.OfType.String(), "!") + "!"
	}
	return t.Named
}
