package ir

import (
	"cmp"
	"maps"
	"slices"
	"strings"
)

// Project is the merged, validated view of every discovered SDL source.
type Project struct {
	Sources     []*Source                       `json:"sources"`
	Schema      *Schema                         `json:"schema,omitempty"`
	Definitions map[string]*Definition          `json:"definitions"`
	Directives  map[string]*DirectiveDefinition `json:"directives"`
}

type Schema struct {
	QueryType    string `json:"queryType,omitempty"`
	MutationType string `json:"mutationType,omitempty"`
}

// Origin tells where an SDL source came from.
type Origin string

const (
	OriginPrelude   Origin = "prelude"
	OriginGenerated Origin = "generated"
	OriginSource    Origin = "source"
	OriginModule    Origin = "module"
)

// Source is one loaded SDL document.
type Source struct {
	ID       SourceID `json:"id"`
	Name     string   `json:"name"`
	FilePath string   `json:"filePath,omitempty"`
	Origin   Origin   `json:"origin"`

	Definitions []string `json:"definitions"`
	// RootFields lists "Type.field" for every root field the source contributes.
	RootFields []string `json:"rootFields"`
}

// SourceID is unique across a discovery chain, e.g. "generated:resolvers/product.resolver.graphql".
type SourceID string

type Definition struct {
	Object *ObjectDefinition `json:"object,omitempty"`
	Input  *InputDefinition  `json:"input,omitempty"`
	Enum   *EnumDefinition   `json:"enum,omitempty"`
	Scalar *ScalarDefinition `json:"scalar,omitempty"`
}

type ObjectDefinition struct {
	Name        string                      `json:"name"`
	Description string                      `json:"description,omitempty"`
	Fields      map[string]*FieldDefinition `json:"fields"`
}

type InputDefinition struct {
	Name        string                           `json:"name"`
	Description string                           `json:"description,omitempty"`
	InputValues map[string]*InputValueDefinition `json:"inputValues"`
}

type EnumDefinition struct {
	Name        string                          `json:"name"`
	Description string                          `json:"description,omitempty"`
	Values      map[string]*EnumValueDefinition `json:"values"`
}

type EnumValueDefinition struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Index       int          `json:"index"`
	Deprecation *Deprecation `json:"deprecation,omitempty"`
}

type ScalarDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type DirectiveDefinition struct {
	Name        string                         `json:"name"`
	Description string                         `json:"description,omitempty"`
	Args        map[string]*ArgumentDefinition `json:"args"`
	Repeatable  bool                           `json:"repeatable,omitempty"`
	Locations   []string                       `json:"locations"`
}

type FieldDefinition struct {
	Name        string                         `json:"name"`
	Description string                         `json:"description,omitempty"`
	Index       int                            `json:"index"`
	Args        map[string]*ArgumentDefinition `json:"args"`
	Type        *TypeExpr                      `json:"fieldType"`
	Deprecation *Deprecation                   `json:"deprecation,omitempty"`

	// Policy is set when the field carries @auth or @rootOnly.
	Policy *Policy `json:"policy,omitempty"`
	// Binding is set by @bind on root fields.
	Binding *Binding `json:"binding,omitempty"`
	// Link is set by @link on entity fields referencing another entity.
	Link *Link `json:"link,omitempty"`
}

// Policy is the access requirement of a field.
// An empty Roles list with RootOnly unset still requires a valid token.
type Policy struct {
	Roles    []string `json:"roles,omitempty"`
	RootOnly bool     `json:"rootOnly,omitempty"`
}

// Binding names the service method backing a root field.
type Binding struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    string `json:"args,omitempty"`
}

// Link resolves a field holding a key of another entity.
type Link struct {
	Entity string `json:"entity"`
	Field  string `json:"field"`
}

type ArgumentDefinition struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Index        int          `json:"index"`
	DefaultValue Value        `json:"defaultValue,omitempty"`
	Type         *TypeExpr    `json:"type"`
	Deprecation  *Deprecation `json:"deprecation,omitempty"`
}

type InputValueDefinition struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Index        int          `json:"index"`
	DefaultValue Value        `json:"defaultValue,omitempty"`
	Type         *TypeExpr    `json:"type"`
	Deprecation  *Deprecation `json:"deprecation,omitempty"`
}

type Value = any

type Deprecation struct {
	Reason string `json:"reason,omitempty"`
}

// TypeExpr represents a GraphQL type expression (e.g. String, [String!], String!).
type TypeExpr struct {
	Kind   TypeExprKind `json:"kind"`
	OfType *TypeExpr    `json:"ofType,omitempty"`
	Named  string       `json:"named,omitempty"`
}

type TypeExprKind string

const (
	TypeExprKindNamed   TypeExprKind = "NAMED"
	TypeExprKindList    TypeExprKind = "LIST"
	TypeExprKindNonNull TypeExprKind = "NON_NULL"
)

// NamedType returns the innermost named type.
func (t *TypeExpr) NamedType() string {
	for t != nil && t.Kind != TypeExprKindNamed {
		t = t.OfType
	}
	if t == nil {
		return ""
	}
	return t.Named
}

// IsList reports whether the type is a list, possibly wrapped in Non-Null.
func (t *TypeExpr) IsList() bool {
	if t != nil && t.Kind == TypeExprKindNonNull {
		t = t.OfType
	}
	return t != nil && t.Kind == TypeExprKindList
}

// String renders t in SDL notation. Unresolved references print as Unknown.
func (t *TypeExpr) String() string {
	switch {
	case t == nil:
		return "Unknown"
	case t.Kind == TypeExprKindList:
		return "[" + t.OfType.String() + "]"
	case t.Kind == TypeExprKindNonNull:
		return strings.TrimSuffix(t.OfType.String(), "!") + "!"
	}
	return t.Named
}

// byIndex lists the members of m in declaration order.
func byIndex[T any](m map[string]*T, index func(*T) int) []*T {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b *T) int { return cmp.Compare(index(a), index(b)) })
	return out
}

func (o *ObjectDefinition) OrderedFields() []*FieldDefinition {
	return byIndex(o.Fields, func(f *FieldDefinition) int { return f.Index })
}

func (f *FieldDefinition) OrderedArgs() []*ArgumentDefinition {
	return byIndex(f.Args, func(a *ArgumentDefinition) int { return a.Index })
}

func (e *EnumDefinition) OrderedValues() []*EnumValueDefinition {
	return byIndex(e.Values, func(v *EnumValueDefinition) int { return v.Index })
}

func (i *InputDefinition) OrderedInputValues() []*InputValueDefinition {
	return byIndex(i.InputValues, func(v *InputValueDefinition) int { return v.Index })
}

// RootObject returns the object definition of a root operation type.
func (p *Project) RootObject(name string) *ObjectDefinition {
	if def := p.Definitions[name]; def != nil {
		return def.Object
	}
	return nil
}

// BoundFields returns every root field carrying a binding, Query first.
func (p *Project) BoundFields() []*FieldDefinition {
	if p.Schema == nil {
		return nil
	}
	var out []*FieldDefinition
	for _, root := range []string{p.Schema.QueryType, p.Schema.MutationType} {
		obj := p.RootObject(root)
		if obj == nil {
			continue
		}
		for _, f := range obj.OrderedFields() {
			if f.Binding != nil {
				out = append(out, f)
			}
		}
	}
	return out
}
