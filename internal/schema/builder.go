package schema

import (
	"context"
	"slices"

	"github.com/hanpama/contractgraph/internal/ir"
	language "github.com/hanpama/contractgraph/internal/language"
)

// BuildFromIR turns a merged project into an executable schema. Server-side
// directives are dropped and fields with a binding or a link resolve
// asynchronously.
func BuildFromIR(p *ir.Project) (*Schema, error) {
	s := NewSchema("").
		SetQueryType(p.Schema.QueryType).
		SetMutationType(p.Schema.MutationType)
	addBuiltins(s)

	for name, def := range p.Definitions {
		switch {
		case def.Object != nil:
			s.AddType(objectType(def.Object))
		case def.Enum != nil:
			s.AddType(enumType(def.Enum))
		case def.Input != nil:
			t := NewType(def.Input.Name, TypeKindInputObject, def.Input.Description)
			for _, v := range def.Input.OrderedInputValues() {
				t.AddInputField(inputValue(v.Name, v.Description, v.Type, v.DefaultValue, v.Deprecation))
			}
			s.AddType(t)
		case def.Scalar != nil && !ir.IsBuiltinScalar(name):
			s.AddType(NewType(def.Scalar.Name, TypeKindScalar, def.Scalar.Description))
		}
	}
	for name, dir := range p.Directives {
		if !ir.IsServerDirective(name) {
			s.AddDirective(directive(dir))
		}
	}
	return s, nil
}

func objectType(def *ir.ObjectDefinition) *Type {
	t := NewType(def.Name, TypeKindObject, def.Description)
	for _, fd := range def.OrderedFields() {
		f := NewField(fd.Name, fd.Description, typeRef(fd.Type)).
			SetAsync(fd.Binding != nil || fd.Link != nil)
		if fd.Deprecation != nil {
			f.Deprecate(fd.Deprecation.Reason)
		}
		for _, a := range fd.OrderedArgs() {
			f.AddArgument(inputValue(a.Name, a.Description, a.Type, a.DefaultValue, a.Deprecation))
		}
		t.AddField(f)
	}
	return t
}

func enumType(def *ir.EnumDefinition) *Type {
	t := NewType(def.Name, TypeKindEnum, def.Description)
	for _, v := range def.OrderedValues() {
		ev := NewEnumValue(v.Name, v.Description)
		if v.Deprecation != nil {
			ev.Deprecate(v.Deprecation.Reason)
		}
		t.AddEnumValue(ev)
	}
	return t
}

func directive(dir *ir.DirectiveDefinition) *Directive {
	d := NewDirective(dir.Name, dir.Description).SetRepeatable(dir.Repeatable)
	d.Locations = slices.Clone(dir.Locations)
	args := make([]*ir.ArgumentDefinition, 0, len(dir.Args))
	for _, a := range dir.Args {
		args = append(args, a)
	}
	slices.SortFunc(args, func(a, b *ir.ArgumentDefinition) int { return a.Index - b.Index })
	for _, a := range args {
		d.AddArgument(inputValue(a.Name, a.Description, a.Type, a.DefaultValue, a.Deprecation))
	}
	return d
}

func inputValue(name, description string, t *ir.TypeExpr, def any, dep *ir.Deprecation) *InputValue {
	v := NewInputValue(name, description, typeRef(t)).SetDefault(def)
	if dep != nil {
		v.Deprecate(dep.Reason)
	}
	return v
}

func typeRef(t *ir.TypeExpr) *TypeRef {
	switch t.Kind {
	case ir.TypeExprKindNonNull:
		return NonNullType(typeRef(t.OfType))
	case ir.TypeExprKindList:
		return ListType(typeRef(t.OfType))
	default:
		return NamedType(t.Named)
	}
}

// BuildFromSDL builds a schema from one SDL document merged behind the
// prelude. Root fields in sdl must carry @bind.
func BuildFromSDL(sdl string) (*Schema, error) {
	const name = "inline.graphql"
	if _, err := language.ParseSchema(name, sdl); err != nil {
		return nil, err
	}
	proj, err := ir.Build(context.Background(), ir.NewInMemoryDiscovery(ir.OriginSource, []ir.InMemorySource{
		{Name: name, Content: sdl},
	}))
	if err != nil {
		return nil, err
	}
	return BuildFromIR(proj)
}
