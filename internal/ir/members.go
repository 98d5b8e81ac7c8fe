package ir

import (
	"strings"

	language "github.com/hanpama/contractgraph/internal/language"
)

// populateMembers fills fields, input values and enum values from
// definitions and extensions alike, in source order.
func (b *builder) populateMembers() error {
	for _, sd := range b.docs {
		for _, node := range sd.doc.Definitions {
			b.addMembers(sd.source, node)
		}
	}
	for _, sd := range b.docs {
		for _, node := range sd.doc.Extensions {
			b.addMembers(sd.source, node)
		}
	}
	return b.checkpoint()
}

func (b *builder) addMembers(src *Source, node *language.Definition) {
	def := b.Definitions[node.Name]
	if def == nil {
		return
	}
	switch {
	case node.Kind == language.Object && def.Object != nil:
		b.addFields(src, def.Object, node)
	case node.Kind == language.InputObject && def.Input != nil:
		for _, f := range node.Fields {
			if _, dup := def.Input.InputValues[f.Name]; dup {
				b.violate(f.Position, "Duplicate input value %q found in input %q", f.Name, node.Name)
				continue
			}
			if iv := b.inputValue(len(def.Input.InputValues), f); iv != nil {
				def.Input.InputValues[f.Name] = iv
			}
		}
	case node.Kind == language.Enum && def.Enum != nil:
		for _, v := range node.EnumValues {
			if _, dup := def.Enum.Values[v.Name]; dup {
				b.violate(v.Position, "Duplicate enum value %q found in enum %q", v.Name, node.Name)
				continue
			}
			def.Enum.Values[v.Name] = &EnumValueDefinition{Name: v.Name, Description: v.Description, Index: len(def.Enum.Values)}
		}
	}
}

// addFields adds node's fields to obj and records root fields against the
// source that declared them.
func (b *builder) addFields(src *Source, obj *ObjectDefinition, node *language.Definition) {
	root := b.isRootObject(obj.Name)
	for _, f := range node.Fields {
		if strings.HasPrefix(f.Name, "__") {
			b.violate(f.Position, "Field name %q cannot start with '__' (reserved prefix)", f.Name)
			continue
		}
		if _, dup := obj.Fields[f.Name]; dup {
			b.violate(f.Position, "Duplicate field %q found in object %q", f.Name, node.Name)
			continue
		}
		field := &FieldDefinition{
			Name:        f.Name,
			Description: f.Description,
			Index:       len(obj.Fields),
			Type:        b.typeExpr(f.Type, false),
			Args:        make(map[string]*ArgumentDefinition, len(f.Arguments)),
		}
		for _, a := range f.Arguments {
			if strings.HasPrefix(a.Name, "__") {
				b.violate(a.Position, "Argument name %q cannot start with '__' (reserved prefix)", a.Name)
				continue
			}
			field.Args[a.Name] = b.argument(len(field.Args), a)
		}
		obj.Fields[f.Name] = field
		if root && f.Name != placeholderField {
			src.RootFields = append(src.RootFields, obj.Name+"."+f.Name)
		}
	}
}

func (b *builder) argument(index int, node *language.ArgumentDefinition) *ArgumentDefinition {
	arg := &ArgumentDefinition{
		Name:        node.Name,
		Description: node.Description,
		Index:       index,
		Type:        b.typeExpr(node.Type, true),
	}
	arg.DefaultValue, _ = b.defaultValue(node.DefaultValue)
	return arg
}

// inputValue returns nil when the default value does not evaluate.
func (b *builder) inputValue(index int, node *language.FieldDefinition) *InputValueDefinition {
	v, ok := b.defaultValue(node.DefaultValue)
	if !ok {
		return nil
	}
	return &InputValueDefinition{
		Name:         node.Name,
		Description:  node.Description,
		Index:        index,
		Type:         b.typeExpr(node.Type, true),
		DefaultValue: v,
	}
}

func (b *builder) defaultValue(node *language.Value) (any, bool) {
	if node == nil {
		return nil, true
	}
	v, err := node.Value(nil)
	if err != nil {
		b.violate(node.Position, "%s", err.Error())
		return v, false
	}
	return v, true
}

// typeExpr resolves a type reference. Named types must exist and suit the
// position: objects are output only and input objects input only.
func (b *builder) typeExpr(node *language.Type, input bool) *TypeExpr {
	if node.NonNull {
		inner := *node
		inner.NonNull = false
		return &TypeExpr{Kind: TypeExprKindNonNull, OfType: b.typeExpr(&inner, input)}
	}
	if node.Elem != nil {
		return &TypeExpr{Kind: TypeExprKindList, OfType: b.typeExpr(node.Elem, input)}
	}

	def := b.Definitions[node.NamedType]
	switch {
	case def == nil:
		b.violate(node.Position, "Type %q not found in definitions", node.NamedType)
		return nil
	case input && def.Object != nil:
		b.violate(node.Position, "Type %q is not an input type", node.NamedType)
		return nil
	case !input && def.Input != nil:
		b.violate(node.Position, "Type %q is not an output type", node.NamedType)
		return nil
	}
	return &TypeExpr{Kind: TypeExprKindNamed, Named: node.NamedType}
}
