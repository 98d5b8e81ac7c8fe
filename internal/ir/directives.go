package ir

import (
	language "github.com/hanpama/contractgraph/internal/language"
)

// applyDirectives attaches @deprecated, @auth, @rootOnly, @bind and @link to
// the members they annotate. Directives on type definitions and unknown
// directives are violations. Once every use is valid, each root field must
// be bound to a service method.
func (b *builder) applyDirectives() error {
	for _, sd := range b.docs {
		for _, list := range []language.DefinitionList{sd.doc.Definitions, sd.doc.Extensions} {
			for _, node := range list {
				def := b.Definitions[node.Name]
				if def == nil {
					continue
				}
				for _, dir := range node.Directives {
					b.violate(dir.Position, "Unknown directive @%s on %s type %s", dir.Name, node.Kind, node.Name)
				}
				switch {
				case node.Kind == language.Object && def.Object != nil:
					b.fieldDirectives(def.Object, node)
				case node.Kind == language.Enum && def.Enum != nil:
					b.enumValueDirectives(def.Enum, node)
				case node.Kind == language.InputObject:
					for _, f := range node.Fields {
						for _, dir := range f.Directives {
							if dir.Name != "deprecated" {
								b.unknownDirective(dir, f.Name, node.Name)
							}
						}
					}
				}
			}
		}
	}
	if err := b.checkpoint(); err != nil {
		return err
	}

	for _, name := range []string{b.Schema.QueryType, b.Schema.MutationType} {
		def := b.Definitions[name]
		if def == nil || def.Object == nil {
			continue
		}
		for _, f := range def.Object.OrderedFields() {
			if f.Name != placeholderField && f.Binding == nil {
				b.violate(nil, "Root field %s.%s has no @bind directive", name, f.Name)
			}
		}
	}
	return b.checkpoint()
}

func (b *builder) unknownDirective(dir *language.Directive, member, typeName string) {
	b.violate(dir.Position, "Unknown directive @%s on field %s of type %s", dir.Name, member, typeName)
}

func (b *builder) fieldDirectives(obj *ObjectDefinition, node *language.Definition) {
	root := b.isRootObject(obj.Name)
	for _, f := range node.Fields {
		field := obj.Fields[f.Name]
		if field == nil {
			continue
		}
		for _, dir := range f.Directives {
			switch dir.Name {
			case "deprecated":
				field.Deprecation = b.deprecation(dir)
			case "auth":
				field.policy().Roles = append(field.policy().Roles, b.roles(dir)...)
			case "rootOnly":
				for _, arg := range dir.Arguments {
					b.violate(arg.Position, "Directive @%s does not accept arguments", dir.Name)
				}
				field.policy().RootOnly = true
			case "bind":
				if !root {
					b.violate(dir.Position, "@bind on field %s of type %s: only Query and Mutation fields can be bound", f.Name, obj.Name)
					continue
				}
				field.Binding = b.binding(dir)
			case "link":
				if root {
					b.violate(dir.Position, "@link on root field %s of type %s is not allowed", f.Name, obj.Name)
					continue
				}
				field.Link = b.link(dir)
			default:
				b.unknownDirective(dir, f.Name, node.Name)
			}
		}
	}
}

func (f *FieldDefinition) policy() *Policy {
	if f.Policy == nil {
		f.Policy = &Policy{}
	}
	return f.Policy
}

func (b *builder) enumValueDirectives(enum *EnumDefinition, node *language.Definition) {
	for _, v := range node.EnumValues {
		for _, dir := range v.Directives {
			if dir.Name != "deprecated" {
				b.unknownDirective(dir, v.Name, node.Name)
				continue
			}
			if value := enum.Values[v.Name]; value != nil {
				value.Deprecation = b.deprecation(dir)
			}
		}
	}
}

// arguments calls set for each argument of dir named in set and records a
// violation for any other.
func (b *builder) arguments(dir *language.Directive, set map[string]func(*language.Value)) {
	for _, arg := range dir.Arguments {
		fn, ok := set[arg.Name]
		if !ok {
			b.violate(arg.Position, "Unknown argument '%s' in @%s directive", arg.Name, dir.Name)
			continue
		}
		fn(arg.Value)
	}
}

func (b *builder) roles(dir *language.Directive) []string {
	var roles []string
	b.arguments(dir, map[string]func(*language.Value){
		"roles": func(v *language.Value) { roles = append(roles, b.stringList(v)...) },
	})
	return roles
}

func (b *builder) binding(dir *language.Directive) *Binding {
	bind := &Binding{}
	b.arguments(dir, map[string]func(*language.Value){
		"service": func(v *language.Value) { bind.Service = b.stringValue(v) },
		"method":  func(v *language.Value) { bind.Method = b.stringValue(v) },
		"args":    func(v *language.Value) { bind.Args = b.stringValue(v) },
	})
	if bind.Service == "" || bind.Method == "" {
		b.violate(dir.Position, "@bind requires non-empty 'service' and 'method' arguments")
		return nil
	}
	return bind
}

func (b *builder) link(dir *language.Directive) *Link {
	link := &Link{Field: "id"}
	b.arguments(dir, map[string]func(*language.Value){
		"entity": func(v *language.Value) { link.Entity = b.stringValue(v) },
		"field":  func(v *language.Value) { link.Field = b.stringValue(v) },
	})
	if link.Entity == "" {
		b.violate(dir.Position, "@link requires a non-empty 'entity' argument")
		return nil
	}
	return link
}

func (b *builder) deprecation(dir *language.Directive) *Deprecation {
	d := &Deprecation{Reason: "No longer supported"}
	b.arguments(dir, map[string]func(*language.Value){
		"reason": func(v *language.Value) { d.Reason = b.stringValue(v) },
	})
	return d
}
