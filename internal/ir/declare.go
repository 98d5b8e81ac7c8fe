package ir

import (
	language "github.com/hanpama/contractgraph/internal/language"
)

// declareTypes registers every type definition by name, then checks that
// each extension targets a type of the same kind. Members are filled in by
// populateMembers once all names are known.
func (b *builder) declareTypes() error {
	for _, sd := range b.docs {
		for _, node := range sd.doc.Definitions {
			if _, taken := b.Definitions[node.Name]; taken {
				b.violate(node.Position, "Definition %q already exists", node.Name)
				continue
			}
			def := &Definition{}
			switch node.Kind {
			case language.Object:
				if len(node.Fields) == 0 {
					b.violate(node.Position, "Object type %q must have at least one field", node.Name)
				}
				def.Object = &ObjectDefinition{Name: node.Name, Description: node.Description,
					Fields: make(map[string]*FieldDefinition, len(node.Fields))}
			case language.InputObject:
				def.Input = &InputDefinition{Name: node.Name, Description: node.Description,
					InputValues: make(map[string]*InputValueDefinition, len(node.Fields))}
			case language.Enum:
				def.Enum = &EnumDefinition{Name: node.Name, Description: node.Description,
					Values: make(map[string]*EnumValueDefinition, len(node.EnumValues))}
			case language.Scalar:
				def.Scalar = &ScalarDefinition{Name: node.Name, Description: node.Description}
			default:
				b.violate(node.Position, "%s type %q is not supported", node.Kind, node.Name)
				continue
			}
			b.Definitions[node.Name] = def
			sd.source.Definitions = append(sd.source.Definitions, node.Name)
		}
	}

	for _, sd := range b.docs {
		for _, node := range sd.doc.Extensions {
			def := b.Definitions[node.Name]
			if def == nil {
				b.violate(node.Position, "definition %q not found for extension", node.Name)
				continue
			}
			if want := def.kind(); want != node.Kind {
				if !supportedKind(node.Kind) {
					b.violate(node.Position, "%s type %q is not supported", node.Kind, node.Name)
					continue
				}
				b.violate(node.Position, "Unexpected type for extension %s, expected %s", node.Name, want)
			}
		}
	}
	return b.checkpoint()
}

func supportedKind(k language.DefinitionKind) bool {
	switch k {
	case language.Object, language.InputObject, language.Enum, language.Scalar:
		return true
	}
	return false
}

func (d *Definition) kind() language.DefinitionKind {
	switch {
	case d.Object != nil:
		return language.Object
	case d.Input != nil:
		return language.InputObject
	case d.Enum != nil:
		return language.Enum
	default:
		return language.Scalar
	}
}

// declareSchema reads the single schema definition and checks its root
// types. Subscriptions are rejected.
func (b *builder) declareSchema() error {
	for _, sd := range b.docs {
		for _, node := range sd.doc.Schema {
			if b.Schema != nil {
				b.violate(node.Position, "Schema is already defined")
				continue
			}
			b.Schema = &Schema{}
			for _, op := range node.OperationTypes {
				switch op.Operation {
				case language.Query:
					b.Schema.QueryType = op.Type
				case language.Mutation:
					b.Schema.MutationType = op.Type
				default:
					b.violate(op.Position, "Subscriptions are not supported")
				}
			}
		}
	}
	if b.Schema == nil {
		b.violate(nil, "Schema definition is required")
		return b.checkpoint()
	}

	for _, root := range [][2]string{{"Query", b.Schema.QueryType}, {"Mutation", b.Schema.MutationType}} {
		op, name := root[0], root[1]
		if name == "" {
			continue
		}
		switch def := b.Definitions[name]; {
		case def == nil:
			b.violate(nil, "%s type %q not found in definitions", op, name)
		case def.Object == nil:
			b.violate(nil, "%s type %q must be an Object type", op, name)
		}
	}
	return b.checkpoint()
}

func (b *builder) isRootObject(name string) bool {
	return b.Schema != nil && name != "" && (name == b.Schema.QueryType || name == b.Schema.MutationType)
}

// declareDirectives registers directive definitions. Only the prelude
// declares directives in practice; any redefinition is a violation.
func (b *builder) declareDirectives() error {
	for _, sd := range b.docs {
		for _, node := range sd.doc.Directives {
			if _, taken := b.Directives[node.Name]; taken {
				b.violate(node.Position, "Directive %s is already defined", node.Name)
				continue
			}
			def := &DirectiveDefinition{
				Name:        node.Name,
				Description: node.Description,
				Args:        make(map[string]*ArgumentDefinition, len(node.Arguments)),
				Repeatable:  node.IsRepeatable,
				Locations:   make([]string, 0, len(node.Locations)),
			}
			for _, loc := range node.Locations {
				def.Locations = append(def.Locations, string(loc))
			}
			for _, arg := range node.Arguments {
				def.Args[arg.Name] = b.argument(len(def.Args), arg)
			}
			b.Directives[node.Name] = def
		}
	}
	return b.checkpoint()
}

func (b *builder) stringValue(v *language.Value) string {
	if v.Kind != language.StringValue && v.Kind != language.BlockValue {
		b.violate(v.Position, "Expected a string value")
		return ""
	}
	return v.Raw
}

// stringList accepts a single string where a list is expected.
func (b *builder) stringList(v *language.Value) []string {
	switch v.Kind {
	case language.StringValue, language.BlockValue:
		return []string{v.Raw}
	case language.ListValue:
		out := make([]string, 0, len(v.Children))
		for _, c := range v.Children {
			out = append(out, b.stringValue(c.Value))
		}
		return out
	}
	b.violate(v.Position, "Expected a list value")
	return nil
}
