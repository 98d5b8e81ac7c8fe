package schema

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// Render prints s as SDL. Types and directives are sorted by name and the
// built-in scalars and directives are left out, so equal schemas render
// byte-identically.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	var buf bytes.Buffer
	formatter.NewFormatter(&buf, formatter.WithIndent("  ")).FormatSchemaDocument(s.document())
	return buf.String()
}

func (s *Schema) document() *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}
	if s.QueryType != "" || s.MutationType != "" {
		def := &ast.SchemaDefinition{Description: s.Description}
		if s.QueryType != "" {
			def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{Operation: ast.Query, Type: s.QueryType})
		}
		if s.MutationType != "" {
			def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{Operation: ast.Mutation, Type: s.MutationType})
		}
		doc.Schema = append(doc.Schema, def)
	}

	for _, name := range sortedKeys(s.Types) {
		if t := s.Types[name]; !isBuiltinType(t) {
			doc.Definitions = append(doc.Definitions, s.definition(t))
		}
	}
	for _, name := range sortedKeys(s.Directives) {
		d := s.Directives[name]
		if d == includeDirective || d == skipDirective {
			continue
		}
		def := &ast.DirectiveDefinition{
			Description:  d.Description,
			Name:         d.Name,
			Arguments:    s.arguments(d.Arguments),
			IsRepeatable: d.IsRepeatable,
		}
		for _, loc := range d.Locations {
			def.Locations = append(def.Locations, ast.DirectiveLocation(loc))
		}
		doc.Directives = append(doc.Directives, def)
	}
	return doc
}

func (s *Schema) definition(t *Type) *ast.Definition {
	def := &ast.Definition{Name: t.Name, Description: t.Description}
	switch t.Kind {
	case TypeKindScalar:
		def.Kind = ast.Scalar
	case TypeKindEnum:
		def.Kind = ast.Enum
		for _, v := range t.EnumValues {
			def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{
				Description: v.Description,
				Name:        v.Name,
				Directives:  deprecation(v.IsDeprecated, v.DeprecationReason),
			})
		}
	case TypeKindInputObject:
		def.Kind = ast.InputObject
		if t.OneOf {
			def.Directives = ast.DirectiveList{{Name: "oneOf"}}
		}
		for _, f := range t.InputFields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Description:  f.Description,
				Name:         f.Name,
				Type:         astType(f.Type),
				DefaultValue: s.defaultValue(f.DefaultValue, f.Type),
				Directives:   deprecation(f.IsDeprecated, f.DeprecationReason),
			})
		}
	case TypeKindObject:
		def.Kind = ast.Object
		for _, f := range t.Fields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Description: f.Description,
				Name:        f.Name,
				Arguments:   s.arguments(f.Arguments),
				Type:        astType(f.Type),
				Directives:  deprecation(f.IsDeprecated, f.DeprecationReason),
			})
		}
	}
	return def
}

func (s *Schema) arguments(in []*InputValue) ast.ArgumentDefinitionList {
	var out ast.ArgumentDefinitionList
	for _, a := range in {
		out = append(out, &ast.ArgumentDefinition{
			Description:  a.Description,
			Name:         a.Name,
			Type:         astType(a.Type),
			DefaultValue: s.defaultValue(a.DefaultValue, a.Type),
			Directives:   deprecation(a.IsDeprecated, a.DeprecationReason),
		})
	}
	return out
}

func deprecation(deprecated bool, reason string) ast.DirectiveList {
	if !deprecated {
		return nil
	}
	d := &ast.Directive{Name: "deprecated"}
	if reason != "" {
		d.Arguments = ast.ArgumentList{{Name: "reason", Value: &ast.Value{Kind: ast.StringValue, Raw: reason}}}
	}
	return ast.DirectiveList{d}
}

func astType(t *TypeRef) *ast.Type {
	switch t.Kind {
	case TypeRefKindNonNull:
		inner := astType(t.OfType)
		inner.NonNull = true
		return inner
	case TypeRefKindList:
		return ast.ListType(astType(t.OfType), nil)
	default:
		return ast.NamedType(t.Named, nil)
	}
}

func (s *Schema) defaultValue(v any, t *TypeRef) *ast.Value {
	if v == nil {
		return nil
	}
	return s.literal(v, t)
}

// literal converts a Go value to a syntax value of type t, which may be nil
// when unknown. Strings of enum type print bare.
func (s *Schema) literal(v any, t *TypeRef) *ast.Value {
	if v == nil {
		return &ast.Value{Kind: ast.NullValue, Raw: "null"}
	}
	for t != nil && t.Kind == TypeRefKindNonNull {
		t = t.OfType
	}
	switch v := v.(type) {
	case string:
		if t != nil && t.Kind == TypeRefKindNamed && s.isEnum(t.Named) {
			return &ast.Value{Kind: ast.EnumValue, Raw: v}
		}
		return &ast.Value{Kind: ast.StringValue, Raw: v}
	case bool:
		return &ast.Value{Kind: ast.BooleanValue, Raw: strconv.FormatBool(v)}
	case int, int32, int64:
		return &ast.Value{Kind: ast.IntValue, Raw: fmt.Sprint(v)}
	case float32:
		return &ast.Value{Kind: ast.FloatValue, Raw: strconv.FormatFloat(float64(v), 'g', -1, 32)}
	case float64:
		return &ast.Value{Kind: ast.FloatValue, Raw: strconv.FormatFloat(v, 'g', -1, 64)}
	case []any:
		var elem *TypeRef
		if t != nil && t.Kind == TypeRefKindList {
			elem = t.OfType
		}
		out := &ast.Value{Kind: ast.ListValue}
		for _, item := range v {
			out.Children = append(out.Children, &ast.ChildValue{Value: s.literal(item, elem)})
		}
		return out
	case map[string]any:
		var input *Type
		if t != nil && t.Kind == TypeRefKindNamed {
			input = s.Types[t.Named]
		}
		out := &ast.Value{Kind: ast.ObjectValue}
		for _, k := range sortedKeys(v) {
			var ft *TypeRef
			if input != nil {
				for _, f := range input.InputFields {
					if f.Name == k {
						ft = f.Type
					}
				}
			}
			out.Children = append(out.Children, &ast.ChildValue{Name: k, Value: s.literal(v[k], ft)})
		}
		return out
	default:
		return &ast.Value{Kind: ast.EnumValue, Raw: fmt.Sprint(v)}
	}
}

func (s *Schema) isEnum(name string) bool {
	t := s.Types[name]
	return t != nil && t.Kind == TypeKindEnum
}

func isBuiltinType(t *Type) bool {
	return t == stringType || t == intType || t == floatType || t == booleanType || t == idType
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// DefaultLiteral renders the default value of v as a GraphQL literal, or ""
// when v has none.
func (s *Schema) DefaultLiteral(v *InputValue) string {
	if v.DefaultValue == nil {
		return ""
	}
	return s.literal(v.DefaultValue, v.Type).String()
}
