// Package introspection answers the __schema and __type meta fields on top
// of another runtime.
package introspection

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hanpama/contractgraph/internal/executor"
	"github.com/hanpama/contractgraph/internal/schema"
)

// Wrap returns a runtime serving introspection over sch together with the
// extended schema it must be executed against. Every other field goes to base.
//
// The meta types are visible to __type and __schema.types, but the query
// type is reported without its __schema and __type fields.
func Wrap(base executor.Runtime, sch *schema.Schema) (executor.Runtime, *schema.Schema) {
	ext := extend(sch)
	view := *ext
	view.Types = maps.Clone(ext.Types)
	if q := sch.Root("query"); q != nil {
		view.Types[q.Name] = q
	}
	return &runtime{base: base, schema: &view}, ext
}

type runtime struct {
	base   executor.Runtime
	schema *schema.Schema
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *schema.Schema:
		return resolve(r, schemaFields, "__Schema", src, field, args)
	case *schema.Type:
		return resolve(r, namedTypeFields, "__Type", src, field, args)
	case *schema.TypeRef:
		return resolve(r, wrapperFields, "__Type", src, field, args)
	case *schema.Field:
		return resolve(r, fieldFields, "__Field", src, field, args)
	case *schema.InputValue:
		return resolve(r, inputValueFields, "__InputValue", src, field, args)
	case *schema.EnumValue:
		return resolve(r, enumValueFields, "__EnumValue", src, field, args)
	case *schema.Directive:
		return resolve(r, directiveFields, "__Directive", src, field, args)
	}
	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			return typeOrNil(r.schema.Types[name]), nil
		}
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	switch typeName {
	case "__TypeKind", "__DirectiveLocation":
		return fmt.Sprint(value), nil
	}
	return r.base.SerializeLeafValue(ctx, typeName, value)
}

// fieldTable maps the fields of one meta type to their values over T.
type fieldTable[T any] map[string]func(r *runtime, v T, args map[string]any) any

func resolve[T any](r *runtime, table fieldTable[T], typeName string, v T, field string, args map[string]any) (any, error) {
	fn, ok := table[field]
	if !ok {
		return nil, fmt.Errorf("unknown introspection field %s.%s", typeName, field)
	}
	return fn(r, v, args), nil
}

var schemaFields = fieldTable[*schema.Schema]{
	"description": func(_ *runtime, s *schema.Schema, _ map[string]any) any { return optional(s.Description) },
	"types": func(_ *runtime, s *schema.Schema, _ map[string]any) any {
		return sortedByName(s.Types, func(t *schema.Type) string { return t.Name })
	},
	"queryType":        func(_ *runtime, s *schema.Schema, _ map[string]any) any { return typeOrNil(s.Root("query")) },
	"mutationType":     func(_ *runtime, s *schema.Schema, _ map[string]any) any { return typeOrNil(s.Root("mutation")) },
	"subscriptionType": func(*runtime, *schema.Schema, map[string]any) any { return nil },
	"directives": func(_ *runtime, s *schema.Schema, _ map[string]any) any {
		return sortedByName(s.Directives, func(d *schema.Directive) string { return d.Name })
	},
}

// namedTypeFields answers __Type for named types. Members that do not apply
// to a kind are null.
var namedTypeFields = fieldTable[*schema.Type]{
	"kind":           func(_ *runtime, t *schema.Type, _ map[string]any) any { return string(t.Kind) },
	"name":           func(_ *runtime, t *schema.Type, _ map[string]any) any { return t.Name },
	"description":    func(_ *runtime, t *schema.Type, _ map[string]any) any { return optional(t.Description) },
	"specifiedByURL": func(*runtime, *schema.Type, map[string]any) any { return nil },
	"ofType":         func(*runtime, *schema.Type, map[string]any) any { return nil },
	"possibleTypes":  func(*runtime, *schema.Type, map[string]any) any { return nil },
	"fields": func(_ *runtime, t *schema.Type, args map[string]any) any {
		if t.Kind != schema.TypeKindObject {
			return nil
		}
		return visible(t.Fields, args, func(f *schema.Field) bool { return f.IsDeprecated })
	},
	"interfaces": func(_ *runtime, t *schema.Type, _ map[string]any) any {
		if t.Kind != schema.TypeKindObject {
			return nil
		}
		return []any{}
	},
	"enumValues": func(_ *runtime, t *schema.Type, args map[string]any) any {
		if t.Kind != schema.TypeKindEnum {
			return nil
		}
		return visible(t.EnumValues, args, func(v *schema.EnumValue) bool { return v.IsDeprecated })
	},
	"inputFields": func(_ *runtime, t *schema.Type, args map[string]any) any {
		if t.Kind != schema.TypeKindInputObject {
			return nil
		}
		return visible(t.InputFields, args, inputDeprecated)
	},
	"isOneOf": func(_ *runtime, t *schema.Type, _ map[string]any) any {
		if t.Kind != schema.TypeKindInputObject {
			return nil
		}
		return t.OneOf
	},
}

// wrapperFields answers __Type for LIST and NON_NULL.
var wrapperFields = func() fieldTable[*schema.TypeRef] {
	table := fieldTable[*schema.TypeRef]{
		"kind":   func(_ *runtime, t *schema.TypeRef, _ map[string]any) any { return string(t.Kind) },
		"ofType": func(r *runtime, t *schema.TypeRef, _ map[string]any) any { return r.ref(t.OfType) },
	}
	for name := range namedTypeFields {
		if _, ok := table[name]; !ok {
			table[name] = func(*runtime, *schema.TypeRef, map[string]any) any { return nil }
		}
	}
	return table
}()

var fieldFields = fieldTable[*schema.Field]{
	"name":        func(_ *runtime, f *schema.Field, _ map[string]any) any { return f.Name },
	"description": func(_ *runtime, f *schema.Field, _ map[string]any) any { return optional(f.Description) },
	"args": func(_ *runtime, f *schema.Field, args map[string]any) any {
		return visible(f.Arguments, args, inputDeprecated)
	},
	"type":         func(r *runtime, f *schema.Field, _ map[string]any) any { return r.ref(f.Type) },
	"isDeprecated": func(_ *runtime, f *schema.Field, _ map[string]any) any { return f.IsDeprecated },
	"deprecationReason": func(_ *runtime, f *schema.Field, _ map[string]any) any {
		return deprecation(f.IsDeprecated, f.DeprecationReason)
	},
}

var inputValueFields = fieldTable[*schema.InputValue]{
	"name":         func(_ *runtime, v *schema.InputValue, _ map[string]any) any { return v.Name },
	"description":  func(_ *runtime, v *schema.InputValue, _ map[string]any) any { return optional(v.Description) },
	"type":         func(r *runtime, v *schema.InputValue, _ map[string]any) any { return r.ref(v.Type) },
	"defaultValue": func(r *runtime, v *schema.InputValue, _ map[string]any) any { return optional(r.schema.DefaultLiteral(v)) },
	"isDeprecated": func(_ *runtime, v *schema.InputValue, _ map[string]any) any { return v.IsDeprecated },
	"deprecationReason": func(_ *runtime, v *schema.InputValue, _ map[string]any) any {
		return deprecation(v.IsDeprecated, v.DeprecationReason)
	},
}

var enumValueFields = fieldTable[*schema.EnumValue]{
	"name":         func(_ *runtime, v *schema.EnumValue, _ map[string]any) any { return v.Name },
	"description":  func(_ *runtime, v *schema.EnumValue, _ map[string]any) any { return optional(v.Description) },
	"isDeprecated": func(_ *runtime, v *schema.EnumValue, _ map[string]any) any { return v.IsDeprecated },
	"deprecationReason": func(_ *runtime, v *schema.EnumValue, _ map[string]any) any {
		return deprecation(v.IsDeprecated, v.DeprecationReason)
	},
}

var directiveFields = fieldTable[*schema.Directive]{
	"name":         func(_ *runtime, d *schema.Directive, _ map[string]any) any { return d.Name },
	"description":  func(_ *runtime, d *schema.Directive, _ map[string]any) any { return optional(d.Description) },
	"isRepeatable": func(_ *runtime, d *schema.Directive, _ map[string]any) any { return d.IsRepeatable },
	"locations":    func(_ *runtime, d *schema.Directive, _ map[string]any) any { return slices.Clone(d.Locations) },
	"args": func(_ *runtime, d *schema.Directive, args map[string]any) any {
		return visible(d.Arguments, args, inputDeprecated)
	},
}

// ref resolves named references to their type so that only wrappers stay
// TypeRef values.
func (r *runtime) ref(t *schema.TypeRef) any {
	if t == nil {
		return nil
	}
	if t.Kind == schema.TypeRefKindNamed {
		return typeOrNil(r.schema.Types[t.Named])
	}
	return t
}

// typeOrNil keeps a missing type an untyped nil.
func typeOrNil(t *schema.Type) any {
	if t == nil {
		return nil
	}
	return t
}

// visible drops deprecated members unless includeDeprecated is set. The
// result is never nil so empty lists serialize as [].
func visible[T any](in []T, args map[string]any, deprecated func(T) bool) []T {
	all, _ := args["includeDeprecated"].(bool)
	out := make([]T, 0, len(in))
	for _, v := range in {
		if all || !deprecated(v) {
			out = append(out, v)
		}
	}
	return out
}

func inputDeprecated(v *schema.InputValue) bool { return v.IsDeprecated }

func sortedByName[T any](m map[string]T, name func(T) string) []T {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b T) int { return strings.Compare(name(a), name(b)) })
	return out
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deprecation(deprecated bool, reason string) any {
	if !deprecated {
		return nil
	}
	return reason
}
