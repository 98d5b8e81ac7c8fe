package introspection

import "github.com/hanpama/contractgraph/internal/schema"

// extend copies sch and adds the introspection types and the __schema and
// __type root fields. sch itself is left untouched.
func extend(sch *schema.Schema) *schema.Schema {
	out := &schema.Schema{
		QueryType:    sch.QueryType,
		MutationType: sch.MutationType,
		Types:        make(map[string]*schema.Type, len(sch.Types)+8),
		Directives:   sch.Directives,
		Description:  sch.Description,
	}
	for name, t := range sch.Types {
		out.Types[name] = t
	}
	for _, t := range metaTypes() {
		out.Types[t.Name] = t
	}

	if q := sch.Root("query"); q != nil {
		cp := *q
		cp.Fields = append(append([]*schema.Field(nil), q.Fields...),
			&schema.Field{
				Name:        "__schema",
				Description: "Access the current type schema of this server.",
				Type:        nonNull("__Schema"),
			},
			&schema.Field{
				Name:        "__type",
				Description: "Request the type information of a single type.",
				Arguments:   []*schema.InputValue{{Name: "name", Type: nonNull("String")}},
				Type:        schema.NamedType("__Type"),
			},
		)
		out.Types[cp.Name] = &cp
	}
	return out
}

func named(name string) *schema.TypeRef   { return schema.NamedType(name) }
func nonNull(name string) *schema.TypeRef { return schema.NonNullType(named(name)) }

// listOf is [name!].
func listOf(name string) *schema.TypeRef { return schema.ListType(nonNull(name)) }

func field(name string, typ *schema.TypeRef) *schema.Field {
	return &schema.Field{Name: name, Type: typ}
}

// deprecatedFilter is a field taking includeDeprecated.
func deprecatedFilter(name string, typ *schema.TypeRef) *schema.Field {
	f := field(name, typ)
	f.Arguments = []*schema.InputValue{{Name: "includeDeprecated", Type: named("Boolean"), DefaultValue: false}}
	return f
}

func object(name, description string, fields ...*schema.Field) *schema.Type {
	return &schema.Type{Name: name, Kind: schema.TypeKindObject, Description: description, Fields: fields}
}

func enum(name string, values ...string) *schema.Type {
	t := &schema.Type{Name: name, Kind: schema.TypeKindEnum}
	for _, v := range values {
		t.EnumValues = append(t.EnumValues, &schema.EnumValue{Name: v})
	}
	return t
}

func metaTypes() []*schema.Type {
	return []*schema.Type{
		object("__Schema", "A GraphQL Schema defines the capabilities of a GraphQL server.",
			field("description", named("String")),
			field("types", schema.NonNullType(listOf("__Type"))),
			field("queryType", nonNull("__Type")),
			field("mutationType", named("__Type")),
			field("subscriptionType", named("__Type")),
			field("directives", schema.NonNullType(listOf("__Directive"))),
		),
		object("__Type", "The fundamental unit of any GraphQL Schema is the type.",
			field("kind", nonNull("__TypeKind")),
			field("name", named("String")),
			field("description", named("String")),
			field("specifiedByURL", named("String")),
			deprecatedFilter("fields", listOf("__Field")),
			field("interfaces", listOf("__Type")),
			field("possibleTypes", listOf("__Type")),
			deprecatedFilter("enumValues", listOf("__EnumValue")),
			deprecatedFilter("inputFields", listOf("__InputValue")),
			field("ofType", named("__Type")),
			field("isOneOf", named("Boolean")),
		),
		object("__Field", "",
			field("name", nonNull("String")),
			field("description", named("String")),
			deprecatedFilter("args", schema.NonNullType(listOf("__InputValue"))),
			field("type", nonNull("__Type")),
			field("isDeprecated", nonNull("Boolean")),
			field("deprecationReason", named("String")),
		),
		object("__InputValue", "",
			field("name", nonNull("String")),
			field("description", named("String")),
			field("type", nonNull("__Type")),
			field("defaultValue", named("String")),
			field("isDeprecated", nonNull("Boolean")),
			field("deprecationReason", named("String")),
		),
		object("__EnumValue", "",
			field("name", nonNull("String")),
			field("description", named("String")),
			field("isDeprecated", nonNull("Boolean")),
			field("deprecationReason", named("String")),
		),
		object("__Directive", "",
			field("name", nonNull("String")),
			field("description", named("String")),
			field("isRepeatable", nonNull("Boolean")),
			field("locations", schema.NonNullType(listOf("__DirectiveLocation"))),
			deprecatedFilter("args", schema.NonNullType(listOf("__InputValue"))),
		),
		enum("__TypeKind", "SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL"),
		enum("__DirectiveLocation",
			"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
			"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
			"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
			"INPUT_FIELD_DEFINITION"),
	}
}
