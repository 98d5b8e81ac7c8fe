package ir

// PreludeSDL is loaded ahead of every discovered source. It declares the
// operation roots, the shared scalars and the directives resolver files use.
const PreludeSDL = `schema {
  query: Query
  mutation: Mutation
}

type Query {
  _empty: Boolean
}

type Mutation {
  _empty: Boolean
}

"Arbitrary JSON value."
scalar JSON

"Arbitrary precision integer, serialized as a decimal string."
scalar BigInt

"Binary data, serialized as base64."
scalar Bytes

type PaginationMeta {
  page: Int!
  limit: Int!
  total: Int!
  pages: Int!
}

"Requires a valid token holding one of the roles. Without roles any valid token passes."
directive @auth(roles: [String!]) on FIELD_DEFINITION

"Restricts the field to root tokens."
directive @rootOnly on FIELD_DEFINITION

"Binds a root field to a service method."
directive @bind(service: String!, method: String!, args: String) on FIELD_DEFINITION

"Resolves the field by loading the linked entity with the field's key value."
directive @link(entity: String!, field: String) on FIELD_DEFINITION
`

// placeholderField is the prelude field keeping root types non-empty.
const placeholderField = "_empty"

var builtinScalars = []*ScalarDefinition{
	{Name: "String", Description: "The String scalar type represents textual data, represented as UTF-8 character sequences."},
	{Name: "Int", Description: "The Int scalar type represents non-fractional signed whole numeric values."},
	{Name: "Float", Description: "The Float scalar type represents signed double-precision fractional values."},
	{Name: "Boolean", Description: "The Boolean scalar type represents true or false."},
	{Name: "ID", Description: "The ID scalar type represents a unique identifier, often used to refetch an object or as a key for caching."},
}

// IsBuiltinScalar reports whether name is one of the GraphQL built-in scalars.
func IsBuiltinScalar(name string) bool {
	for _, s := range builtinScalars {
		if s.Name == name {
			return true
		}
	}
	return false
}

// IsServerDirective reports whether name is a prelude directive consumed while
// building the project. Those never reach the executable schema.
func IsServerDirective(name string) bool {
	switch name {
	case "auth", "rootOnly", "bind", "link":
		return true
	}
	return false
}
