package introspection_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/executor"
	"github.com/hanpama/contractgraph/internal/introspection"
	"github.com/hanpama/contractgraph/internal/language"
	"github.com/hanpama/contractgraph/internal/schema"
)

const sdl = `
enum Status {
  ACTIVE
  RETIRED @deprecated(reason: "gone")
}

type Product {
  id: ID!
  status: Status
  tags: [String!]!
}

input ProductFindArgs {
  page: Int = 1
}

extend type Query {
  productFind(args: ProductFindArgs): [Product!]! @bind(service: "ProductService", method: "find")
}
`

func execute(t *testing.T, query string) map[string]any {
	t.Helper()
	sch, err := schema.BuildFromSDL(sdl)
	require.NoError(t, err)

	rt, extended := introspection.Wrap(executor.NewMockRuntime(nil), sch)
	require.Nil(t, sch.Types["__Schema"])

	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	res := executor.NewExecutor(rt, extended).ExecuteRequest(context.Background(), doc, "", nil, nil)
	require.Empty(t, res.Errors)
	return res.Data.(map[string]any)
}

func TestSchemaRoots(t *testing.T) {
	data := execute(t, `{ __schema { queryType { name } mutationType { name } subscriptionType { name } } }`)
	require.Equal(t, map[string]any{
		"__schema": map[string]any{
			"queryType":        map[string]any{"name": "Query"},
			"mutationType":     map[string]any{"name": "Mutation"},
			"subscriptionType": nil,
		},
	}, data)
}

func TestTypeWrappers(t *testing.T) {
	data := execute(t, `{ __type(name: "Product") { kind fields { name type { kind name ofType { kind ofType { kind name } } } } } }`)
	product := data["__type"].(map[string]any)
	require.Equal(t, "OBJECT", product["kind"])

	fields := product["fields"].([]any)
	require.Len(t, fields, 3)
	require.Equal(t, map[string]any{
		"name": "tags",
		"type": map[string]any{
			"kind": "NON_NULL",
			"name": nil,
			"ofType": map[string]any{
				"kind":   "LIST",
				"ofType": map[string]any{"kind": "NON_NULL", "name": nil},
			},
		},
	}, fields[2])
}

func TestEnumValuesAndDefaults(t *testing.T) {
	data := execute(t, `{
  status: __type(name: "Status") { enumValues { name } all: enumValues(includeDeprecated: true) { name deprecationReason } }
  args: __type(name: "ProductFindArgs") { inputFields { name defaultValue } }
  missing: __type(name: "Nope") { name }
}`)
	require.Equal(t, []any{map[string]any{"name": "ACTIVE"}}, data["status"].(map[string]any)["enumValues"])
	require.Equal(t, []any{
		map[string]any{"name": "ACTIVE", "deprecationReason": nil},
		map[string]any{"name": "RETIRED", "deprecationReason": "gone"},
	}, data["status"].(map[string]any)["all"])
	require.Equal(t, []any{map[string]any{"name": "page", "defaultValue": "1"}},
		data["args"].(map[string]any)["inputFields"])
	require.Nil(t, data["missing"])
}

func TestMetaTypesAreIntrospectable(t *testing.T) {
	data := execute(t, `{
  meta: __type(name: "__Schema") { kind }
  query: __type(name: "Query") { fields { name } }
}`)
	require.Equal(t, map[string]any{"kind": "OBJECT"}, data["meta"])
	for _, f := range data["query"].(map[string]any)["fields"].([]any) {
		require.NotContains(t, f.(map[string]any)["name"], "__")
	}
}
