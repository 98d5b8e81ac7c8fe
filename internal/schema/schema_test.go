package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/language"
)

const catalogSDL = `
"A sellable item."
type Product {
  id: ID!
  name: String!
  status: Status
  category: ID @link(entity: "Category")
}

type Category {
  id: ID!
}

enum Status {
  DRAFT
  LIVE @deprecated(reason: "use PUBLISHED")
  PUBLISHED
}

input ProductFindArgs {
  page: Int = 1
  limit: Int = 20
  filter: JSON
}

extend type Query {
  productFind(args: ProductFindArgs): [Product!]! @auth(roles: ["product:read"]) @bind(service: "ProductService", method: "find", args: "ProductFindArgs")
}
`

func TestBuildFromSDL(t *testing.T) {
	s, err := BuildFromSDL(catalogSDL)
	require.NoError(t, err)

	require.Equal(t, "Query", s.QueryType)
	require.Equal(t, "Mutation", s.MutationType)

	product := s.Types["Product"]
	require.Equal(t, TypeKindObject, product.Kind)
	require.Equal(t, "A sellable item.", product.Description)

	var names []string
	for _, f := range product.Fields {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"id", "name", "status", "category"}, names); diff != "" {
		t.Errorf("field order mismatch (-want +got):\n%s", diff)
	}
	require.False(t, product.Field("name").Async)
	require.True(t, product.Field("category").Async)

	find := s.Root("query").Field("productFind")
	require.True(t, find.Async)
	require.True(t, find.Type.IsNonNull())
	require.True(t, find.Type.IsList())
	require.Equal(t, "Product", find.Type.Name())
	require.Len(t, find.Arguments, 1)
	require.Equal(t, "ProductFindArgs", find.Arguments[0].Type.Name())
	require.False(t, s.Root("query").Field("_empty").Async)

	status := s.Types["Status"]
	require.Len(t, status.EnumValues, 3)
	require.Equal(t, "DRAFT", status.EnumValues[0].Name)
	require.True(t, status.EnumValues[1].IsDeprecated)

	require.Same(t, stringType, s.Types["String"])
	require.NotNil(t, s.Types["JSON"])
	require.Nil(t, s.Directives["bind"])
	require.NotNil(t, s.Directives["skip"])
}

func TestBuildFromSDLRejectsInvalidDocuments(t *testing.T) {
	_, err := BuildFromSDL("type Broken {")
	require.Error(t, err)

	_, err = BuildFromSDL("extend type Query { ping: String }")
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	s, err := BuildFromSDL(catalogSDL)
	require.NoError(t, err)

	out := Render(s)
	require.Equal(t, out, Render(s), "render must be deterministic")
	require.Contains(t, out, "page: Int = 1")
	require.Contains(t, out, `LIVE @deprecated(reason: "use PUBLISHED")`)
	require.Contains(t, out, "productFind(args: ProductFindArgs): [Product!]!")
	require.NotContains(t, out, "@bind")
	require.NotContains(t, out, "@link")
	require.NotContains(t, out, "scalar String")
	require.NotContains(t, out, "directive @skip")

	doc, err := language.ParseSchema("rendered.graphql", out)
	require.NoError(t, err)
	require.Len(t, doc.Schema, 1)
	roots := map[string]string{}
	for _, op := range doc.Schema[0].OperationTypes {
		roots[string(op.Operation)] = op.Type
	}
	require.Equal(t, map[string]string{"query": "Query", "mutation": "Mutation"}, roots)
	require.NotNil(t, doc.Definitions.ForName("ProductFindArgs"))
	require.Equal(t, "A sellable item.", doc.Definitions.ForName("Product").Description)
}

func TestRenderDefaultValues(t *testing.T) {
	s := NewSchema("").SetQueryType("Query")
	addBuiltins(s)
	s.AddType(NewType("Order", TypeKindEnum, "").
		AddEnumValue(NewEnumValue("ASC", "")).
		AddEnumValue(NewEnumValue("DESC", "")))
	s.AddType(NewType("Page", TypeKindInputObject, "").
		AddInputField(NewInputValue("order", "", NamedType("Order")).SetDefault("DESC")).
		AddInputField(NewInputValue("tags", "", ListType(NamedType("String"))).SetDefault([]any{"a", nil})))
	s.AddType(NewType("Query", TypeKindObject, "").
		AddField(NewField("items", "", ListType(NamedType("String"))).
			AddArgument(NewInputValue("page", "", NamedType("Page")).SetDefault(map[string]any{"order": "ASC", "size": int64(10)})).
			AddArgument(NewInputValue("ratio", "", NamedType("Float")).SetDefault(2.5))))

	out := Render(s)
	require.Contains(t, out, "order: Order = DESC")
	require.Contains(t, out, `tags: [String] = ["a", null]`)
	require.Contains(t, out, "page: Page = {order: ASC, size: 10}")
	require.Contains(t, out, "ratio: Float = 2.5")
}
