package ir_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/contractgraph/internal/ir"
	"github.com/stretchr/testify/require"
)

const productSDL = `
type Product {
  id: ID!
  name: String!
  price: Float
  category: String @link(entity: "Category", field: "id")
  createdAt: String
  updatedAt: String
}

input CreateProductInput {
  name: String!
  price: Float
}

type ProductList {
  count: Int!
  data: [Product!]!
  pagination: PaginationMeta!
}

input ProductFindArgs {
  page: Int = 1
  limit: Int = 20
  sort: String
  filter: JSON
}

extend type Query {
  productFind(args: ProductFindArgs): ProductList! @auth(roles: ["product:read"]) @bind(service: "ProductService", method: "find", args: "ProductFindArgs")
  productById(id: ID!): Product @auth(roles: ["product:read"]) @bind(service: "ProductService", method: "findById")
}

extend type Mutation {
  createProduct(input: CreateProductInput!): Product! @rootOnly @bind(service: "ProductService", method: "create", args: "CreateProductInput")
}
`

const categorySDL = `
type Category {
  id: ID!
  title: String!
}

extend type Query {
  categoryById(id: ID!): Category @bind(service: "CategoryService", method: "findById")
}
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func build(t *testing.T, srcs ...ir.InMemorySource) (*ir.Project, error) {
	t.Helper()
	disc := ir.NewInMemoryDiscovery(ir.OriginGenerated, srcs)
	return ir.Build(context.Background(), disc, ir.WithLogger(quietLogger()))
}

func TestBuildMergesSources(t *testing.T) {
	p, err := build(t,
		ir.InMemorySource{Name: "product.resolver.graphql", Content: productSDL},
		ir.InMemorySource{Name: "category.resolver.graphql", Content: categorySDL},
	)
	require.NoError(t, err)

	require.Equal(t, "Query", p.Schema.QueryType)
	require.Equal(t, "Mutation", p.Schema.MutationType)

	var ids []ir.SourceID
	for _, s := range p.Sources {
		ids = append(ids, s.ID)
	}
	require.Equal(t, []ir.SourceID{
		"prelude",
		"generated:product.resolver.graphql",
		"generated:category.resolver.graphql",
	}, ids)

	product := p.Sources[1]
	require.Equal(t, []string{"Product", "CreateProductInput", "ProductList", "ProductFindArgs"}, product.Definitions)
	require.Equal(t, []string{"Query.productFind", "Query.productById", "Mutation.createProduct"}, product.RootFields)

	query := p.RootObject("Query")
	find := query.Fields["productFind"]
	if diff := cmp.Diff(&ir.Binding{Service: "ProductService", Method: "find", Args: "ProductFindArgs"}, find.Binding); diff != "" {
		t.Errorf("binding mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, &ir.Policy{Roles: []string{"product:read"}}, find.Policy)
	require.Equal(t, "ProductList!", find.Type.String())

	create := p.RootObject("Mutation").Fields["createProduct"]
	require.Equal(t, &ir.Policy{RootOnly: true}, create.Policy)

	link := p.Definitions["Product"].Object.Fields["category"].Link
	require.Equal(t, &ir.Link{Entity: "Category", Field: "id"}, link)

	args := p.Definitions["ProductFindArgs"].Input.InputValues
	require.EqualValues(t, 1, args["page"].DefaultValue)
	require.EqualValues(t, 20, args["limit"].DefaultValue)

	var bound []string
	for _, f := range p.BoundFields() {
		bound = append(bound, f.Name)
	}
	require.Equal(t, []string{"productFind", "productById", "categoryById", "createProduct"}, bound)
}

func TestBuildSkipsUnparsableSource(t *testing.T) {
	p, err := build(t,
		ir.InMemorySource{Name: "broken.resolver.graphql", Content: "type Broken {"},
		ir.InMemorySource{Name: "category.resolver.graphql", Content: categorySDL},
	)
	require.NoError(t, err)
	require.Len(t, p.Sources, 2)
	require.Nil(t, p.Definitions["Broken"])
	require.NotNil(t, p.Definitions["Category"])
}

func TestBuildViolations(t *testing.T) {
	for _, tc := range []struct {
		name string
		sdl  string
		want string
	}{
		{
			name: "unbound root field",
			sdl:  "extend type Query { ping: String }",
			want: "Root field Query.ping has no @bind directive",
		},
		{
			name: "unknown field directive",
			sdl:  "type Thing { id: ID! @key }",
			want: "Unknown directive @key on field id of type Thing",
		},
		{
			name: "bind outside root",
			sdl:  `type Thing { id: ID! @bind(service: "S", method: "m") }`,
			want: "@bind on field id of type Thing: only Query and Mutation fields can be bound",
		},
		{
			name: "link on root",
			sdl:  `extend type Query { thing: ID @link(entity: "Thing") @bind(service: "S", method: "m") }`,
			want: "@link on root field thing of type Query is not allowed",
		},
		{
			name: "bind missing method",
			sdl:  `extend type Query { thing: ID @bind(service: "S") }`,
			want: "@bind requires non-empty 'service' and 'method' arguments",
		},
		{
			name: "interface",
			sdl:  "interface Node { id: ID! }",
			want: `INTERFACE type "Node" is not supported`,
		},
		{
			name: "duplicate definition",
			sdl:  "type Thing { id: ID! }\ntype Thing { id: ID! }",
			want: `Definition "Thing" already exists`,
		},
		{
			name: "unknown type",
			sdl:  "type Thing { owner: Owner }",
			want: `Type "Owner" not found in definitions`,
		},
		{
			name: "type directive",
			sdl:  "type Thing @entity { id: ID! }",
			want: "Unknown directive @entity on OBJECT type Thing",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := build(t, ir.InMemorySource{Name: "bad.graphql", Content: tc.sdl})
			require.Error(t, err)
			var verr ir.ValidationError
			require.ErrorAs(t, err, &verr)

			var messages []string
			for _, v := range verr {
				messages = append(messages, v.Message)
			}
			require.Contains(t, messages, tc.want)
		})
	}
}

func TestLinkDefaultsToID(t *testing.T) {
	p, err := build(t,
		ir.InMemorySource{Name: "category.resolver.graphql", Content: categorySDL},
		ir.InMemorySource{Name: "post.graphql", Content: `type Post { id: ID! category: ID @link(entity: "Category") }`},
	)
	require.NoError(t, err)
	require.Equal(t, &ir.Link{Entity: "Category", Field: "id"}, p.Definitions["Post"].Object.Fields["category"].Link)
}

func TestChainDeduplicatesIDs(t *testing.T) {
	a := ir.NewInMemoryDiscovery(ir.OriginModule, []ir.InMemorySource{{Name: "a.graphql", Content: "scalar A"}})
	b := ir.NewInMemoryDiscovery(ir.OriginModule, []ir.InMemorySource{
		{Name: "a.graphql", Content: "scalar Shadowed"},
		{Name: "b.graphql", Content: "scalar B"},
	})

	chain := ir.Chain{a, b}
	metas, err := chain.ListMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 2)

	sdl, err := chain.ReadSDL(context.Background(), "module:a.graphql")
	require.NoError(t, err)
	require.Equal(t, "scalar A", sdl)

	_, err = chain.ReadSDL(context.Background(), "module:missing.graphql")
	require.Error(t, err)
}

func TestFileSystemDiscovery(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shop"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop", "category.resolver.graphql"), []byte(categorySDL), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.graphql"), []byte("type Ignored { id: ID! }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not sdl"), 0o644))

	skip := func(path string) bool { return filepath.Base(path) == "schema.graphql" }
	disc, err := ir.NewFileSystemDiscovery(context.Background(), dir, ir.OriginSource, skip)
	require.NoError(t, err)

	metas, err := disc.ListMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.Equal(t, ir.SourceID("source:shop/category.resolver.graphql"), metas[0].ID)

	p, err := ir.Build(context.Background(), disc, ir.WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NotNil(t, p.Definitions["Category"])
	require.Nil(t, p.Definitions["Ignored"])

	missing, err := ir.NewFileSystemDiscovery(context.Background(), filepath.Join(dir, "nope"), ir.OriginSource, nil)
	require.NoError(t, err)
	metas, err = missing.ListMetadata(context.Background())
	require.NoError(t, err)
	require.Empty(t, metas)
}

func TestViolationPosition(t *testing.T) {
	_, err := build(t, ir.InMemorySource{Name: "bad.graphql", Content: "type Thing {\n  owner: Owner\n}"})
	var verr ir.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr, 1)
	require.Equal(t, "bad.graphql", verr[0].File)
	require.Equal(t, 2, verr[0].Line)
	require.Contains(t, err.Error(), "1 schema violation(s)")
	require.Contains(t, err.Error(), `bad.graphql:2:`)
}
