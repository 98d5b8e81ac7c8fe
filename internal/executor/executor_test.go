package executor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/executor"
	"github.com/hanpama/contractgraph/internal/language"
	"github.com/hanpama/contractgraph/internal/schema"
)

func shopSchema() *schema.Schema {
	named := schema.NamedType
	nonNull := func(n string) *schema.TypeRef { return schema.NonNullType(named(n)) }

	s := schema.NewSchema("").SetQueryType("Query").SetMutationType("Mutation")
	for _, n := range []string{"ID", "String", "Int", "Boolean"} {
		s.AddType(schema.NewType(n, schema.TypeKindScalar, ""))
	}
	s.AddType(schema.NewType("Query", schema.TypeKindObject, "").
		AddField(schema.NewField("shop", "", named("Shop")).SetAsync(true)).
		AddField(schema.NewField("version", "", nonNull("String"))).
		AddField(schema.NewField("records", "", schema.ListType(named("String"))).
			AddArgument(schema.NewInputValue("args", "", named("FindArgs")))))
	s.AddType(schema.NewType("Mutation", schema.TypeKindObject, "").
		AddField(schema.NewField("create", "", nonNull("Product")).SetAsync(true).
			AddArgument(schema.NewInputValue("title", "", nonNull("String")))).
		AddField(schema.NewField("remove", "", named("Boolean")).SetAsync(true)))
	s.AddType(schema.NewType("Shop", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", named("String"))).
		AddField(schema.NewField("code", "", nonNull("String"))).
		AddField(schema.NewField("products", "", schema.NonNullType(schema.ListType(nonNull("Product")))).SetAsync(true)).
		AddField(schema.NewField("featured", "", schema.ListType(named("Product"))).SetAsync(true)))
	s.AddType(schema.NewType("Product", schema.TypeKindObject, "").
		AddField(schema.NewField("id", "", nonNull("ID"))).
		AddField(schema.NewField("title", "", named("String"))).
		AddField(schema.NewField("maker", "", named("Maker")).SetAsync(true)))
	s.AddType(schema.NewType("Maker", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", named("String"))))
	s.AddType(schema.NewType("Sort", schema.TypeKindEnum, "").
		AddEnumValue(schema.NewEnumValue("NAME", "")).
		AddEnumValue(schema.NewEnumValue("PRICE", "")))
	s.AddType(schema.NewType("FindArgs", schema.TypeKindInputObject, "").
		AddInputField(schema.NewInputValue("page", "", named("Int")).SetDefault(int64(1))).
		AddInputField(schema.NewInputValue("limit", "", named("Int")).SetDefault(int64(20))).
		AddInputField(schema.NewInputValue("sort", "", named("Sort"))))
	return s
}

func prop(name string) executor.MockResolver {
	return func(_ context.Context, src any, _ map[string]any) (any, error) {
		return src.(map[string]any)[name], nil
	}
}

func shopRuntime() *executor.MockRuntime {
	return executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.shop":    executor.NewMockValueResolver(map[string]any{"name": "Corner", "code": "C1"}),
		"Query.version": executor.NewMockValueResolver("v1"),
		"Shop.name":     prop("name"),
		"Shop.code":     prop("code"),
		"Shop.products": executor.NewMockValueResolver([]map[string]any{
			{"id": "p1", "title": "Lamp"},
			{"id": "p2", "title": "Desk"},
		}),
		"Product.id":    prop("id"),
		"Product.title": prop("title"),
		"Product.maker": executor.NewMockValueResolver(map[string]any{"name": "Acme"}),
		"Maker.name":    prop("name"),
	})
}

func run(t *testing.T, rt executor.Runtime, query string, vars map[string]any, opts ...executor.Option) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return executor.NewExecutor(rt, shopSchema(), opts...).ExecuteRequest(context.Background(), doc, "", vars, nil)
}

func waves(rt *executor.MockRuntime) map[string][]int {
	out := map[string][]int{}
	for _, c := range rt.Calls() {
		key := c.ObjectType + "." + c.Field
		out[key] = append(out[key], c.Wave)
	}
	return out
}

func TestResolvesInWaves(t *testing.T) {
	rt := shopRuntime()
	res := run(t, rt, `{ shop { name products { id maker { name } } } version }`, nil)
	require.Empty(t, res.Errors)

	want := map[string]any{
		"version": "v1",
		"shop": map[string]any{
			"name": "Corner",
			"products": []any{
				map[string]any{"id": "p1", "maker": map[string]any{"name": "Acme"}},
				map[string]any{"id": "p2", "maker": map[string]any{"name": "Acme"}},
			},
		},
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, map[string][]int{
		"Query.version": {0},
		"Query.shop":    {1},
		"Shop.name":     {0},
		"Shop.products": {2},
		"Product.id":    {0, 0},
		"Product.maker": {3, 3},
		"Maker.name":    {0, 0},
	}, waves(rt))
}

func TestNonNullViolationClearsNearestNullableAncestor(t *testing.T) {
	rt := shopRuntime()
	rt.SetResolver("Shop", "products", executor.NewMockValueResolver([]any{
		map[string]any{"id": "p1"},
		map[string]any{"title": "no id"},
	}))

	res := run(t, rt, `{ shop { name products { id } } version }`, nil)
	require.Equal(t, map[string]any{"shop": nil, "version": "v1"}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, executor.Path{"shop", "products", 1, "id"}, res.Errors[0].Path)
	require.Equal(t, "Cannot return null for non-nullable field shop.products[1].id", res.Errors[0].Message)
}

func TestNullableListItemAbsorbsViolation(t *testing.T) {
	rt := shopRuntime()
	rt.SetResolver("Shop", "featured", executor.NewMockValueResolver([]any{
		map[string]any{"id": "p1"},
		map[string]any{},
	}))

	res := run(t, rt, `{ shop { featured { id } } }`, nil)
	require.Len(t, res.Errors, 1)
	require.Equal(t, map[string]any{
		"shop": map[string]any{"featured": []any{map[string]any{"id": "p1"}, nil}},
	}, res.Data)
}

func TestDiscardedObjectSkipsQueuedFields(t *testing.T) {
	rt := shopRuntime()
	rt.SetResolver("Query", "shop", executor.NewMockValueResolver(map[string]any{"name": "Corner"}))

	res := run(t, rt, `{ shop { products { id } code } }`, nil)
	require.Equal(t, map[string]any{"shop": nil}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, executor.Path{"shop", "code"}, res.Errors[0].Path)
	require.NotContains(t, waves(rt), "Shop.products")
}

type codedError struct{ code string }

func (e codedError) Error() string { return "rejected" }

func (e codedError) Extensions() map[string]any { return map[string]any{"code": e.code} }

func TestRootNonNullFailureNullsData(t *testing.T) {
	rt := shopRuntime()
	rt.SetResolver("Query", "version", executor.NewMockErrorResolver(codedError{code: "FORBIDDEN"}))

	res := run(t, rt, "{\n  shop { name }\n  version\n}", nil)
	require.Nil(t, res.Data)
	want := []executor.GraphQLError{{
		Message:    "rejected",
		Locations:  []executor.Location{{Line: 3, Column: 3}},
		Path:       executor.Path{"version"},
		Extensions: map[string]any{"code": "FORBIDDEN"},
	}}
	if diff := cmp.Diff(want, res.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	require.NotContains(t, waves(rt), "Query.shop")
}

func TestMutationsRunOneAtATime(t *testing.T) {
	rt := shopRuntime()
	rt.SetResolver("Mutation", "create", func(_ context.Context, _ any, args map[string]any) (any, error) {
		return map[string]any{"id": "p9", "title": args["title"]}, nil
	})
	rt.SetResolver("Mutation", "remove", executor.NewMockValueResolver(true))

	res := run(t, rt, `mutation { create(title: "Lamp") { title maker { name } } remove }`, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"create": map[string]any{"title": "Lamp", "maker": map[string]any{"name": "Acme"}},
		"remove": true,
	}, res.Data)

	got := waves(rt)
	require.Equal(t, []int{1}, got["Mutation.create"])
	require.Equal(t, []int{2}, got["Product.maker"])
	require.Equal(t, []int{3}, got["Mutation.remove"])
}

func TestFailedMutationStopsTheRest(t *testing.T) {
	rt := shopRuntime()
	rt.SetResolver("Mutation", "create", executor.NewMockErrorResolver(errors.New("duplicate title")))

	res := run(t, rt, `mutation { create(title: "Lamp") { id } remove }`, nil)
	require.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	require.NotContains(t, waves(rt), "Mutation.remove")
}

func TestArgumentsCoercion(t *testing.T) {
	var got []map[string]any
	rt := shopRuntime()
	rt.SetResolver("Query", "records", func(_ context.Context, _ any, args map[string]any) (any, error) {
		got = append(got, args)
		return nil, nil
	})

	res := run(t, rt, `query($a: FindArgs, $s: Sort) {
		one: records(args: $a)
		two: records(args: {sort: $s, page: 3})
		three: records
	}`, map[string]any{
		"a": map[string]any{"limit": float64(5)},
		"s": "PRICE",
	})
	require.Empty(t, res.Errors)
	require.Equal(t, []map[string]any{
		{"args": map[string]any{"page": 1, "limit": 5}},
		{"args": map[string]any{"page": 3, "limit": 20, "sort": "PRICE"}},
		{},
	}, got)
}

func TestInvalidInputs(t *testing.T) {
	for name, tc := range map[string]struct {
		query string
		vars  map[string]any
	}{
		"fractional int":   {`query($a: FindArgs) { records(args: $a) }`, map[string]any{"a": map[string]any{"page": 1.5}}},
		"unknown field":    {`query($a: FindArgs) { records(args: $a) }`, map[string]any{"a": map[string]any{"size": 1}}},
		"unknown enum":     {`query($s: Sort) { records(args: {sort: $s}) }`, map[string]any{"s": "COLOR"}},
		"missing required": {`query($t: String!) { version }`, nil},
	} {
		t.Run(name, func(t *testing.T) {
			res := run(t, shopRuntime(), tc.query, tc.vars)
			require.Nil(t, res.Data)
			require.Len(t, res.Errors, 1)
		})
	}

	res := run(t, shopRuntime(), `{ records(args: {page: "two"}) version }`, nil)
	require.Len(t, res.Errors, 1)
	require.Equal(t, executor.Path{"records"}, res.Errors[0].Path)
	require.Equal(t, map[string]any{"records": nil, "version": "v1"}, res.Data)
}

func TestFragmentsAndDirectives(t *testing.T) {
	res := run(t, shopRuntime(), `
		query($hide: Boolean!) {
			shop {
				__typename
				label: name
				...Codes
				... on Shop { name @skip(if: $hide) }
				name @include(if: false)
			}
		}
		fragment Codes on Shop { code }
	`, map[string]any{"hide": true})
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"shop": map[string]any{"__typename": "Shop", "label": "Corner", "code": "C1"},
	}, res.Data)
}

func TestMaxDepth(t *testing.T) {
	query := `{ shop { products { maker { name } } } }`
	res := run(t, shopRuntime(), query, nil, executor.WithMaxDepth(3))
	require.Nil(t, res.Data)
	require.Equal(t, "operation depth 4 exceeds the limit of 3", res.Errors[0].Message)

	res = run(t, shopRuntime(), query, nil, executor.WithMaxDepth(4))
	require.Empty(t, res.Errors)
}

func TestCancelledContextFailsQueuedFields(t *testing.T) {
	rt := shopRuntime()
	doc, err := language.ParseQuery(`{ shop { name } version }`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := executor.NewExecutor(rt, shopSchema()).ExecuteRequest(ctx, doc, "", nil, nil)
	require.Equal(t, map[string]any{"shop": nil, "version": "v1"}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, context.Canceled.Error(), res.Errors[0].Message)
	require.NotContains(t, waves(rt), "Query.shop")
}

func TestOperationSelection(t *testing.T) {
	doc, err := language.ParseQuery(`query A { version } query B { shop { name } }`)
	require.NoError(t, err)
	exec := executor.NewExecutor(shopRuntime(), shopSchema())

	res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	require.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)

	res = exec.ExecuteRequest(context.Background(), doc, "A", nil, nil)
	require.Equal(t, map[string]any{"version": "v1"}, res.Data)

	res = exec.ExecuteRequest(context.Background(), doc, "C", nil, nil)
	require.Equal(t, "unknown operation C", res.Errors[0].Message)
}

type shortRuntime struct{ *executor.MockRuntime }

func (shortRuntime) BatchResolveAsync(context.Context, []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return nil
}

func TestMismatchedBatchResults(t *testing.T) {
	res := run(t, shortRuntime{shopRuntime()}, `{ shop { name } version }`, nil)
	require.Equal(t, map[string]any{"shop": nil, "version": "v1"}, res.Data)
	require.Len(t, res.Errors, 1)
}
