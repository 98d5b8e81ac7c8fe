package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s Store) []Record {
	t.Helper()
	ctx := context.Background()
	var out []Record
	for _, r := range []Record{
		{"name": "pear", "price": 3.0, "kind": "fruit"},
		{"name": "apple", "price": 1.5, "kind": "fruit"},
		{"name": "leek", "price": 2.0, "kind": "vegetable"},
	} {
		rec, err := s.Create(ctx, "Product", r)
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func TestMemoryCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	recs := seed(t, s)

	id := recs[0]["id"].(string)
	require.Len(t, id, 26)
	require.NotEmpty(t, recs[0]["createdAt"])

	got, err := s.Get(ctx, "Product", id)
	require.NoError(t, err)
	require.Equal(t, "pear", got["name"])

	got["name"] = "mutated"
	again, err := s.Get(ctx, "Product", id)
	require.NoError(t, err)
	require.Equal(t, "pear", again["name"])

	upd, err := s.Update(ctx, "Product", id, Record{"price": 4.0, "id": "hijack"})
	require.NoError(t, err)
	require.Equal(t, 4.0, upd["price"])
	require.Equal(t, id, upd["id"])

	_, err = s.Update(ctx, "Product", "missing", Record{})
	require.ErrorIs(t, err, ErrNotFound)

	many, err := s.GetMany(ctx, "Product", []string{recs[2]["id"].(string), "missing", id})
	require.NoError(t, err)
	require.Equal(t, "leek", many[0]["name"])
	require.Nil(t, many[1])
	require.Equal(t, "pear", many[2]["name"])

	ok, err := s.Delete(ctx, "Product", id)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Delete(ctx, "Product", id)
	require.NoError(t, err)
	require.False(t, ok)
	_, err = s.Get(ctx, "Product", id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	seed(t, s)

	page, err := s.Find(ctx, "Product", Query{})
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 3)
	require.Equal(t, "pear", page.Items[0]["name"])

	page, err = s.Find(ctx, "Product", Query{Sort: "-price", Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []any{"pear", "leek"}, names(page.Items))

	page, err = s.Find(ctx, "Product", Query{Sort: "name", Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []any{"pear"}, names(page.Items))

	page, err = s.Find(ctx, "Product", Query{Filter: map[string]any{"kind": "fruit"}, Sort: "name"})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, []any{"apple", "pear"}, names(page.Items))

	page, err = s.Find(ctx, "Product", Query{Page: 9})
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.Equal(t, 3, page.Total)

	_, err = s.Find(ctx, "Product", Query{Sort: "name; DROP TABLE"})
	require.Error(t, err)
}

func names(recs []Record) []any {
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = r["name"]
	}
	return out
}

type countingStore struct {
	Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, entity, id string) (Record, error) {
	c.gets++
	return c.Store.Get(ctx, entity, id)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewMemory()}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	rec, err := inner.Store.Create(ctx, "Product", Record{"name": "pear"})
	require.NoError(t, err)
	id := rec["id"].(string)

	for i := 0; i < 3; i++ {
		got, err := c.Get(ctx, "Product", id)
		require.NoError(t, err)
		require.Equal(t, "pear", got["name"])
	}
	require.Equal(t, 1, inner.gets)

	_, err = c.Update(ctx, "Product", id, Record{"name": "apple"})
	require.NoError(t, err)
	got, err := c.Get(ctx, "Product", id)
	require.NoError(t, err)
	require.Equal(t, "apple", got["name"])
	require.Equal(t, 1, inner.gets)

	many, err := c.GetMany(ctx, "Product", []string{id, "missing"})
	require.NoError(t, err)
	require.Equal(t, "apple", many[0]["name"])
	require.Nil(t, many[1])

	_, err = c.Delete(ctx, "Product", id)
	require.NoError(t, err)
	_, err = c.Get(ctx, "Product", id)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 2, inner.gets)
}

func TestBuildFind(t *testing.T) {
	countSQL, selectSQL, args, err := buildFind("Product", Query{Page: 2, Limit: 10, Sort: "-price", Filter: map[string]any{"kind": "fruit"}}.Normalize())
	require.NoError(t, err)
	require.Equal(t, "SELECT count(*) FROM entity_records WHERE entity = $1 AND data @> $2::jsonb", countSQL)
	require.Equal(t, "SELECT data FROM entity_records WHERE entity = $1 AND data @> $2::jsonb ORDER BY data->>'price' DESC, id LIMIT $3 OFFSET $4", selectSQL)
	require.Equal(t, []any{"Product", `{"kind":"fruit"}`, 10, 10}, args)

	_, _, _, err = buildFind("Product", Query{Sort: "x'y"})
	require.Error(t, err)
}

func TestIndexStatement(t *testing.T) {
	stmt, err := indexStatement("Product", IndexSpec{Fields: []string{"sku"}, Unique: true})
	require.NoError(t, err)
	require.Equal(t, "CREATE UNIQUE INDEX IF NOT EXISTS idx_product_sku ON entity_records ((data->>'sku')) WHERE entity = 'Product'", stmt)

	_, err = indexStatement("Product", IndexSpec{Fields: []string{"a'b"}})
	require.Error(t, err)
	_, err = indexStatement("Product", IndexSpec{})
	require.Error(t, err)
}
