package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of records kept by NewCached when size <= 0.
const DefaultCacheSize = 1024

// Cached fronts a Store with an LRU cache of single-record reads.
// Writes through this Store invalidate or refresh the cached entry.
type Cached struct {
	Store
	cache *lru.Cache[string, Record]
}

// NewCached wraps next with a cache holding up to size records.
func NewCached(next Store, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Record](size)
	if err != nil {
		return nil, err
	}
	return &Cached{Store: next, cache: cache}, nil
}

// EnsureIndexes forwards to the wrapped store when it maintains indexes.
func (c *Cached) EnsureIndexes(ctx context.Context, entity string, specs []IndexSpec) error {
	if ix, ok := c.Store.(Indexer); ok {
		return ix.EnsureIndexes(ctx, entity, specs)
	}
	return nil
}

func cacheKey(entity, id string) string { return entity + "/" + id }

func (c *Cached) Get(ctx context.Context, entity, id string) (Record, error) {
	if rec, ok := c.cache.Get(cacheKey(entity, id)); ok {
		return copyRecord(rec), nil
	}
	rec, err := c.Store.Get(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(cacheKey(entity, id), copyRecord(rec))
	return rec, nil
}

func (c *Cached) GetMany(ctx context.Context, entity string, ids []string) ([]Record, error) {
	out := make([]Record, len(ids))
	var missing []string
	var missingAt []int
	for i, id := range ids {
		if rec, ok := c.cache.Get(cacheKey(entity, id)); ok {
			out[i] = copyRecord(rec)
			continue
		}
		missing = append(missing, id)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	loaded, err := c.Store.GetMany(ctx, entity, missing)
	if err != nil {
		return nil, err
	}
	for j, rec := range loaded {
		out[missingAt[j]] = rec
		if rec != nil {
			c.cache.Add(cacheKey(entity, missing[j]), copyRecord(rec))
		}
	}
	return out, nil
}

func (c *Cached) Create(ctx context.Context, entity string, rec Record) (Record, error) {
	out, err := c.Store.Create(ctx, entity, rec)
	if err != nil {
		return nil, err
	}
	if id, ok := out["id"].(string); ok {
		c.cache.Add(cacheKey(entity, id), copyRecord(out))
	}
	return out, nil
}

func (c *Cached) Update(ctx context.Context, entity, id string, patch Record) (Record, error) {
	c.cache.Remove(cacheKey(entity, id))
	out, err := c.Store.Update(ctx, entity, id, patch)
	if err != nil {
		return nil, err
	}
	c.cache.Add(cacheKey(entity, id), copyRecord(out))
	return out, nil
}

func (c *Cached) Delete(ctx context.Context, entity, id string) (bool, error) {
	c.cache.Remove(cacheKey(entity, id))
	return c.Store.Delete(ctx, entity, id)
}

// Len reports the number of cached records.
func (c *Cached) Len() int { return c.cache.Len() }
