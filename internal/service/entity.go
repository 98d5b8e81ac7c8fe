package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/hanpama/contractgraph/internal/contract"
	"github.com/hanpama/contractgraph/internal/store"
)

// Standard CRUD method names of an entity service.
const (
	MethodFind     = "find"
	MethodFindByID = "findById"
	MethodCreate   = "create"
	MethodUpdate   = "update"
	MethodDelete   = "delete"
)

// EntityService serves the standard operations of one contract on top of a
// store. Custom methods declared by the contract are attached with Handle.
type EntityService struct {
	contract *contract.Contract
	entity   string
	store    store.Store

	mu     sync.RWMutex
	custom map[string]Func
}

// NewEntityService returns the CRUD service of c backed by s.
func NewEntityService(c *contract.Contract, s store.Store) *EntityService {
	return &EntityService{
		contract: c,
		entity:   c.EntityName(),
		store:    s,
		custom:   make(map[string]Func),
	}
}

// Handle attaches a custom method. Standard method names cannot be replaced.
func (s *EntityService) Handle(name string, fn Func) error {
	switch name {
	case MethodFind, MethodFindByID, MethodCreate, MethodUpdate, MethodDelete:
		return fmt.Errorf("service %s: %q is a standard method", s.entity, name)
	}
	s.mu.Lock()
	s.custom[name] = fn
	s.mu.Unlock()
	return nil
}

// Entity returns the entity name the service stores records under.
func (s *EntityService) Entity() string { return s.entity }

func (s *EntityService) Invoke(ctx context.Context, method string, args map[string]any) (any, error) {
	switch method {
	case MethodFind:
		return s.find(ctx, args)
	case MethodFindByID:
		rec, err := s.store.Get(ctx, s.entity, stringArg(args, "id"))
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return rec, err
	case MethodCreate:
		return s.create(ctx, mapArg(args, "input"))
	case MethodUpdate:
		rec, err := s.store.Update(ctx, s.entity, stringArg(args, "id"), mapArg(args, "input"))
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s %q not found", s.entity, stringArg(args, "id"))
		}
		return rec, err
	case MethodDelete:
		return s.store.Delete(ctx, s.entity, stringArg(args, "id"))
	}
	s.mu.RLock()
	fn, ok := s.custom[method]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, s.contract.ServiceName(), method)
	}
	return fn(ctx, args)
}

func (s *EntityService) create(ctx context.Context, input map[string]any) (any, error) {
	rec := store.Record{}
	for k, v := range input {
		rec[k] = v
	}
	for _, f := range s.contract.Fields {
		if f.DefaultValue == nil || f.Exclude {
			continue
		}
		if _, ok := rec[f.PropertyKey]; !ok {
			rec[f.PropertyKey] = f.DefaultValue
		}
	}
	return s.store.Create(ctx, s.entity, rec)
}

func (s *EntityService) find(ctx context.Context, args map[string]any) (any, error) {
	in := mapArg(args, "args")
	if in == nil {
		in = args
	}
	q := store.Query{
		Page:  intArg(in, "page"),
		Limit: intArg(in, "limit"),
	}
	q.Sort, _ = in["sort"].(string)
	filter, err := filterArg(in["filter"])
	if err != nil {
		return nil, err
	}
	q.Filter = filter
	q = q.Normalize()

	page, err := s.store.Find(ctx, s.entity, q)
	if err != nil {
		return nil, err
	}
	data := make([]any, len(page.Items))
	for i, rec := range page.Items {
		data[i] = rec
	}
	pages := 0
	if page.Total > 0 {
		pages = (page.Total + q.Limit - 1) / q.Limit
	}
	return map[string]any{
		"count": page.Total,
		"data":  data,
		"pagination": map[string]any{
			"page":  q.Page,
			"limit": q.Limit,
			"total": page.Total,
			"pages": pages,
		},
	}, nil
}

// LoadMany resolves linked records. Keys on "id" use a single batched read.
func (s *EntityService) LoadMany(ctx context.Context, field string, keys []any) ([]any, error) {
	out := make([]any, len(keys))
	if field == "" || field == "id" {
		ids := make([]string, len(keys))
		for i, k := range keys {
			ids[i] = keyString(k)
		}
		recs, err := s.store.GetMany(ctx, s.entity, ids)
		if err != nil {
			return nil, err
		}
		for i, rec := range recs {
			if rec != nil {
				out[i] = rec
			}
		}
		return out, nil
	}

	seen := make(map[string]any, len(keys))
	for i, k := range keys {
		ks := keyString(k)
		if v, ok := seen[ks]; ok {
			out[i] = v
			continue
		}
		page, err := s.store.Find(ctx, s.entity, store.Query{Limit: 1, Filter: map[string]any{field: k}})
		if err != nil {
			return nil, err
		}
		var v any
		if len(page.Items) > 0 {
			v = page.Items[0]
		}
		seen[ks] = v
		out[i] = v
	}
	return out, nil
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

func stringArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func mapArg(args map[string]any, name string) map[string]any {
	m, _ := args[name].(map[string]any)
	return m
}

func intArg(args map[string]any, name string) int {
	switch v := args[name].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func filterArg(v any) (map[string]any, error) {
	switch f := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return f, nil
	case string:
		if f == "" {
			return nil, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(f), &m); err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("invalid filter of type %T", v)
}
