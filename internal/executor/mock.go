package executor

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MockResolver resolves one field value for MockRuntime.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

func NewMockValueResolver(v any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return v, nil }
}

func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Call records one field resolution. Wave is the 1-based BatchResolveAsync
// call that resolved it, or 0 for ResolveSync.
type Call struct {
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	Wave       int
}

// MockRuntime is a Runtime for tests. Resolvers are keyed "Type.field";
// fields without one resolve to null and leaves serialize unchanged.
type MockRuntime struct {
	mu    sync.Mutex
	byKey map[string]MockResolver
	log   []Call
	wave  int
}

func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	byKey := maps.Clone(resolvers)
	if byKey == nil {
		byKey = map[string]MockResolver{}
	}
	return &MockRuntime{byKey: byKey}
}

func (m *MockRuntime) SetResolver(objectType, field string, r MockResolver) {
	m.mu.Lock()
	m.byKey[objectType+"."+field] = r
	m.mu.Unlock()
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	return m.call(ctx, Call{ObjectType: objectType, Field: field, Source: source, Args: args})
}

func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	m.mu.Lock()
	m.wave++
	wave := m.wave
	m.mu.Unlock()

	results := make([]AsyncResolveResult, 0, len(tasks))
	for _, t := range tasks {
		v, err := m.call(ctx, Call{ObjectType: t.ObjectType, Field: t.Field, Source: t.Source, Args: t.Args, Wave: wave})
		results = append(results, AsyncResolveResult{Value: v, Error: err})
	}
	return results
}

func (m *MockRuntime) SerializeLeafValue(_ context.Context, _ string, v any) (any, error) {
	return v, nil
}

// Calls returns the recorded resolutions in order.
func (m *MockRuntime) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.log)
}

func (m *MockRuntime) call(ctx context.Context, c Call) (any, error) {
	m.mu.Lock()
	m.log = append(m.log, c)
	fn, ok := m.byKey[c.ObjectType+"."+c.Field]
	m.mu.Unlock()
	if !ok || fn == nil {
		return nil, nil
	}
	return fn(ctx, c.Source, c.Args)
}
