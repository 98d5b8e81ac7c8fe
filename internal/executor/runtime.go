package executor

import "context"

// Runtime resolves field values for an Executor.
//
// Implementations must be safe for concurrent use, since one Executor serves
// many requests at once, and must not mutate sources or arguments.
type Runtime interface {
	// ResolveSync resolves a field that is not marked Async. Returning
	// (nil, nil) yields null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one wave of async fields. It must return
	// exactly one result per task, in task order. A failure in one result
	// does not fail the others.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// SerializeLeafValue turns a scalar or enum value into a JSON-safe value.
	// Enums serialize to their name.
	SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error)
}

// AsyncResolveTask is one queued field.
type AsyncResolveTask struct {
	ObjectType string
	Field      string
	// Source is the parent value, or the operation's initial value for root fields.
	Source any
	Args   map[string]any
}

type AsyncResolveResult struct {
	Value any
	Error error
}
