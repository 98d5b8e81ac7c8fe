// Package executor runs parsed GraphQL operations against a schema.
//
// Fields whose definition is marked Async are not resolved in place. They are
// queued and handed to the Runtime in waves through BatchResolveAsync, which
// lets the runtime group work by backend (one wave per response depth).
// Every other field is resolved immediately through ResolveSync.
//
// The response is built as a tree of positions. Each position knows its
// parent and its declared type, so a null in a Non-Null position clears the
// nearest nullable ancestor and discards the queued work beneath it before
// the runtime sees it.
//
// Mutation root fields run one at a time; the nested work of a root field
// drains before the next root field starts.
//
// Only object types, scalars, enums and input objects are supported.
// Subscriptions are rejected.
package executor
