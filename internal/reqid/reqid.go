// Package reqid tags request contexts with a sortable unique id.
package reqid

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Header echoes the request id back to the client.
const Header = "X-Request-Id"

type key struct{}

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh request id.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewContext returns a copy of parent with a new request id stored.
// It also returns the generated id.
func NewContext(parent context.Context) (context.Context, string) {
	id := New()
	return WithID(parent, id), id
}

// WithID stores id in parent, e.g. one taken from an incoming header.
func WithID(parent context.Context, id string) context.Context {
	return context.WithValue(parent, key{}, id)
}

// FromContext extracts the request id from ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
