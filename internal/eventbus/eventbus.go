// Package eventbus routes in-process events to subscribers by their Go type.
//
// Publishers and subscribers meet on a process-wide bus installed with Use.
// Without one, Publish is a no-op, which keeps packages usable in tests that
// do not care about events.
package eventbus

import (
	"context"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

type listener struct {
	fn func(context.Context, any)
}

// Bus maps event types to their listeners. Listener slices are replaced on
// every change and never mutated, so a dispatch can run without the lock and
// handlers may subscribe or unsubscribe while being called.
type Bus struct {
	mu        sync.Mutex
	listeners map[reflect.Type][]*listener
}

func New() *Bus { return &Bus{listeners: map[reflect.Type][]*listener{}} }

func (b *Bus) add(t reflect.Type, fn func(context.Context, any)) func() {
	l := &listener{fn: fn}
	b.mu.Lock()
	b.listeners[t] = append(slices.Clip(b.listeners[t]), l)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t, l) })
	}
}

func (b *Bus) remove(t reflect.Type, l *listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rest := slices.DeleteFunc(slices.Clone(b.listeners[t]), func(x *listener) bool { return x == l })
	if len(rest) == 0 {
		delete(b.listeners, t)
		return
	}
	b.listeners[t] = rest
}

func (b *Bus) dispatch(ctx context.Context, e any) {
	b.mu.Lock()
	ls := b.listeners[reflect.TypeOf(e)]
	b.mu.Unlock()
	for _, l := range ls {
		l.fn(ctx, e)
	}
}

var current atomic.Pointer[Bus]

// Use installs b as the process-wide bus. Use(nil) turns publishing off.
func Use(b *Bus) { current.Store(b) }

// Subscribe calls h for every published T, in subscription order. The
// returned function removes h and is safe to call more than once. Without a
// bus nothing is registered.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	b := current.Load()
	if b == nil {
		return func() {}
	}
	return b.add(reflect.TypeFor[T](), func(ctx context.Context, v any) { h(ctx, v.(T)) })
}

// Publish hands e to the subscribers of T on the current bus.
func Publish[T any](ctx context.Context, e T) {
	if b := current.Load(); b != nil {
		b.dispatch(ctx, e)
	}
}
