// Package service defines the backing services that bound resolver fields
// dispatch to, and the registry that resolves them by name.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownService is returned by Resolve when no service has the name.
	ErrUnknownService = errors.New("service: unknown service")
	// ErrUnknownMethod is returned by Invoke for methods a service lacks.
	ErrUnknownMethod = errors.New("service: unknown method")
)

// Service executes named methods with the coerced GraphQL field arguments.
type Service interface {
	Invoke(ctx context.Context, method string, args map[string]any) (any, error)
}

// BatchLoader is implemented by services that can load many records by key
// in a single call. Results are aligned with keys; missing keys yield nil.
type BatchLoader interface {
	LoadMany(ctx context.Context, field string, keys []any) ([]any, error)
}

// Locator resolves a service by its registered name.
type Locator interface {
	Resolve(name string) (Service, error)
}

// Func is a single service method.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Methods adapts a set of functions into a Service.
type Methods map[string]Func

func (m Methods) Invoke(ctx context.Context, method string, args map[string]any) (any, error) {
	fn, ok := m[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return fn(ctx, args)
}

// Registry is a concurrency-safe Locator.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register adds svc under name and fails if the name is taken.
func (r *Registry) Register(name string, svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[name]; ok {
		return fmt.Errorf("service %q already registered", name)
	}
	r.services[name] = svc
	return nil
}

// Put adds or replaces the service registered under name.
func (r *Registry) Put(name string, svc Service) {
	r.mu.Lock()
	r.services[name] = svc
	r.mu.Unlock()
}

// Remove drops the service registered under name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.services, name)
	r.mu.Unlock()
}

func (r *Registry) Resolve(name string) (Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return svc, nil
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.services))
	for name := range r.services {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
