// Package module tracks the installed feature modules. A module contributes
// resolver SDL to the merged schema and the services its fields bind to.
package module

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hanpama/contractgraph/internal/ir"
	"github.com/hanpama/contractgraph/internal/service"
)

// Module is one installable feature.
type Module interface {
	Name() string
	// SDL is the resolver source the module contributes, or "".
	SDL() string
	// Install registers the module's services.
	Install(reg *service.Registry) error
}

// AuthName is the name of the module that turns on token verification.
const AuthName = "auth"

// Registry holds the installed modules.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Install registers m's services and marks it installed. Installing a
// second module under the same name fails.
func (r *Registry) Install(m Module, services *service.Registry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[m.Name()]; ok {
		return fmt.Errorf("module %q already installed", m.Name())
	}
	if err := m.Install(services); err != nil {
		return fmt.Errorf("install module %q: %w", m.Name(), err)
	}
	r.modules[m.Name()] = m
	return nil
}

// Has reports whether a module named name is installed.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[name]
	return ok
}

// HasAuth reports whether the auth module is installed.
func (r *Registry) HasAuth() bool { return r.Has(AuthName) }

// Installed returns the installed modules ordered by name.
func (r *Registry) Installed() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Sources returns the resolver SDL of every installed module, named
// "<module>.module.graphql".
func (r *Registry) Sources() []ir.InMemorySource {
	var out []ir.InMemorySource
	for _, m := range r.Installed() {
		if sdl := m.SDL(); sdl != "" {
			out = append(out, ir.InMemorySource{Name: m.Name() + ".module.graphql", Content: sdl})
		}
	}
	return out
}
