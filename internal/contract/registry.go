package contract

import (
	"fmt"
	"sync"
)

// Registry is an ordered, name-keyed set of contracts. It is passed
// explicitly to the components that need contract lookups.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]*Contract
}

// NewRegistry returns a registry holding cs in order.
func NewRegistry(cs ...*Contract) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Contract, len(cs))}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends c. Registering a name twice is an error.
func (r *Registry) Register(c *Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[c.ControllerName]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, c.ControllerName)
	}
	r.order = append(r.order, c.ControllerName)
	r.byName[c.ControllerName] = c
	return nil
}

// Put inserts c, replacing a registered contract of the same name in place.
func (r *Registry) Put(c *Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[c.ControllerName]; !ok {
		r.order = append(r.order, c.ControllerName)
	}
	r.byName[c.ControllerName] = c
}

// Remove deletes the named contract and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return false
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Replace swaps the whole content for cs.
func (r *Registry) Replace(cs []*Contract) error {
	next, err := NewRegistry(cs...)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order, r.byName = next.order, next.byName
	return nil
}

// Get returns the named contract.
func (r *Registry) Get(name string) (*Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// All returns the contracts in registration order.
func (r *Registry) All() []*Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Contract, len(r.order))
	for i, n := range r.order {
		out[i] = r.byName[n]
	}
	return out
}

// Len returns the number of registered contracts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
