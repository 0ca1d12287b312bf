package drivers

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicateDriver = errors.New("driver already registered")
	ErrUnknownDriver   = errors.New("unknown driver")
)

// Registry maps driver names to drivers, keeping registration order.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Driver
	ordered []Driver
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Driver)}
}

// Register adds d. Names must be unique and non-empty.
func (r *Registry) Register(d Driver) error {
	name := d.Name()
	if name == "" {
		return errors.New("driver name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDriver, name)
	}
	r.byName[name] = d
	r.ordered = append(r.ordered, d)
	return nil
}

// Get looks a driver up by name.
func (r *Registry) Get(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, name)
	}
	return d, nil
}

// Drivers returns all drivers in registration order.
func (r *Registry) Drivers() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Driver(nil), r.ordered...)
}

// Names returns driver names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.ordered))
	for i, d := range r.ordered {
		names[i] = d.Name()
	}
	return names
}
