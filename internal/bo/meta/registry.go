package meta

import (
	"fmt"
	"sort"
	"sync"
)

// Default is the process-wide registry
var Default = NewRegistry()

// Registry maps business type names to their locked TypeInfo
type Registry struct {
	types map[string]*TypeInfo
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*TypeInfo),
	}
}

// Register locks and stores a TypeInfo. Each name can be registered once.
func (r *Registry) Register(info *TypeInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[info.Name()]; exists {
		return fmt.Errorf("type %s is already registered", info.Name())
	}

	info.Lock()
	r.types[info.Name()] = info
	return nil
}

// Lookup retrieves a registered TypeInfo by name
func (r *Registry) Lookup(name string) (*TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.types[name]
	return info, ok
}

// Names returns the registered type names sorted alphabetically
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered types
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}
