package meta

import (
	"fmt"
	"reflect"
	"sync"
)

// TypeInfo is the ordered set of property descriptors of one business type
type TypeInfo struct {
	name   string
	props  []*PropertyInfo
	byName map[string]*PropertyInfo
	locked bool
	mu     sync.RWMutex
}

// NewTypeInfo creates an empty, unlocked TypeInfo
func NewTypeInfo(name string) *TypeInfo {
	return &TypeInfo{
		name:   name,
		byName: make(map[string]*PropertyInfo),
	}
}

// Name returns the business type name
func (t *TypeInfo) Name() string {
	return t.name
}

// Define declares a property on the type. sample is a value of the declared
// type (nil is allowed for untyped properties). Define panics when the type
// is locked or the name is taken, both programming errors at init time.
func (t *TypeInfo) Define(name string, sample interface{}, opts ...Option) *PropertyInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.locked {
		panic(fmt.Sprintf("meta: type %s is locked, cannot define %s", t.name, name))
	}
	if _, exists := t.byName[name]; exists {
		panic(fmt.Sprintf("meta: property %s.%s already defined", t.name, name))
	}

	p := &PropertyInfo{
		typeName: t.name,
		name:     name,
		index:    len(t.props),
		equal:    DeepEqual,
	}
	if sample != nil {
		p.valueType = reflect.TypeOf(sample)
		p.defaultValue = sample
	}
	for _, opt := range opts {
		opt(p)
	}

	t.props = append(t.props, p)
	t.byName[name] = p
	return p
}

// DefineType declares a property whose declared type is given explicitly.
// Use it for interface and pointer types where a sample value is awkward.
func (t *TypeInfo) DefineType(name string, valueType reflect.Type, opts ...Option) *PropertyInfo {
	p := t.Define(name, nil, opts...)
	t.mu.Lock()
	p.valueType = valueType
	t.mu.Unlock()
	return p
}

// Lock freezes the property set
func (t *TypeInfo) Lock() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locked = true
}

// IsLocked reports whether the property set is frozen
func (t *TypeInfo) IsLocked() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.locked
}

// Lookup returns the descriptor for a property name
func (t *TypeInfo) Lookup(name string) (*PropertyInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byName[name]
	return p, ok
}

// Properties returns the descriptors in declaration order
func (t *TypeInfo) Properties() []*PropertyInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	result := make([]*PropertyInfo, len(t.props))
	copy(result, t.props)
	return result
}

// Relationships returns the relationship descriptors in declaration order
func (t *TypeInfo) Relationships() []*PropertyInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var result []*PropertyInfo
	for _, p := range t.props {
		if p.relationship {
			result = append(result, p)
		}
	}
	return result
}

// Count returns the number of declared properties
func (t *TypeInfo) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.props)
}
