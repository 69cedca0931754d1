// Package fields provides the per-instance property storage of a business object.
// It tracks current values, per-property dirty/loaded flags, checksums of the
// last validated value and busy counters for outstanding async rules.
package fields

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/conduit-lang/bizobj/internal/bo/meta"
)

// Flags is the per-property bookkeeping kept alongside each value
type Flags struct {
	Dirty     bool
	Loaded    bool
	Checksum  uint64
	Validated bool
}

// Store holds the property values of one business object instance.
// It is not safe for concurrent use; an instance has a single owner.
type Store struct {
	info   *meta.TypeInfo
	values map[string]interface{}
	flags  map[string]Flags
	busy   map[string]int
}

// NewStore creates a store with every declared property set to its default
func NewStore(info *meta.TypeInfo) *Store {
	s := &Store{
		info:   info,
		values: make(map[string]interface{}, info.Count()),
		flags:  make(map[string]Flags, info.Count()),
		busy:   make(map[string]int),
	}
	for _, p := range info.Properties() {
		s.values[p.Name()] = copyValue(p, p.Default())
		s.flags[p.Name()] = Flags{}
	}
	return s
}

// Info returns the type metadata backing the store
func (s *Store) Info() *meta.TypeInfo {
	return s.info
}

// Read returns the current value, or the registered default if never set
func (s *Store) Read(name string) interface{} {
	if v, ok := s.values[name]; ok {
		return v
	}
	if p, ok := s.info.Lookup(name); ok {
		return p.Default()
	}
	return nil
}

// Write stores value and marks the property dirty.
// It returns false without mutating anything when value equals the current value.
func (s *Store) Write(name string, value interface{}) bool {
	p, ok := s.info.Lookup(name)
	if !ok {
		return false
	}
	if p.Equal(s.values[name], value) {
		return false
	}

	s.values[name] = value
	f := s.flags[name]
	f.Dirty = true
	f.Loaded = true
	s.flags[name] = f
	return true
}

// Load stores value without marking the property dirty
func (s *Store) Load(name string, value interface{}) bool {
	p, ok := s.info.Lookup(name)
	if !ok {
		return false
	}
	changed := !p.Equal(s.values[name], value)

	s.values[name] = value
	f := s.flags[name]
	f.Loaded = true
	s.flags[name] = f
	return changed
}

// Flags returns the bookkeeping flags of a property
func (s *Store) Flags(name string) Flags {
	return s.flags[name]
}

// IsDirty reports whether a property was written since it was last marked clean
func (s *Store) IsDirty(name string) bool {
	return s.flags[name].Dirty
}

// IsLoaded reports whether a property was ever written or loaded
func (s *Store) IsLoaded(name string) bool {
	return s.flags[name].Loaded
}

// AnyDirty reports whether any property is dirty
func (s *Store) AnyDirty() bool {
	for _, f := range s.flags {
		if f.Dirty {
			return true
		}
	}
	return false
}

// DirtyProperties returns the dirty property names in declaration order
func (s *Store) DirtyProperties() []string {
	var result []string
	for _, p := range s.info.Properties() {
		if s.flags[p.Name()].Dirty {
			result = append(result, p.Name())
		}
	}
	return result
}

// MarkClean clears the dirty flag of one property
func (s *Store) MarkClean(name string) {
	f, ok := s.flags[name]
	if !ok {
		return
	}
	f.Dirty = false
	s.flags[name] = f
}

// MarkAllClean clears every dirty flag, typically after a successful save
func (s *Store) MarkAllClean() {
	for name, f := range s.flags {
		f.Dirty = false
		s.flags[name] = f
	}
}

// MarkValidated records the checksum of the current value as validated
func (s *Store) MarkValidated(name string) {
	f, ok := s.flags[name]
	if !ok {
		return
	}
	f.Checksum = Checksum(s.values[name])
	f.Validated = true
	s.flags[name] = f
}

// IsValidated reports whether the current value is the last validated value
func (s *Store) IsValidated(name string) bool {
	f, ok := s.flags[name]
	if !ok || !f.Validated {
		return false
	}
	return f.Checksum == Checksum(s.values[name])
}

// AddBusy adjusts the outstanding async rule count of a property.
// It returns true when the property transitions between idle and busy.
func (s *Store) AddBusy(name string, delta int) bool {
	before := s.busy[name]
	after := before + delta
	if after < 0 {
		after = 0
	}
	if after == 0 {
		delete(s.busy, name)
	} else {
		s.busy[name] = after
	}
	return (before == 0) != (after == 0)
}

// ClearBusy drops every busy counter
func (s *Store) ClearBusy() {
	s.busy = make(map[string]int)
}

// IsBusy reports whether a property has outstanding async rules
func (s *Store) IsBusy(name string) bool {
	return s.busy[name] > 0
}

// AnyBusy reports whether any property has outstanding async rules
func (s *Store) AnyBusy() bool {
	return len(s.busy) > 0
}

// BusyProperties returns the busy property names sorted alphabetically
func (s *Store) BusyProperties() []string {
	names := make([]string, 0, len(s.busy))
	for name := range s.busy {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns a consistent copy of all current values
func (s *Store) Values() Values {
	result := make(Values, len(s.values))
	for _, p := range s.info.Properties() {
		result[p.Name()] = copyValue(p, s.values[p.Name()])
	}
	return result
}

// Checksum hashes a value for change detection
func Checksum(value interface{}) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%#v", value))
}
