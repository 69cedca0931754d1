package fields

// Snapshot is a value copy of a store taken at a BeginEdit boundary.
// Busy counters are runtime state and are not captured.
type Snapshot struct {
	values map[string]interface{}
	flags  map[string]Flags
}

// Snapshot captures the current values and flags
func (s *Store) Snapshot() *Snapshot {
	snap := &Snapshot{
		values: make(map[string]interface{}, len(s.values)),
		flags:  make(map[string]Flags, len(s.flags)),
	}
	for _, p := range s.info.Properties() {
		snap.values[p.Name()] = copyValue(p, s.values[p.Name()])
	}
	for name, f := range s.flags {
		snap.flags[name] = f
	}
	return snap
}

// Restore replaces the current values and flags with a snapshot
func (s *Store) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	for _, p := range s.info.Properties() {
		s.values[p.Name()] = copyValue(p, snap.values[p.Name()])
	}
	for name, f := range snap.flags {
		s.flags[name] = f
	}
}

// Value returns the captured value of a property
func (snap *Snapshot) Value(name string) interface{} {
	return snap.values[name]
}
