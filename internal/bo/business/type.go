package business

import (
	"fmt"

	"github.com/conduit-lang/bizobj/internal/bo/meta"
	"github.com/conduit-lang/bizobj/internal/bo/rules"
)

// Type is a business type: its locked property metadata and frozen rule graph
type Type struct {
	info  *meta.TypeInfo
	graph *rules.Graph
}

// NewType locks info and builds its rule graph without registering the type
// in the process-wide registries
func NewType(info *meta.TypeInfo, configure func(*rules.Graph) error) (*Type, error) {
	info.Lock()
	g := rules.NewGraph(info)
	if configure != nil {
		if err := configure(g); err != nil {
			return nil, fmt.Errorf("configure rules for %s: %w", info.Name(), err)
		}
	}
	g.Freeze()
	return &Type{info: info, graph: g}, nil
}

// DefineType registers info in meta.Default and builds its graph once in
// rules.DefaultRegistry
func DefineType(info *meta.TypeInfo, configure func(*rules.Graph) error) (*Type, error) {
	if err := meta.Default.Register(info); err != nil {
		return nil, err
	}
	g, err := rules.DefaultRegistry.Register(info, configure)
	if err != nil {
		return nil, err
	}
	return &Type{info: info, graph: g}, nil
}

// MustDefineType is like DefineType but panics on error. It is meant for
// package-level type declarations.
func MustDefineType(info *meta.TypeInfo, configure func(*rules.Graph) error) *Type {
	t, err := DefineType(info, configure)
	if err != nil {
		panic(err)
	}
	return t
}

// LookupType returns a type registered with DefineType
func LookupType(name string) (*Type, bool) {
	info, ok := meta.Default.Lookup(name)
	if !ok {
		return nil, false
	}
	g, ok := rules.DefaultRegistry.Lookup(name)
	if !ok {
		return nil, false
	}
	return &Type{info: info, graph: g}, true
}

// Name returns the type name
func (t *Type) Name() string {
	return t.info.Name()
}

// Info returns the property metadata
func (t *Type) Info() *meta.TypeInfo {
	return t.info
}

// Graph returns the rule graph
func (t *Type) Graph() *rules.Graph {
	return t.graph
}

// DefineChild declares a relationship property holding a child object or list
func DefineChild(info *meta.TypeInfo, name string, opts ...meta.Option) *meta.PropertyInfo {
	return info.DefineType(name, nodeType, append(opts, meta.AsRelationship())...)
}
