package rules

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/conduit-lang/bizobj/internal/bo/meta"
)

// ErrGraphFrozen is returned when adding rules to a frozen graph
var ErrGraphFrozen = errors.New("rule graph is frozen")

// Graph is the per-type dependency graph between properties and rules.
// It is read-only once frozen and may then be shared by every instance.
type Graph struct {
	info     *meta.TypeInfo
	rules    []*Rule
	byName   map[string]*Rule
	regIndex map[*Rule]int
	triggers map[string][]*Rule
	ordered  []*Rule
	frozen   bool
}

// NewGraph creates an empty graph for a business type
func NewGraph(info *meta.TypeInfo) *Graph {
	return &Graph{
		info:     info,
		byName:   make(map[string]*Rule),
		regIndex: make(map[*Rule]int),
		triggers: make(map[string][]*Rule),
	}
}

// Info returns the type metadata of the graph
func (g *Graph) Info() *meta.TypeInfo {
	return g.info
}

// Add registers rules in order. Every referenced property must be declared.
func (g *Graph) Add(rules ...*Rule) error {
	if g.frozen {
		return ErrGraphFrozen
	}
	for _, r := range rules {
		if err := g.add(r); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) add(r *Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}
	if r.Name == "" {
		return fmt.Errorf("rule on %s has no name", r.Property)
	}
	if r.Fn == nil {
		return fmt.Errorf("rule %s has no function", r.Name)
	}
	if _, exists := g.byName[r.Name]; exists {
		return fmt.Errorf("rule %s is already registered on %s", r.Name, g.info.Name())
	}

	for _, p := range append(r.Targets(), r.AlsoValidate...) {
		if _, ok := g.info.Lookup(p); !ok {
			return fmt.Errorf("rule %s references unknown property %s.%s", r.Name, g.info.Name(), p)
		}
	}

	g.regIndex[r] = len(g.rules)
	g.rules = append(g.rules, r)
	g.byName[r.Name] = r
	for _, p := range r.Targets() {
		g.triggers[p] = append(g.triggers[p], r)
	}
	return nil
}

// Freeze makes the graph read-only and precomputes the execution order
func (g *Graph) Freeze() {
	if g.frozen {
		return
	}
	g.ordered = append([]*Rule(nil), g.rules...)
	g.sort(g.ordered)
	g.frozen = true
}

// IsFrozen reports whether the graph is read-only
func (g *Graph) IsFrozen() bool {
	return g.frozen
}

// Rule returns a rule by name
func (g *Graph) Rule(name string) (*Rule, bool) {
	r, ok := g.byName[name]
	return r, ok
}

// Rules returns the rules in registration order
func (g *Graph) Rules() []*Rule {
	return append([]*Rule(nil), g.rules...)
}

// All returns every rule in execution order
func (g *Graph) All() []*Rule {
	if g.frozen {
		return append([]*Rule(nil), g.ordered...)
	}
	all := append([]*Rule(nil), g.rules...)
	g.sort(all)
	return all
}

// Triggered returns the rules directly triggered by a property, in execution order
func (g *Graph) Triggered(property string) []*Rule {
	direct := append([]*Rule(nil), g.triggers[property]...)
	g.sort(direct)
	return direct
}

// Plan is the cascade computed for one property change
type Plan struct {
	Property   string
	Rules      []*Rule
	Properties []string
}

// Cascade returns the rules to run when property changes, in execution order
func (g *Graph) Cascade(property string) []*Rule {
	return g.Plan(property).Rules
}

// Plan computes the cascade closure for a property change. Rules are
// de-duplicated by identity so cycles among also-validate edges terminate
// with each rule scheduled once.
func (g *Graph) Plan(property string) Plan {
	scheduled := make(map[*Rule]bool)
	visited := make(map[string]bool)
	var result []*Rule

	queue := []string{property}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if visited[p] {
			continue
		}
		visited[p] = true

		for _, r := range g.triggers[p] {
			if scheduled[r] {
				continue
			}
			scheduled[r] = true
			result = append(result, r)
			queue = append(queue, r.AlsoValidate...)
		}
	}

	g.sort(result)

	touched := make(map[string]bool, len(visited))
	for p := range visited {
		touched[p] = true
	}
	for _, r := range result {
		touched[r.Property] = true
	}

	return Plan{
		Property:   property,
		Rules:      result,
		Properties: g.inDeclarationOrder(touched),
	}
}

// sort orders rules by priority, primary property declaration order, then registration order
func (g *Graph) sort(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		ai, bi := g.declIndex(a.Property), g.declIndex(b.Property)
		if ai != bi {
			return ai < bi
		}
		return g.regIndex[a] < g.regIndex[b]
	})
}

func (g *Graph) declIndex(property string) int {
	if p, ok := g.info.Lookup(property); ok {
		return p.Index()
	}
	return -1
}

func (g *Graph) inDeclarationOrder(set map[string]bool) []string {
	var result []string
	for _, p := range g.info.Properties() {
		if set[p.Name()] {
			result = append(result, p.Name())
		}
	}
	return result
}

// Registry holds one frozen graph per business type, built exactly once
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once  sync.Once
	graph *Graph
	err   error
}

// DefaultRegistry is the process-wide graph registry
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty graph registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
	}
}

// Register builds the graph of a type on first call; later calls return the
// same graph and ignore configure
func (r *Registry) Register(info *meta.TypeInfo, configure func(*Graph) error) (*Graph, error) {
	r.mu.Lock()
	e, ok := r.entries[info.Name()]
	if !ok {
		e = &registryEntry{}
		r.entries[info.Name()] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		g := NewGraph(info)
		if configure != nil {
			if err := configure(g); err != nil {
				e.err = fmt.Errorf("configure rules for %s: %w", info.Name(), err)
				return
			}
		}
		g.Freeze()
		e.graph = g
	})
	return e.graph, e.err
}

// Lookup returns the registered graph of a type
func (r *Registry) Lookup(typeName string) (*Graph, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[typeName]
	if !ok || e.graph == nil {
		return nil, false
	}
	return e.graph, true
}
