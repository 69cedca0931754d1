package rules

import (
	"context"
	"fmt"

	"github.com/conduit-lang/bizobj/internal/bo/meta"
)

// FieldAccessor reads property values by name. Rules depend only on this
// capability, never on concrete business types.
type FieldAccessor interface {
	Get(name string) interface{}
}

// Result is the outcome of a single rule execution
type Result struct {
	Broken  bool
	Message string
}

// Pass returns a passing result
func Pass() Result {
	return Result{}
}

// Fail returns a broken result carrying message
func Fail(message string) Result {
	return Result{Broken: true, Message: message}
}

// Failf returns a broken result with a formatted message
func Failf(format string, args ...interface{}) Result {
	return Fail(fmt.Sprintf(format, args...))
}

// RuleFunc evaluates a rule. A returned error is a rule execution fault, not a
// validation failure.
type RuleFunc func(ctx *Context) (Result, error)

// Rule is an immutable validation rule registered once per business type
type Rule struct {
	// Name identifies the rule within its type
	Name string
	// Property is the primary property; broken entries are recorded against it
	Property string
	// Inputs are further properties the rule reads. A change to any of them triggers the rule.
	Inputs []string
	// AlsoValidate lists properties whose rules must run after this rule
	AlsoValidate []string
	// Priority orders execution; lower runs first
	Priority int
	// Severity is recorded when the rule fails
	Severity Severity
	// Async rules run on the background queue
	Async bool
	// Fn evaluates the rule
	Fn RuleFunc
}

// Targets returns the primary property followed by the inputs, without duplicates
func (r *Rule) Targets() []string {
	targets := []string{r.Property}
	seen := map[string]bool{r.Property: true}
	for _, in := range r.Inputs {
		if !seen[in] {
			seen[in] = true
			targets = append(targets, in)
		}
	}
	return targets
}

// String returns the rule identity, e.g. "required(Name)@Name"
func (r *Rule) String() string {
	return r.Name + "@" + r.Property
}

// WithPriority sets the priority and returns the rule
func (r *Rule) WithPriority(priority int) *Rule {
	r.Priority = priority
	return r
}

// WithSeverity sets the failure severity and returns the rule
func (r *Rule) WithSeverity(severity Severity) *Rule {
	r.Severity = severity
	return r
}

// WithInputs adds input properties and returns the rule
func (r *Rule) WithInputs(properties ...string) *Rule {
	r.Inputs = append(r.Inputs, properties...)
	return r
}

// AlsoValidates adds also-validate edges and returns the rule
func (r *Rule) AlsoValidates(properties ...string) *Rule {
	r.AlsoValidate = append(r.AlsoValidate, properties...)
	return r
}

// Named renames the rule and returns it
func (r *Rule) Named(name string) *Rule {
	r.Name = name
	return r
}

// Context is handed to a RuleFunc. It embeds the execution context and
// exposes the batch view of the owning instance.
type Context struct {
	context.Context
	Rule     *Rule
	Fields   FieldAccessor
	Services interface{}
	info     *meta.TypeInfo
}

// NewContext creates a rule context
func NewContext(ctx context.Context, rule *Rule, fields FieldAccessor, info *meta.TypeInfo, services interface{}) *Context {
	return &Context{
		Context:  ctx,
		Rule:     rule,
		Fields:   fields,
		Services: services,
		info:     info,
	}
}

// Field returns the batch value of a property
func (c *Context) Field(name string) interface{} {
	return c.Fields.Get(name)
}

// Primary returns the batch value of the rule's primary property
func (c *Context) Primary() interface{} {
	return c.Fields.Get(c.Rule.Property)
}

// TypeName returns the name of the owning business type
func (c *Context) TypeName() string {
	if c.info == nil {
		return ""
	}
	return c.info.Name()
}

// Label returns the friendly name of a property
func (c *Context) Label(name string) string {
	if c.info != nil {
		if p, ok := c.info.Lookup(name); ok {
			return p.FriendlyName()
		}
	}
	return name
}
