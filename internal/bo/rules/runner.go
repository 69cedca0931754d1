package rules

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNoScheduler is reported when an async rule runs without a scheduler
var ErrNoScheduler = errors.New("no scheduler configured for async rules")

// Host is the instance a Runner validates. Every method except Post is called
// on the instance's owning goroutine.
type Host interface {
	// View returns a consistent copy of the current field values
	View() FieldAccessor
	// Generation returns the stale-result guard counter
	Generation() uint64
	// SetBusy marks a property as waiting (or no longer waiting) for an async rule
	SetBusy(property string, busy bool)
	// Validated records that the current value of property has been validated
	Validated(property string)
	// Post hands an async completion to the instance. Called from worker goroutines.
	Post(c Completion)
}

// Completion is the result of an async rule, delivered through Host.Post
type Completion struct {
	Rule       *Rule
	Generation uint64
	Seq        uint64
	Result     Result
	Err        error
}

// Report describes what a rule batch did
type Report struct {
	Property   string
	Executed   []string
	Scheduled  []string
	Properties []string
	Faults     []error
	Changed    bool
}

// Runner executes rule cascades for one instance
type Runner struct {
	graph     *Graph
	broken    *BrokenRules
	host      Host
	scheduler Scheduler
	logger    *zap.Logger
	services  interface{}
	seq       map[string]uint64
	pending   int
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithScheduler sets the queue used for async rules
func WithScheduler(s Scheduler) RunnerOption {
	return func(r *Runner) {
		r.scheduler = s
	}
}

// WithLogger sets the logger for rule faults
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithServices injects a value every rule can read from its Context
func WithServices(services interface{}) RunnerOption {
	return func(r *Runner) {
		r.services = services
	}
}

// NewRunner creates a runner over a frozen graph
func NewRunner(graph *Graph, broken *BrokenRules, host Host, opts ...RunnerOption) *Runner {
	r := &Runner{
		graph:  graph,
		broken: broken,
		host:   host,
		logger: zap.NewNop(),
		seq:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Graph returns the graph the runner executes
func (r *Runner) Graph() *Graph {
	return r.graph
}

// Pending returns the number of async rules whose completion has not been merged
func (r *Runner) Pending() int {
	return r.pending
}

// Abandon forgets outstanding async rules, as when the owner is disposed
func (r *Runner) Abandon() {
	r.pending = 0
}

// Run executes the cascade triggered by a change to property
func (r *Runner) Run(ctx context.Context, property string) Report {
	plan := r.graph.Plan(property)
	rep := r.execute(ctx, plan.Rules)
	rep.Property = property
	rep.Properties = plan.Properties
	return rep
}

// CheckRules executes every rule of the type
func (r *Runner) CheckRules(ctx context.Context) Report {
	rep := r.execute(ctx, r.graph.All())
	for _, p := range r.graph.Info().Properties() {
		rep.Properties = append(rep.Properties, p.Name())
	}
	return rep
}

// execute runs rules in order against a single view taken at batch start
func (r *Runner) execute(ctx context.Context, batch []*Rule) Report {
	var rep Report
	if len(batch) == 0 {
		return rep
	}

	view := r.host.View()
	validated := make(map[string]bool)

	for _, rule := range batch {
		if rule.Async {
			r.schedule(rule, view, &rep)
			continue
		}

		res, err := r.invoke(ctx, rule, view)
		if err != nil {
			if r.fault(rule, err, &rep) {
				rep.Changed = true
			}
		} else if r.broken.Apply(rule, res) {
			rep.Changed = true
		}
		rep.Executed = append(rep.Executed, rule.Name)
		validated[rule.Property] = true
	}

	for _, p := range r.graph.Info().Properties() {
		if validated[p.Name()] {
			r.host.Validated(p.Name())
		}
	}
	return rep
}

// invoke runs a rule function, converting errors and panics to *ExecutionError
func (r *Runner) invoke(ctx context.Context, rule *Rule, view FieldAccessor) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{}
			err = &ExecutionError{Rule: rule.Name, Property: rule.Property, Panic: p}
		}
	}()

	res, err = rule.Fn(NewContext(ctx, rule, view, r.graph.Info(), r.services))
	if err != nil {
		return Result{}, &ExecutionError{Rule: rule.Name, Property: rule.Property, Cause: err}
	}
	return res, nil
}

// fault records a rule execution fault as an Error broken rule
func (r *Runner) fault(rule *Rule, err error, rep *Report) bool {
	r.logger.Warn("rule execution fault",
		zap.String("type", r.graph.Info().Name()),
		zap.String("rule", rule.Name),
		zap.String("property", rule.Property),
		zap.Error(err),
	)
	if rep != nil {
		rep.Faults = append(rep.Faults, err)
	}
	return r.broken.Upsert(rule.Name, rule.Property, Error, fmt.Sprintf("Rule %s failed: %v", rule.Name, err))
}

// schedule submits an async rule and marks its targets busy
func (r *Runner) schedule(rule *Rule, view FieldAccessor, rep *Report) {
	if r.scheduler == nil {
		if r.fault(rule, &ExecutionError{Rule: rule.Name, Property: rule.Property, Cause: ErrNoScheduler}, rep) {
			rep.Changed = true
		}
		return
	}

	r.seq[rule.Name]++
	seq := r.seq[rule.Name]
	gen := r.host.Generation()
	host := r.host

	for _, t := range rule.Targets() {
		host.SetBusy(t, true)
	}
	r.pending++

	task := AsyncTask{
		Name: "rule " + rule.String(),
		Fn: func(ctx context.Context) error {
			res, err := r.invoke(ctx, rule, view)
			host.Post(Completion{
				Rule:       rule,
				Generation: gen,
				Seq:        seq,
				Result:     res,
				Err:        err,
			})
			return err
		},
	}

	if err := r.scheduler.Enqueue(task); err != nil {
		r.pending--
		for _, t := range rule.Targets() {
			host.SetBusy(t, false)
		}
		cause := &ExecutionError{Rule: rule.Name, Property: rule.Property, Cause: fmt.Errorf("schedule: %w", err)}
		if r.fault(rule, cause, rep) {
			rep.Changed = true
		}
		return
	}
	rep.Scheduled = append(rep.Scheduled, rule.Name)
}

// Complete merges an async completion on the owning goroutine. Results from
// an older generation or superseded by a newer submission of the same rule
// are discarded. It reports whether the result was merged.
func (r *Runner) Complete(c Completion) bool {
	if r.pending > 0 {
		r.pending--
	}

	applied := false
	if c.Generation != r.host.Generation() || c.Seq != r.seq[c.Rule.Name] {
		r.logger.Debug("discarding stale async rule result",
			zap.String("type", r.graph.Info().Name()),
			zap.String("rule", c.Rule.Name),
			zap.Uint64("generation", c.Generation),
			zap.Uint64("current_generation", r.host.Generation()),
		)
	} else {
		if c.Err != nil {
			r.fault(c.Rule, c.Err, nil)
		} else {
			r.broken.Apply(c.Rule, c.Result)
		}
		r.host.Validated(c.Rule.Property)
		applied = true
	}

	for _, t := range c.Rule.Targets() {
		r.host.SetBusy(t, false)
	}
	return applied
}
