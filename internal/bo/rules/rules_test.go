package rules

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/bizobj/internal/bo/meta"
)

type mapView map[string]interface{}

func (m mapView) Get(name string) interface{} { return m[name] }

// fakeHost is a minimal single-owner host. Completions land on a channel.
type fakeHost struct {
	values      mapView
	generation  uint64
	busy        map[string]int
	validated   map[string]int
	completions chan Completion
}

func newFakeHost(values mapView) *fakeHost {
	return &fakeHost{
		values:      values,
		busy:        make(map[string]int),
		validated:   make(map[string]int),
		completions: make(chan Completion, 16),
	}
}

func (h *fakeHost) View() FieldAccessor {
	cp := make(mapView, len(h.values))
	for k, v := range h.values {
		cp[k] = v
	}
	return cp
}
func (h *fakeHost) Generation() uint64 { return h.generation }
func (h *fakeHost) SetBusy(p string, busy bool) {
	if busy {
		h.busy[p]++
	} else {
		h.busy[p]--
	}
}
func (h *fakeHost) Validated(p string) { h.validated[p]++ }
func (h *fakeHost) Post(c Completion)  { h.completions <- c }
func (h *fakeHost) await(t *testing.T) Completion {
	t.Helper()
	select {
	case c := <-h.completions:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("async rule did not complete")
		return Completion{}
	}
}

func personInfo() *meta.TypeInfo {
	info := meta.NewTypeInfo("Person")
	info.Define("Name", "")
	info.Define("Age", 0)
	info.Define("Email", "")
	info.Define("Retired", false)
	return info
}

func ageGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph(personInfo())
	require.NoError(t, g.Add(
		Check("MustBePositive", "Age", Error, "Age must be positive", func(v interface{}) bool {
			return v.(int) > 0
		}),
		Check("WarnIfOver100", "Age", Warning, "Age is unusually high", func(v interface{}) bool {
			return v.(int) <= 100
		}),
	))
	g.Freeze()
	return g
}

func TestSeverity(t *testing.T) {
	assert.True(t, Error > Warning)
	assert.True(t, Warning > Information)
	assert.Equal(t, "warning", Warning.String())

	s, err := ParseSeverity("Error")
	require.NoError(t, err)
	assert.Equal(t, Error, s)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestGraph_AddValidation(t *testing.T) {
	g := NewGraph(personInfo())

	assert.Error(t, g.Add(Required("Missing")), "unknown property")
	assert.Error(t, g.Add(&Rule{Name: "nofn", Property: "Age"}), "missing function")
	assert.Error(t, g.Add(Required("Name").Named("")), "missing name")
	assert.Error(t, g.Add(Required("Name").AlsoValidates("Nope")), "unknown also-validate target")

	require.NoError(t, g.Add(Required("Name")))
	assert.Error(t, g.Add(Required("Name")), "duplicate name")

	g.Freeze()
	assert.ErrorIs(t, g.Add(Email("Email")), ErrGraphFrozen)
}

func TestGraph_ExecutionOrder(t *testing.T) {
	g := NewGraph(personInfo())
	noop := func(*Context) (Result, error) { return Pass(), nil }
	require.NoError(t, g.Add(
		New("email-b", "Email", noop),
		New("name-a", "Name", noop),
		New("email-a", "Email", noop).WithPriority(-1),
		New("age-a", "Age", noop),
		New("name-b", "Name", noop),
	))
	g.Freeze()

	var names []string
	for _, r := range g.All() {
		names = append(names, r.Name)
	}
	// priority first, then declaration order of the primary property, then registration order
	assert.Equal(t, []string{"email-a", "name-a", "name-b", "age-a", "email-b"}, names)
}

func TestGraph_CascadeClosure(t *testing.T) {
	g := NewGraph(personInfo())
	noop := func(*Context) (Result, error) { return Pass(), nil }
	require.NoError(t, g.Add(
		New("age", "Age", noop).AlsoValidates("Retired"),
		New("retired", "Retired", noop).AlsoValidates("Name"),
		New("name", "Name", noop),
		New("email", "Email", noop),
	))
	g.Freeze()

	plan := g.Plan("Age")
	var names []string
	for _, r := range plan.Rules {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"name", "age", "retired"}, names)
	assert.Equal(t, []string{"Name", "Age", "Retired"}, plan.Properties)
}

func TestGraph_CascadeCycleTerminates(t *testing.T) {
	g := NewGraph(personInfo())
	var mu sync.Mutex
	calls := map[string]int{}
	counting := func(ctx *Context) (Result, error) {
		mu.Lock()
		calls[ctx.Rule.Name]++
		mu.Unlock()
		return Pass(), nil
	}
	require.NoError(t, g.Add(
		New("a", "Name", counting).AlsoValidates("Email"),
		New("b", "Email", counting).AlsoValidates("Name"),
	))
	g.Freeze()

	assert.Len(t, g.Cascade("Name"), 2)

	host := newFakeHost(mapView{"Name": "x", "Email": "y"})
	runner := NewRunner(g, NewBrokenRules(), host)
	rep := runner.Run(context.Background(), "Name")

	assert.Len(t, rep.Executed, 2)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, calls)
}

func TestGraph_Dependency(t *testing.T) {
	g := NewGraph(personInfo())
	require.NoError(t, g.Add(
		Dependency("Age", "Retired"),
		Check("retired-age", "Retired", Error, "too young to retire", func(interface{}) bool { return true }),
	))
	g.Freeze()

	var names []string
	for _, r := range g.Cascade("Age") {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"dependency(Age)", "retired-age"}, names)
}

func TestRegistry_BuildsOnce(t *testing.T) {
	reg := NewRegistry()
	info := personInfo()
	calls := 0
	configure := func(g *Graph) error {
		calls++
		return g.Add(Required("Name"))
	}

	g1, err := reg.Register(info, configure)
	require.NoError(t, err)
	g2, err := reg.Register(info, configure)
	require.NoError(t, err)

	assert.Same(t, g1, g2)
	assert.Equal(t, 1, calls)
	assert.True(t, g1.IsFrozen())

	got, ok := reg.Lookup("Person")
	require.True(t, ok)
	assert.Same(t, g1, got)
}

func TestRegistry_ConfigureError(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register(personInfo(), func(g *Graph) error {
		return g.Add(Required("Nope"))
	})
	assert.Error(t, err)

	_, ok := reg.Lookup("Person")
	assert.False(t, ok)
}

func TestBrokenRules_AgeScenario(t *testing.T) {
	g := ageGraph(t)
	host := newFakeHost(mapView{"Age": -5})
	broken := NewBrokenRules()
	runner := NewRunner(g, broken, host)

	runner.Run(context.Background(), "Age")
	require.Equal(t, 1, broken.Len())
	assert.Equal(t, 1, broken.ErrorCount())
	assert.False(t, broken.IsValid())

	host.values["Age"] = 150
	runner.Run(context.Background(), "Age")
	require.Equal(t, 1, broken.Len())
	assert.Equal(t, 1, broken.WarningCount())
	assert.True(t, broken.IsValid())
	worst, ok := broken.Worst("Age")
	require.True(t, ok)
	assert.Equal(t, Warning, worst.Severity)

	host.values["Age"] = 30
	runner.Run(context.Background(), "Age")
	assert.Equal(t, 0, broken.Len())
	assert.True(t, broken.IsValid())
	assert.Equal(t, 3, host.validated["Age"])
}

func TestBrokenRules_UpsertRemove(t *testing.T) {
	b := NewBrokenRules()

	assert.True(t, b.Upsert("r1", "Name", Warning, "w"))
	assert.False(t, b.Upsert("r1", "Name", Warning, "w"), "identical upsert is not a change")
	assert.True(t, b.Upsert("r2", "Name", Error, "e"))
	assert.True(t, b.Upsert("r1", "Name", Error, "e1"), "replace in place")

	all := b.All()
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].Rule, "replacement keeps insertion position")

	worst, ok := b.Worst("Name")
	require.True(t, ok)
	assert.Equal(t, "r1", worst.Rule, "ties go to the earliest insertion")

	assert.True(t, b.Remove("r1", "Name"))
	assert.False(t, b.Remove("r1", "Name"))
	got, ok := b.Get("r2", "Name")
	require.True(t, ok)
	assert.Equal(t, "e", got.Message)

	_, ok = b.Worst("Age")
	assert.False(t, ok)
}

func TestBrokenRules_SnapshotRestore(t *testing.T) {
	b := NewBrokenRules()
	b.Upsert("r1", "Name", Error, "required")
	snap := b.Snapshot()

	b.Upsert("r2", "Age", Error, "negative")
	b.Remove("r1", "Name")

	b.Restore(snap)
	assert.Equal(t, snap, b.All())
	assert.False(t, b.IsPropertyValid("Name"))
	assert.True(t, b.IsPropertyValid("Age"))
}

func TestBrokenRules_Err(t *testing.T) {
	b := NewBrokenRules()
	assert.NoError(t, b.Err())

	b.Upsert("w", "Age", Warning, "old")
	assert.NoError(t, b.Err(), "warnings do not invalidate")

	b.Upsert("r", "Name", Error, "Name is required")
	err := b.Err()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Count())
	assert.Equal(t, "validation failed: Name: Name is required", err.Error())
	assert.Equal(t, "Name is required", b.String())

	first, ok := b.First(Warning)
	require.True(t, ok)
	assert.Equal(t, "old", first.Message)
}

func TestRunner_Idempotent(t *testing.T) {
	g := ageGraph(t)
	host := newFakeHost(mapView{"Age": 150})
	b := NewBrokenRules()
	runner := NewRunner(g, b, host)

	runner.CheckRules(context.Background())
	first := b.All()
	rep := runner.CheckRules(context.Background())

	assert.Equal(t, first, b.All())
	assert.False(t, rep.Changed)
}

func TestRunner_BatchUsesConsistentView(t *testing.T) {
	info := personInfo()
	g := NewGraph(info)
	host := newFakeHost(mapView{"Name": "before", "Age": 1})
	var seen []interface{}
	require.NoError(t, g.Add(
		New("mutator", "Age", func(ctx *Context) (Result, error) {
			host.values["Name"] = "after"
			return Pass(), nil
		}).WithInputs("Name"),
		New("reader", "Email", func(ctx *Context) (Result, error) {
			seen = append(seen, ctx.Field("Name"))
			return Pass(), nil
		}).WithInputs("Name"),
	))
	g.Freeze()

	NewRunner(g, NewBrokenRules(), host).Run(context.Background(), "Name")
	assert.Equal(t, []interface{}{"before"}, seen)
}

func TestRunner_FaultsBecomeErrors(t *testing.T) {
	g := NewGraph(personInfo())
	var ranAfter bool
	require.NoError(t, g.Add(
		New("errs", "Name", func(*Context) (Result, error) {
			return Result{}, errors.New("db down")
		}).WithSeverity(Warning),
		New("panics", "Name", func(*Context) (Result, error) {
			panic("bad rule")
		}),
		New("after", "Name", func(*Context) (Result, error) {
			ranAfter = true
			return Pass(), nil
		}),
	))
	g.Freeze()

	b := NewBrokenRules()
	rep := NewRunner(g, b, newFakeHost(mapView{})).Run(context.Background(), "Name")

	assert.True(t, ranAfter, "a failing rule does not abort the batch")
	assert.Len(t, rep.Faults, 2)
	assert.Equal(t, 2, b.ErrorCount(), "faults are recorded as errors regardless of rule severity")
	for _, f := range rep.Faults {
		assert.ErrorIs(t, f, ErrRuleExecution)
	}

	e, ok := b.Get("errs", "Name")
	require.True(t, ok)
	assert.Contains(t, e.Message, "errs")
	assert.Contains(t, e.Message, "db down")
}

func TestRunner_BuiltinRules(t *testing.T) {
	g := NewGraph(personInfo())
	require.NoError(t, g.Add(
		Required("Name"),
		MaxLength("Name", 5),
		MinLength("Name", 2),
		Pattern("Name", regexp.MustCompile(`^[A-Z]`)),
		MinValue("Age", 0),
		MaxValue("Age", 130),
		Email("Email"),
	))
	g.Freeze()

	tests := []struct {
		name   string
		values mapView
		want   []string
	}{
		{
			name:   "all valid",
			values: mapView{"Name": "Ada", "Age": 36, "Email": "ada@example.com"},
			want:   nil,
		},
		{
			name:   "empty name",
			values: mapView{"Name": "", "Age": 36, "Email": ""},
			want:   []string{"Name is required", "Name must be at least 2 characters"},
		},
		{
			name:   "bad values",
			values: mapView{"Name": "alexandra", "Age": 200, "Email": "nope"},
			want: []string{
				"Name must be at most 5 characters",
				"Name does not match required pattern",
				"Age must be at most 130",
				"Email must be a valid email address",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBrokenRules()
			NewRunner(g, b, newFakeHost(tt.values)).CheckRules(context.Background())

			var got []string
			for _, e := range b.All() {
				got = append(got, e.Message)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunner_AsyncRule(t *testing.T) {
	g := NewGraph(personInfo())
	release := make(chan struct{})
	require.NoError(t, g.Add(
		NewAsync("unique-email", "Email", func(ctx *Context) (Result, error) {
			<-release
			if ctx.Primary() == "taken@example.com" {
				return Fail("Email is already registered"), nil
			}
			return Pass(), nil
		}),
	))
	g.Freeze()

	queue := NewAsyncQueue(2, 10, nil)
	queue.Start()
	defer queue.Shutdown()

	host := newFakeHost(mapView{"Email": "taken@example.com"})
	b := NewBrokenRules()
	runner := NewRunner(g, b, host, WithScheduler(queue))

	rep := runner.Run(context.Background(), "Email")
	assert.Equal(t, []string{"unique-email"}, rep.Scheduled)
	assert.Equal(t, 1, host.busy["Email"])
	assert.Equal(t, 1, runner.Pending())
	assert.Equal(t, 0, b.Len(), "async results are not merged synchronously")

	close(release)
	c := host.await(t)
	assert.True(t, runner.Complete(c))

	assert.Equal(t, 0, host.busy["Email"])
	assert.Equal(t, 0, runner.Pending())
	require.Equal(t, 1, b.Len())
	assert.Equal(t, "Email is already registered", b.All()[0].Message)
}

func TestRunner_AsyncStaleResults(t *testing.T) {
	g := NewGraph(personInfo())
	require.NoError(t, g.Add(
		NewAsync("remote", "Name", func(ctx *Context) (Result, error) {
			return Fail("remote says no"), nil
		}),
	))
	g.Freeze()

	queue := NewAsyncQueue(1, 10, nil)
	queue.Start()
	defer queue.Shutdown()

	t.Run("generation advanced", func(t *testing.T) {
		host := newFakeHost(mapView{"Name": "x"})
		b := NewBrokenRules()
		runner := NewRunner(g, b, host, WithScheduler(queue))

		runner.Run(context.Background(), "Name")
		c := host.await(t)
		host.generation++

		assert.False(t, runner.Complete(c))
		assert.Equal(t, 0, b.Len())
		assert.Equal(t, 0, host.busy["Name"], "busy clears even for discarded results")
	})

	t.Run("superseded submission", func(t *testing.T) {
		host := newFakeHost(mapView{"Name": "x"})
		b := NewBrokenRules()
		runner := NewRunner(g, b, host, WithScheduler(queue))

		runner.Run(context.Background(), "Name")
		first := host.await(t)
		runner.Run(context.Background(), "Name")
		second := host.await(t)

		assert.False(t, runner.Complete(first))
		assert.True(t, runner.Complete(second))
		assert.Equal(t, 1, b.Len())
	})
}

func TestRunner_AsyncWithoutScheduler(t *testing.T) {
	g := NewGraph(personInfo())
	require.NoError(t, g.Add(NewAsync("remote", "Name", func(*Context) (Result, error) { return Pass(), nil })))
	g.Freeze()

	host := newFakeHost(mapView{})
	b := NewBrokenRules()
	rep := NewRunner(g, b, host).Run(context.Background(), "Name")

	require.Len(t, rep.Faults, 1)
	assert.ErrorIs(t, rep.Faults[0], ErrNoScheduler)
	assert.Equal(t, 1, b.ErrorCount())
	assert.Equal(t, 0, host.busy["Name"])
}

type fullScheduler struct{}

func (fullScheduler) Enqueue(AsyncTask) error { return ErrQueueFull }

func TestRunner_AsyncQueueFull(t *testing.T) {
	g := NewGraph(personInfo())
	require.NoError(t, g.Add(NewAsync("remote", "Name", func(*Context) (Result, error) { return Pass(), nil })))
	g.Freeze()

	host := newFakeHost(mapView{})
	b := NewBrokenRules()
	runner := NewRunner(g, b, host, WithScheduler(fullScheduler{}))
	rep := runner.Run(context.Background(), "Name")

	require.Len(t, rep.Faults, 1)
	assert.ErrorIs(t, rep.Faults[0], ErrQueueFull)
	assert.Empty(t, rep.Scheduled)
	assert.Equal(t, 1, b.ErrorCount())
	assert.Equal(t, 0, host.busy["Name"])
	assert.Equal(t, 0, runner.Pending())
}

func TestRunner_Abandon(t *testing.T) {
	g := NewGraph(personInfo())
	require.NoError(t, g.Add(NewAsync("remote", "Name", func(*Context) (Result, error) { return Pass(), nil })))
	g.Freeze()

	queue := NewAsyncQueue(1, 10, nil)
	queue.Start()
	defer queue.Shutdown()

	host := newFakeHost(mapView{"Name": "x"})
	runner := NewRunner(g, NewBrokenRules(), host, WithScheduler(queue))
	runner.Run(context.Background(), "Name")
	assert.Equal(t, 1, runner.Pending())

	runner.Abandon()
	assert.Equal(t, 0, runner.Pending())

	runner.Complete(host.await(t))
	assert.Equal(t, 0, runner.Pending(), "a late completion does not go negative")
}

func TestRunner_Services(t *testing.T) {
	g := NewGraph(personInfo())
	var got interface{}
	require.NoError(t, g.Add(New("svc", "Name", func(ctx *Context) (Result, error) {
		got = ctx.Services
		assert.Equal(t, "Person", ctx.TypeName())
		assert.Equal(t, "Name", ctx.Label("Name"))
		return Pass(), nil
	})))
	g.Freeze()

	NewRunner(g, NewBrokenRules(), newFakeHost(mapView{}), WithServices("lookup")).Run(context.Background(), "Name")
	assert.Equal(t, "lookup", got)
}
