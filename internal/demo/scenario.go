package demo

import (
	"context"
	"fmt"

	"github.com/conduit-lang/bizobj/internal/bo/business"
	"github.com/conduit-lang/bizobj/internal/bo/notify"
	"github.com/conduit-lang/bizobj/internal/viewmodel"
)

// Step is the outcome of one walkthrough step
type Step struct {
	Name  string
	Notes []string
	Err   error
}

func (s *Step) notef(format string, args ...interface{}) {
	s.Notes = append(s.Notes, fmt.Sprintf(format, args...))
}

// Walkthrough drives the sample types through validation, undo, async rules,
// parent/child graphs and a view model save
type Walkthrough struct {
	rt   *business.Runtime
	repo *Repository
	vm   []viewmodel.Option
}

// NewWalkthrough creates a walkthrough on rt saving into repo
func NewWalkthrough(rt *business.Runtime, repo *Repository, opts ...viewmodel.Option) *Walkthrough {
	return &Walkthrough{rt: rt, repo: repo, vm: opts}
}

// Run executes every step. A failing step is recorded and the rest still run.
func (w *Walkthrough) Run(ctx context.Context) []Step {
	steps := []struct {
		name string
		fn   func(context.Context, *Step) error
	}{
		{"validation", w.validation},
		{"undo", w.undo},
		{"async rules", w.async},
		{"object graph", w.graph},
		{"save", w.save},
	}

	results := make([]Step, 0, len(steps))
	for _, s := range steps {
		step := Step{Name: s.name}
		step.Err = s.fn(ctx, &step)
		results = append(results, step)
	}
	return results
}

func (w *Walkthrough) validation(ctx context.Context, s *Step) error {
	p := NewPerson(w.rt)
	defer p.Dispose()
	if err := p.Set("Name", "Ann"); err != nil {
		return err
	}

	for _, age := range []int{-5, 150, 30} {
		if err := p.Set("Age", age); err != nil {
			return err
		}
		worst, broken := p.Worst("Age")
		if !broken {
			s.notef("Age=%d: no broken rules, valid=%t", age, p.IsSelfValid())
			continue
		}
		s.notef("Age=%d: %s %q, valid=%t", age, worst.Severity, worst.Message, p.IsSelfValid())
	}
	return nil
}

func (w *Walkthrough) undo(ctx context.Context, s *Step) error {
	p := NewPerson(w.rt)
	defer p.Dispose()

	if err := p.Set("Name", "Ann"); err != nil {
		return err
	}
	if err := p.Set("Age", 30); err != nil {
		return err
	}
	if err := p.BeginEdit(); err != nil {
		return err
	}
	if err := p.Set("Name", "Bob"); err != nil {
		return err
	}
	if err := p.BeginEdit(); err != nil {
		return err
	}
	if err := p.Set("Name", ""); err != nil {
		return err
	}
	s.notef("level %d: Name=%q valid=%t", p.EditLevel(), p.Get("Name"), p.IsValid())

	if err := p.CancelEdit(); err != nil {
		return err
	}
	s.notef("cancel: level %d Name=%q valid=%t", p.EditLevel(), p.Get("Name"), p.IsValid())

	if err := p.ApplyEdit(); err != nil {
		return err
	}
	s.notef("apply: level %d Name=%q", p.EditLevel(), p.Get("Name"))
	return nil
}

func (w *Walkthrough) async(ctx context.Context, s *Step) error {
	p := NewPerson(w.rt)
	defer p.Dispose()

	if err := p.Set("Email", "taken@example.com"); err != nil {
		return err
	}
	s.notef("after write: busy=%t savable=%t", p.IsBusy(), p.IsSavable())

	if err := p.WaitIdle(ctx); err != nil {
		return err
	}
	if text := p.ErrorText(); text != "" {
		s.notef("after wait: %s", text)
	} else {
		s.notef("after wait: no broken rules")
	}
	return nil
}

func (w *Walkthrough) graph(ctx context.Context, s *Step) error {
	order, err := NewOrder(w.rt)
	if err != nil {
		return err
	}
	defer order.Dispose()
	if err := order.Set("Number", "ORD-1"); err != nil {
		return err
	}
	customer, err := order.Child("Customer")
	if err != nil {
		return err
	}
	if err := customer.Set("Name", "Bea"); err != nil {
		return err
	}
	if err := customer.Set("Age", 35); err != nil {
		return err
	}
	if _, err := AddLine(order, "apple", 3, 0.5); err != nil {
		return err
	}
	if _, err := AddLine(order, "pear", 2, 0.75); err != nil {
		return err
	}
	lines, err := order.Children("Lines")
	if err != nil {
		return err
	}
	order.MarkOld()
	s.notef("order with %d lines, total %.2f", lines.Len(), Total(order))

	var paths []string
	sub := order.Subscribe(func(e notify.Event) {
		if e.Kind == notify.ChildChanged {
			paths = append(paths, e.PathString())
		}
	})
	defer order.Unsubscribe(sub)

	if err := order.BeginEdit(); err != nil {
		return err
	}
	first, err := lines.At(0)
	if err != nil {
		return err
	}
	if err := first.Set("Quantity", 0); err != nil {
		return err
	}
	s.notef("changed %v, errors: %s", paths, order.ErrorText())

	if err := lines.RemoveAt(1); err != nil {
		return err
	}
	s.notef("removed a line: %d active, %d deleted, dirty=%t", lines.Len(), len(lines.DeletedItems()), order.IsDirty())

	if err := order.CancelEdit(); err != nil {
		return err
	}
	s.notef("cancel: %d lines, total %.2f, valid=%t dirty=%t", lines.Len(), Total(order), order.IsValid(), order.IsDirty())
	return nil
}

func (w *Walkthrough) save(ctx context.Context, s *Step) error {
	order, err := NewOrder(w.rt)
	if err != nil {
		return err
	}
	defer order.Dispose()

	opts := append([]viewmodel.Option{viewmodel.WithSaver(w.repo), viewmodel.ManageLifetime()}, w.vm...)
	vm, err := viewmodel.New(order, opts...)
	if err != nil {
		return err
	}
	defer vm.Close()

	if err := vm.Save(ctx); err != nil {
		s.notef("first attempt: %v (%s)", err, vm.ErrorText())
	}

	if err := order.Set("Number", "ORD-2"); err != nil {
		return err
	}
	customer, err := order.Child("Customer")
	if err != nil {
		return err
	}
	if err := customer.Set("Name", "Ann"); err != nil {
		return err
	}
	if err := customer.Set("Age", 41); err != nil {
		return err
	}
	if _, err := AddLine(order, "plum", 4, 0.25); err != nil {
		return err
	}

	if err := vm.Save(ctx); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	s.notef("saved: new=%t dirty=%t records=%d", order.IsNew(), order.IsDirty(), w.repo.Len())
	return nil
}
