package business

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/bizobj/internal/bo/fields"
	"github.com/conduit-lang/bizobj/internal/bo/rules"
	"github.com/conduit-lang/bizobj/internal/bo/undo"
)

// editFrame is the state pushed by BeginEdit
type editFrame struct {
	fields    *fields.Snapshot
	broken    []rules.BrokenRule
	isNew     bool
	isDeleted bool
	markDirty bool
	// detached holds children replaced while the frame was open
	detached []Node
}

// EditLevel returns the number of open edit scopes
func (o *Object) EditLevel() int {
	return o.edits.Level()
}

// BeginEdit opens an edit scope on the object and every child
func (o *Object) BeginEdit() error {
	if o.disposed {
		return ErrDisposed
	}
	o.drain()

	level := o.edits.Level()
	if err := o.checkChildren(level); err != nil {
		return err
	}

	o.edits.Push(&editFrame{
		fields:    o.store.Snapshot(),
		broken:    o.broken.Snapshot(),
		isNew:     o.isNew,
		isDeleted: o.isDeleted,
		markDirty: o.markDirty,
	})
	o.generation++

	for _, child := range o.childNodes() {
		if err := child.BeginEdit(); err != nil {
			return fmt.Errorf("begin edit on child of %s: %w", o.typ.Name(), err)
		}
	}
	return nil
}

// CancelEdit closes the innermost edit scope, restoring values, broken rules
// and child membership. It is a no-op at edit level zero.
func (o *Object) CancelEdit() error {
	if o.disposed {
		return ErrDisposed
	}
	o.drain()

	top, ok := o.edits.Pop()
	if !ok {
		return nil
	}
	frame := top.(*editFrame)

	before := o.store.Values()
	o.store.Restore(frame.fields)
	o.broken.Restore(frame.broken)
	o.isNew = frame.isNew
	o.isDeleted = frame.isDeleted
	o.markDirty = frame.markDirty
	o.generation++
	dropped := o.relink()

	level := o.edits.Level()
	for _, n := range frame.detached {
		target := level
		if o.linked(n) {
			target = level + 1
		}
		if err := settle(n, target, true); err != nil {
			return err
		}
	}
	for _, n := range dropped {
		if err := settle(n, level, true); err != nil {
			return err
		}
	}
	if err := o.checkChildren(level + 1); err != nil {
		return err
	}
	for _, child := range o.childNodes() {
		if err := child.CancelEdit(); err != nil {
			return fmt.Errorf("cancel edit on child of %s: %w", o.typ.Name(), err)
		}
	}

	for _, p := range o.typ.info.Properties() {
		if !p.Equal(before.Get(p.Name()), o.store.Read(p.Name())) {
			o.notifier.PropertyChanged(p.Name())
		}
	}
	return nil
}

// ApplyEdit commits the innermost edit scope. It is a no-op at edit level zero.
func (o *Object) ApplyEdit() error {
	if o.disposed {
		return ErrDisposed
	}
	o.drain()

	top, ok := o.edits.Pop()
	if !ok {
		return nil
	}
	frame := top.(*editFrame)

	level := o.edits.Level()
	for _, n := range frame.detached {
		if err := settle(n, level, false); err != nil {
			return err
		}
	}
	if outer, ok := o.edits.Peek(); ok {
		outer.(*editFrame).detached = append(outer.(*editFrame).detached, frame.detached...)
	}
	if err := o.checkChildren(level + 1); err != nil {
		return err
	}
	for _, child := range o.childNodes() {
		if err := child.ApplyEdit(); err != nil {
			return fmt.Errorf("apply edit on child of %s: %w", o.typ.Name(), err)
		}
	}
	return nil
}

// checkChildren verifies every attached child is at the expected level
func (o *Object) checkChildren(expected int) error {
	for _, p := range o.typ.info.Relationships() {
		l, ok := o.links[p.Name()]
		if !ok {
			continue
		}
		if err := undo.CheckLevel(o.typ.Name(), p.Name(), l.node, expected); err != nil {
			o.logger.Error("edit level mismatch", zap.Error(err))
			return err
		}
	}
	return nil
}

// settle brings a node that left the graph down to level, cancelling or
// applying its open scopes. Disposed nodes are skipped.
func settle(n undo.Participant, level int, cancel bool) error {
	for n.EditLevel() > level {
		var err error
		if cancel {
			err = n.CancelEdit()
		} else {
			err = n.ApplyEdit()
		}
		if errors.Is(err, ErrDisposed) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}
