package undo

import (
	"errors"
	"fmt"
)

// ErrLevelMismatch is the sentinel for inconsistent edit levels in a graph
var ErrLevelMismatch = errors.New("edit level mismatch")

// Participant is an object or collection taking part in graph-wide undo
type Participant interface {
	EditLevel() int
	BeginEdit() error
	CancelEdit() error
	ApplyEdit() error
}

// LevelMismatchError reports a child whose edit level disagrees with its parent.
// It indicates a broken core invariant and is fatal for the graph operation.
type LevelMismatchError struct {
	Parent   string
	Child    string
	Expected int
	Actual   int
}

// Error implements the error interface
func (e *LevelMismatchError) Error() string {
	return fmt.Sprintf("%s: child %s of %s is at edit level %d, expected %d",
		ErrLevelMismatch, e.Child, e.Parent, e.Actual, e.Expected)
}

// Unwrap allows errors.Is(err, ErrLevelMismatch)
func (e *LevelMismatchError) Unwrap() error {
	return ErrLevelMismatch
}

// CheckLevel verifies that a child is at the expected edit level
func CheckLevel(parent, child string, p Participant, expected int) error {
	if actual := p.EditLevel(); actual != expected {
		return &LevelMismatchError{
			Parent:   parent,
			Child:    child,
			Expected: expected,
			Actual:   actual,
		}
	}
	return nil
}

// Sync raises a newly attached child to the parent's edit level so a later
// cancel on the parent can undo the child as well
func Sync(parent, child string, p Participant, level int) error {
	if p.EditLevel() > level {
		return &LevelMismatchError{
			Parent:   parent,
			Child:    child,
			Expected: level,
			Actual:   p.EditLevel(),
		}
	}
	for p.EditLevel() < level {
		if err := p.BeginEdit(); err != nil {
			return fmt.Errorf("sync %s to edit level %d: %w", child, level, err)
		}
	}
	return nil
}
