// Package notify fans out change notifications of a business object to its
// observers (UI bindings, parent objects).
package notify

import (
	"fmt"
	"strings"
)

// Kind identifies the event family
type Kind int

const (
	// PropertyChanged fires after a property value or its validation state changed
	PropertyChanged Kind = iota
	// ChildChanged fires on a parent when something inside an owned child changed
	ChildChanged
	// BusyChanged fires when a property starts or stops waiting for async rules
	BusyChanged
)

// String returns the string representation of the event kind
func (k Kind) String() string {
	switch k {
	case PropertyChanged:
		return "property_changed"
	case ChildChanged:
		return "child_changed"
	case BusyChanged:
		return "busy_changed"
	default:
		return "unknown"
	}
}

// ChangeKind describes what happened inside a child
type ChangeKind int

const (
	// ChildPropertyChanged means a property of a child object changed
	ChildPropertyChanged ChangeKind = iota
	// ChildBusyChanged means a child property started or stopped being busy
	ChildBusyChanged
	// ItemAdded means an item joined a child collection
	ItemAdded
	// ItemRemoved means an item left a child collection
	ItemRemoved
	// CollectionReset means a collection's membership was restored wholesale
	CollectionReset
)

// String returns the string representation of the change kind
func (k ChangeKind) String() string {
	switch k {
	case ChildPropertyChanged:
		return "property"
	case ChildBusyChanged:
		return "busy"
	case ItemAdded:
		return "added"
	case ItemRemoved:
		return "removed"
	case CollectionReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ChildChange is the change descriptor carried by ChildChanged events
type ChildChange struct {
	Kind     ChangeKind
	Property string
	Index    int
	Busy     bool
}

// Event is a single notification
type Event struct {
	Kind     Kind
	Source   string
	Property string
	Busy     bool
	Path     []string
	Change   *ChildChange
}

// PathString joins the child path with dots, e.g. "Lines[2].Quantity"
func (e Event) PathString() string {
	return strings.Join(e.Path, ".")
}

// String renders the event for logs
func (e Event) String() string {
	switch e.Kind {
	case ChildChanged:
		if e.Change != nil {
			return fmt.Sprintf("%s %s (%s)", e.Kind, e.PathString(), e.Change.Kind)
		}
		return fmt.Sprintf("%s %s", e.Kind, e.PathString())
	case BusyChanged:
		return fmt.Sprintf("%s %s=%t", e.Kind, e.Property, e.Busy)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Property)
	}
}

// Prefix returns a copy of the event with segment prepended to its path
func (e Event) Prefix(segment string) Event {
	path := make([]string, 0, len(e.Path)+1)
	path = append(path, segment)
	path = append(path, e.Path...)
	e.Path = path
	return e
}
