package business

import (
	"reflect"

	"github.com/conduit-lang/bizobj/internal/bo/authz"
	"github.com/conduit-lang/bizobj/internal/bo/notify"
	"github.com/conduit-lang/bizobj/internal/bo/rules"
	"github.com/conduit-lang/bizobj/internal/bo/undo"
)

// Trackable exposes the lifecycle and validity state of an object
type Trackable interface {
	IsNew() bool
	IsDirty() bool
	IsDeleted() bool
	IsValid() bool
	IsBusy() bool
	IsSavable() bool
}

// Editable exposes n-level undo
type Editable interface {
	EditLevel() int
	BeginEdit() error
	CancelEdit() error
	ApplyEdit() error
}

// RuleInspectable exposes the broken rules of an object
type RuleInspectable interface {
	BrokenRules() []rules.BrokenRule
	Worst(property string) (rules.BrokenRule, bool)
}

// NotifyChanged exposes the change notification registry
type NotifyChanged interface {
	Subscribe(observer notify.Observer) notify.Subscription
	Unsubscribe(sub notify.Subscription) bool
}

// AuthorizationQueryable answers authorization queries for UI enabling
type AuthorizationQueryable interface {
	CanReadProperty(property string) bool
	CanWriteProperty(property string) bool
	CanExecute(op authz.Operation) bool
}

// FieldAccessor reads property values by name
type FieldAccessor = rules.FieldAccessor

// Node is a member of an object graph: a root, a child object or a child list.
// Only *Object and *List implement it.
type Node interface {
	Trackable
	undo.Participant
	NotifyChanged
	ProcessCompletions() int
	ErrorText() string
	MarkOld()
	node()
}

var (
	_ Node                   = (*Object)(nil)
	_ Node                   = (*List)(nil)
	_ RuleInspectable        = (*Object)(nil)
	_ AuthorizationQueryable = (*Object)(nil)
	_ FieldAccessor          = (*Object)(nil)
	_ Editable               = (*List)(nil)
)

var nodeType = reflect.TypeOf((*Node)(nil)).Elem()

// asNode returns the graph node held by a relationship value, treating typed
// nil pointers as nil
func asNode(v interface{}) Node {
	if v == nil {
		return nil
	}
	n, ok := v.(Node)
	if !ok {
		return nil
	}
	rv := reflect.ValueOf(n)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil
	}
	return n
}
