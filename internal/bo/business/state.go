package business

import (
	"strings"

	"github.com/conduit-lang/bizobj/internal/bo/authz"
	"github.com/conduit-lang/bizobj/internal/bo/rules"
)

// IsNew reports whether the object has not been persisted yet
func (o *Object) IsNew() bool {
	return o.isNew
}

// IsDeleted reports whether the object is marked for deletion
func (o *Object) IsDeleted() bool {
	return o.isDeleted
}

// IsSelfDirty reports whether the object itself changed, ignoring children
func (o *Object) IsSelfDirty() bool {
	return o.markDirty || o.store.AnyDirty()
}

// IsDirty reports whether the object or any child changed
func (o *Object) IsDirty() bool {
	if o.IsSelfDirty() {
		return true
	}
	for _, child := range o.childNodes() {
		if child.IsDirty() {
			return true
		}
	}
	return false
}

// IsPropertyDirty reports whether one property was written since it was last marked clean
func (o *Object) IsPropertyDirty(name string) bool {
	return o.store.IsDirty(name)
}

// IsSelfValid reports whether the object has no Error broken rule
func (o *Object) IsSelfValid() bool {
	return o.broken.IsValid()
}

// IsValid reports whether the object and every child are valid
func (o *Object) IsValid() bool {
	if !o.IsSelfValid() {
		return false
	}
	for _, child := range o.childNodes() {
		if !child.IsValid() {
			return false
		}
	}
	return true
}

// IsSelfBusy reports whether async rules of the object itself are outstanding
func (o *Object) IsSelfBusy() bool {
	return o.store.AnyBusy() || o.runner.Pending() > 0
}

// IsBusy reports whether async rules are outstanding anywhere in the graph
func (o *Object) IsBusy() bool {
	if o.IsSelfBusy() {
		return true
	}
	for _, child := range o.childNodes() {
		if child.IsBusy() {
			return true
		}
	}
	return false
}

// IsPropertyBusy reports whether async rules targeting a property are outstanding
func (o *Object) IsPropertyBusy(name string) bool {
	return o.store.IsBusy(name)
}

// IsSavable reports whether the object is valid, idle and the principal may
// perform the save operation its state implies
func (o *Object) IsSavable() bool {
	return o.IsValid() && !o.IsBusy() && o.CanExecute(o.saveOperation())
}

func (o *Object) saveOperation() authz.Operation {
	switch {
	case o.isDeleted:
		return authz.Delete
	case o.isNew:
		return authz.Create
	default:
		return authz.Edit
	}
}

// BrokenRules returns the broken rules of the object in insertion order
func (o *Object) BrokenRules() []rules.BrokenRule {
	return o.broken.All()
}

// Worst returns the most severe broken rule of a property
func (o *Object) Worst(property string) (rules.BrokenRule, bool) {
	return o.broken.Worst(property)
}

// Err returns a *rules.ValidationError for the object's Error broken rules
func (o *Object) Err() error {
	return o.broken.Err()
}

// ErrorText joins the Error messages of the object and its children
func (o *Object) ErrorText() string {
	var parts []string
	if s := o.broken.String(); s != "" {
		parts = append(parts, s)
	}
	for _, child := range o.childNodes() {
		if s := child.ErrorText(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// CanReadProperty reports whether the current principal may read a property
func (o *Object) CanReadProperty(property string) bool {
	return o.gate.CanRead(property)
}

// CanWriteProperty reports whether the current principal may write a property
func (o *Object) CanWriteProperty(property string) bool {
	return o.gate.CanWrite(property)
}

// CanExecute reports whether the current principal may perform op on the type
func (o *Object) CanExecute(op authz.Operation) bool {
	return o.gate.CanExecute(op)
}

// PropertyStatus summarizes one property for display
type PropertyStatus struct {
	Property    string
	CanRead     bool
	CanWrite    bool
	IsBusy      bool
	IsValid     bool
	IsDirty     bool
	HasBroken   bool
	Severity    rules.Severity
	Description string
}

// PropertyStatus returns the display state of a property
func (o *Object) PropertyStatus(property string) (PropertyStatus, error) {
	if _, ok := o.typ.info.Lookup(property); !ok {
		return PropertyStatus{}, unknownProperty(o.typ.Name(), property)
	}
	st := PropertyStatus{
		Property: property,
		CanRead:  o.gate.CanRead(property),
		CanWrite: o.gate.CanWrite(property),
		IsBusy:   o.store.IsBusy(property),
		IsValid:  o.broken.IsPropertyValid(property),
		IsDirty:  o.store.IsDirty(property),
	}
	if worst, ok := o.broken.Worst(property); ok {
		st.HasBroken = true
		st.Severity = worst.Severity
		st.Description = worst.Message
	}
	return st, nil
}
