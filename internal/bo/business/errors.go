package business

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProperty is returned for a property the type does not declare
	ErrUnknownProperty = errors.New("unknown property")
	// ErrDisposed is returned by mutating calls on a disposed object
	ErrDisposed = errors.New("object is disposed")
	// ErrNotRelationship is returned when a child accessor targets a plain property
	ErrNotRelationship = errors.New("property is not a relationship")
	// ErrItemType is returned when adding an object of the wrong type to a list
	ErrItemType = errors.New("item has the wrong business type")
	// ErrDuplicateItem is returned when adding an object that is already a member
	ErrDuplicateItem = errors.New("item is already in the list")
	// ErrIndexOutOfRange is returned for list positions outside the list
	ErrIndexOutOfRange = errors.New("index out of range")
)

// TypeMismatchError reports a value that cannot be converted to a property's declared type
type TypeMismatchError struct {
	Property string
	Value    interface{}
	Err      error
}

// Error implements the error interface
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch for %s: %v", e.Property, e.Err)
}

// Unwrap returns the conversion error
func (e *TypeMismatchError) Unwrap() error {
	return e.Err
}

func unknownProperty(typeName, name string) error {
	return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, typeName, name)
}
