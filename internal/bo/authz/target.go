package authz

import "fmt"

// Action is a property-level access kind
type Action string

const (
	// Read covers property reads
	Read Action = "read"
	// Write covers property writes
	Write Action = "write"
)

// Operation is a type-level operation
type Operation string

const (
	// Create covers creating new instances
	Create Operation = "create"
	// Get covers fetching existing instances
	Get Operation = "get"
	// Edit covers saving changes to existing instances
	Edit Operation = "edit"
	// Delete covers deleting instances
	Delete Operation = "delete"
)

// Operations lists every type-level operation
var Operations = []Operation{Create, Get, Edit, Delete}

// ParseOperation converts an operation name
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations {
		if string(op) == name {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", name)
}

// PropertyTarget returns the evaluator target for a property action
func PropertyTarget(property string, action Action) string {
	return property + "." + string(action)
}

// OperationTarget returns the evaluator target for an operation
func OperationTarget(op Operation) string {
	return string(op)
}
