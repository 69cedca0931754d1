package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrRuleExecution is the sentinel for rule implementations that failed
var ErrRuleExecution = errors.New("rule execution failed")

// ExecutionError records a rule implementation that returned an error or panicked
type ExecutionError struct {
	Rule     string
	Property string
	Cause    error
	Panic    interface{}
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("rule %s on %s panicked: %v", e.Rule, e.Property, e.Panic)
	}
	return fmt.Sprintf("rule %s on %s failed: %v", e.Rule, e.Property, e.Cause)
}

// Unwrap allows errors.Is(err, ErrRuleExecution)
func (e *ExecutionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrRuleExecution, e.Cause}
	}
	return []error{ErrRuleExecution}
}

// ValidationError lists the Error messages per property of an invalid object
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{
		Fields: make(map[string][]string),
	}
}

// Add records a message for a property
func (ve *ValidationError) Add(property, message string) {
	if ve.Fields == nil {
		ve.Fields = make(map[string][]string)
	}
	ve.Fields[property] = append(ve.Fields[property], message)
}

// Count returns the total number of messages
func (ve *ValidationError) Count() int {
	count := 0
	for _, messages := range ve.Fields {
		count += len(messages)
	}
	return count
}

// Error implements the error interface
func (ve *ValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}

	properties := make([]string, 0, len(ve.Fields))
	for p := range ve.Fields {
		properties = append(properties, p)
	}
	sort.Strings(properties)

	var messages []string
	for _, p := range properties {
		for _, msg := range ve.Fields[p] {
			messages = append(messages, fmt.Sprintf("  - %s: %s", p, msg))
		}
	}

	if len(messages) == 1 {
		return fmt.Sprintf("validation failed: %s", strings.TrimPrefix(messages[0], "  - "))
	}
	return fmt.Sprintf("validation failed:\n%s", strings.Join(messages, "\n"))
}
