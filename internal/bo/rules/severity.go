package rules

import (
	"fmt"
	"strings"
)

// Severity ranks broken rules. Higher values are worse.
type Severity int

const (
	// Information does not affect validity
	Information Severity = iota
	// Warning does not affect validity
	Warning
	// Error makes the object invalid
	Error
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Information:
		return "information"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity converts a severity name to a Severity
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "information", "info":
		return Information, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	default:
		return Information, fmt.Errorf("unknown severity %q", name)
	}
}
