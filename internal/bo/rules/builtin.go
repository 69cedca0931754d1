package rules

import (
	"fmt"
	"net/mail"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

// New creates a synchronous rule with Error severity
func New(name, property string, fn RuleFunc) *Rule {
	return &Rule{
		Name:     name,
		Property: property,
		Severity: Error,
		Fn:       fn,
	}
}

// NewAsync creates an asynchronous rule with Error severity
func NewAsync(name, property string, fn RuleFunc) *Rule {
	r := New(name, property, fn)
	r.Async = true
	return r
}

// Check adapts a predicate over the primary value into a rule.
// The rule fails with message when ok returns false.
func Check(name, property string, severity Severity, message string, ok func(value interface{}) bool) *Rule {
	r := New(name, property, func(ctx *Context) (Result, error) {
		if ok(ctx.Primary()) {
			return Pass(), nil
		}
		return Fail(message), nil
	})
	r.Severity = severity
	return r
}

// Dependency makes a change to property re-run the rules of the given properties
func Dependency(property string, dependents ...string) *Rule {
	r := New("dependency("+property+")", property, func(*Context) (Result, error) {
		return Pass(), nil
	})
	r.AlsoValidate = dependents
	return r
}

// Required fails when the value is nil, an empty string or an empty collection
func Required(property string) *Rule {
	return New("required("+property+")", property, func(ctx *Context) (Result, error) {
		if isEmpty(ctx.Primary()) {
			return Failf("%s is required", ctx.Label(property)), nil
		}
		return Pass(), nil
	})
}

// MinValue fails when a numeric value is below min
func MinValue(property string, min float64) *Rule {
	return New(fmt.Sprintf("min(%s,%v)", property, min), property, func(ctx *Context) (Result, error) {
		v := ctx.Primary()
		if v == nil {
			return Pass(), nil
		}
		n, ok := toFloat64(v)
		if !ok {
			return Result{}, fmt.Errorf("expected numeric value, got %T", v)
		}
		if n < min {
			return Failf("%s must be at least %v", ctx.Label(property), min), nil
		}
		return Pass(), nil
	})
}

// MaxValue fails when a numeric value is above max
func MaxValue(property string, max float64) *Rule {
	return New(fmt.Sprintf("max(%s,%v)", property, max), property, func(ctx *Context) (Result, error) {
		v := ctx.Primary()
		if v == nil {
			return Pass(), nil
		}
		n, ok := toFloat64(v)
		if !ok {
			return Result{}, fmt.Errorf("expected numeric value, got %T", v)
		}
		if n > max {
			return Failf("%s must be at most %v", ctx.Label(property), max), nil
		}
		return Pass(), nil
	})
}

// MinLength fails when a string has fewer than min characters
func MinLength(property string, min int) *Rule {
	return New(fmt.Sprintf("minlength(%s,%d)", property, min), property, func(ctx *Context) (Result, error) {
		s, err := stringValue(ctx.Primary())
		if err != nil {
			return Result{}, err
		}
		if utf8.RuneCountInString(s) < min {
			return Failf("%s must be at least %d characters", ctx.Label(property), min), nil
		}
		return Pass(), nil
	})
}

// MaxLength fails when a string has more than max characters
func MaxLength(property string, max int) *Rule {
	return New(fmt.Sprintf("maxlength(%s,%d)", property, max), property, func(ctx *Context) (Result, error) {
		s, err := stringValue(ctx.Primary())
		if err != nil {
			return Result{}, err
		}
		if utf8.RuneCountInString(s) > max {
			return Failf("%s must be at most %d characters", ctx.Label(property), max), nil
		}
		return Pass(), nil
	})
}

// Pattern fails when a non-empty string does not match the expression
func Pattern(property string, pattern *regexp.Regexp) *Rule {
	return New(fmt.Sprintf("pattern(%s)", property), property, func(ctx *Context) (Result, error) {
		s, err := stringValue(ctx.Primary())
		if err != nil {
			return Result{}, err
		}
		if s != "" && !pattern.MatchString(s) {
			return Failf("%s does not match required pattern", ctx.Label(property)), nil
		}
		return Pass(), nil
	})
}

// Email fails when a non-empty string is not a valid address
func Email(property string) *Rule {
	return New(fmt.Sprintf("email(%s)", property), property, func(ctx *Context) (Result, error) {
		s, err := stringValue(ctx.Primary())
		if err != nil {
			return Result{}, err
		}
		if strings.TrimSpace(s) == "" {
			return Pass(), nil
		}
		// net/mail gives RFC 5322 parsing
		if _, err := mail.ParseAddress(s); err != nil {
			return Failf("%s must be a valid email address", ctx.Label(property)), nil
		}
		return Pass(), nil
	})
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return val.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return val.IsNil()
	}
	return false
}

func stringValue(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string value, got %T", v)
	}
	return s, nil
}

func toFloat64(v interface{}) (float64, bool) {
	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(val.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(val.Uint()), true
	case reflect.Float32, reflect.Float64:
		return val.Float(), true
	}
	return 0, false
}
