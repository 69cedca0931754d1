package meta

import (
	"fmt"
	"math"
	"reflect"
)

// EqualFunc reports whether two values of a property are equal
type EqualFunc func(a, b interface{}) bool

// PropertyInfo is the immutable descriptor of a single property
type PropertyInfo struct {
	typeName     string
	name         string
	valueType    reflect.Type
	defaultValue interface{}
	friendlyName string
	relationship bool
	index        int
	equal        EqualFunc
}

// Option configures a PropertyInfo during Define
type Option func(*PropertyInfo)

// WithDefault sets the value returned for the property before it is first written
func WithDefault(value interface{}) Option {
	return func(p *PropertyInfo) {
		p.defaultValue = value
	}
}

// WithFriendlyName sets the display label of the property
func WithFriendlyName(label string) Option {
	return func(p *PropertyInfo) {
		p.friendlyName = label
	}
}

// WithEqual overrides the equality used to detect no-op writes
func WithEqual(fn EqualFunc) Option {
	return func(p *PropertyInfo) {
		p.equal = fn
	}
}

// AsRelationship marks the property as holding an owned child object or collection.
// Relationship values compare by identity.
func AsRelationship() Option {
	return func(p *PropertyInfo) {
		p.relationship = true
		p.equal = sameReference
	}
}

// ID returns the type-qualified identifier, e.g. "Person.Age"
func (p *PropertyInfo) ID() string {
	return p.typeName + "." + p.name
}

// Name returns the property name
func (p *PropertyInfo) Name() string {
	return p.name
}

// TypeName returns the name of the owning business type
func (p *PropertyInfo) TypeName() string {
	return p.typeName
}

// Type returns the declared value type
func (p *PropertyInfo) Type() reflect.Type {
	return p.valueType
}

// Default returns the registered default value
func (p *PropertyInfo) Default() interface{} {
	return p.defaultValue
}

// FriendlyName returns the display label, falling back to the property name
func (p *PropertyInfo) FriendlyName() string {
	if p.friendlyName == "" {
		return p.name
	}
	return p.friendlyName
}

// IsRelationship reports whether the property holds an owned child reference
func (p *PropertyInfo) IsRelationship() bool {
	return p.relationship
}

// Index returns the declaration order of the property within its type
func (p *PropertyInfo) Index() int {
	return p.index
}

// Equal compares two values using the declared type's equality
func (p *PropertyInfo) Equal(a, b interface{}) bool {
	return p.equal(a, b)
}

// Coerce converts value to the declared type.
// nil maps to the zero value of the declared type.
func (p *PropertyInfo) Coerce(value interface{}) (interface{}, error) {
	if p.valueType == nil {
		return value, nil
	}

	if value == nil {
		switch p.valueType.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return nil, nil
		default:
			return reflect.Zero(p.valueType).Interface(), nil
		}
	}

	v := reflect.ValueOf(value)
	if v.Type() == p.valueType {
		return value, nil
	}
	if v.Type().AssignableTo(p.valueType) {
		if p.valueType.Kind() == reflect.Interface {
			return value, nil
		}
		out := reflect.New(p.valueType).Elem()
		out.Set(v)
		return out.Interface(), nil
	}
	if isNumeric(v.Kind()) && isNumeric(p.valueType.Kind()) {
		out, ok := convertNumeric(v, p.valueType)
		if !ok {
			return nil, fmt.Errorf("%v does not fit %s for property %s", value, p.valueType, p.ID())
		}
		return out.Interface(), nil
	}

	return nil, fmt.Errorf("cannot use %T as %s for property %s", value, p.valueType, p.ID())
}

// convertNumeric converts v to t and reports false when the conversion
// truncates a fraction, wraps or overflows. Float to float conversions may
// round.
func convertNumeric(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	out := v.Convert(t)
	switch {
	case isFloat(v.Kind()) && isFloat(t.Kind()):
		return out, !math.IsInf(out.Float(), 0) || math.IsInf(v.Float(), 0)
	case isSigned(v.Kind()) && isUnsigned(t.Kind()):
		if v.Int() < 0 {
			return out, false
		}
	case isUnsigned(v.Kind()) && isSigned(t.Kind()):
		if out.Int() < 0 {
			return out, false
		}
	case isFloat(v.Kind()) && !isFloat(t.Kind()):
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return out, false
		}
		if isUnsigned(t.Kind()) && f < 0 {
			return out, false
		}
	}
	return out, out.Convert(v.Type()).Interface() == v.Interface()
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// DeepEqual compares two values for equality, handling nil and different types
func DeepEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func sameReference(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	return a == b
}
