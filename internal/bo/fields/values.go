package fields

import (
	"reflect"

	"github.com/conduit-lang/bizobj/internal/bo/meta"
)

// Values is a detached name → value view of a store.
// It implements the FieldAccessor capability used by rules.
type Values map[string]interface{}

// Get returns the value of a property, or nil when absent
func (v Values) Get(name string) interface{} {
	return v[name]
}

// Has reports whether the view contains the property
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// copyValue copies flat values so later writes never alias a snapshot.
// Relationship values keep their reference; children snapshot themselves.
func copyValue(p *meta.PropertyInfo, value interface{}) interface{} {
	if p.IsRelationship() {
		return value
	}
	return deepCopyValue(value)
}

// deepCopyValue copies slices and maps recursively while preserving their types
func deepCopyValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	return deepCopyReflect(reflect.ValueOf(v)).Interface()
}

func deepCopyReflect(val reflect.Value) reflect.Value {
	switch val.Kind() {
	case reflect.Slice:
		if val.IsNil() {
			return val
		}
		out := reflect.MakeSlice(val.Type(), val.Len(), val.Len())
		for i := 0; i < val.Len(); i++ {
			out.Index(i).Set(deepCopyReflect(val.Index(i)))
		}
		return out
	case reflect.Map:
		if val.IsNil() {
			return val
		}
		out := reflect.MakeMapWithSize(val.Type(), val.Len())
		iter := val.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopyReflect(iter.Value()))
		}
		return out
	case reflect.Interface:
		if val.IsNil() {
			return val
		}
		inner := deepCopyReflect(val.Elem())
		out := reflect.New(val.Type()).Elem()
		out.Set(inner)
		return out
	default:
		// Primitives, structs and pointers are copied by value
		return val
	}
}
