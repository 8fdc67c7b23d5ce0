package store

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// PropertyDescriptor is a namespaced property name. It is comparable and used
// directly as a map key.
type PropertyDescriptor struct {
	Namespace string
	Name      string
}

// Prop builds a PropertyDescriptor.
func Prop(namespace, name string) PropertyDescriptor {
	return PropertyDescriptor{Namespace: namespace, Name: name}
}

func (p PropertyDescriptor) String() string {
	if p.Namespace == "" {
		return p.Name
	}
	return p.Namespace + p.Name
}

// TypedRef names a node by (identifier, type, spec version) without exposing
// its properties. It is the only way one node points at another.
type TypedRef struct {
	ID          string
	Type        string
	SpecVersion string
}

// Ref builds a TypedRef carrying only an identifier. The store fills in type
// and spec version from the target node when the reference is stored.
func Ref(id string) TypedRef {
	return TypedRef{ID: id}
}

// SameNode reports whether r and other name the same node. Identifiers
// compare case-insensitively.
func (r TypedRef) SameNode(other TypedRef) bool {
	return strings.EqualFold(r.ID, other.ID)
}

// Individual is an externally defined individual (an enumeration member or
// an external URI) stored as a property value.
type Individual struct {
	URI string
}

// Value is one storable value: string, bool, int64, float64, TypedRef or
// Individual. Smaller integer and float kinds are accepted and widened.
type Value = any

// Referable is implemented by materialized model objects. Stores never hold
// them; callers store the object's Ref() instead.
type Referable interface {
	Ref() TypedRef
}

// Value type names used by assignability checks for non-reference values.
const (
	TypeString     = "String"
	TypeBoolean    = "Boolean"
	TypeInteger    = "Integer"
	TypeDouble     = "Double"
	TypeIndividual = "Individual"
)

// normalizeValue checks that v is one of the closed value kinds and widens
// numeric kinds so equal values compare equal.
func normalizeValue(v Value) (Value, error) {
	switch val := v.(type) {
	case string, bool, int64, Individual:
		return val, nil
	case float64:
		if math.IsNaN(val) {
			return nil, fmt.Errorf("%w: NaN", ErrUnsupportedValueType)
		}
		return val, nil
	case TypedRef:
		if val.ID == "" {
			return nil, fmt.Errorf("%w: reference with empty identifier", ErrUnsupportedValueType)
		}
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValueType, val)
		}
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValueType, val)
		}
		return int64(val), nil
	case float32:
		return normalizeValue(float64(val))
	case Referable:
		return nil, fmt.Errorf("%w: %T is a model object, store its Ref() instead", ErrUnsupportedValueType, v)
	case nil:
		return nil, fmt.Errorf("%w: nil value", ErrUnsupportedValueType)
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return nil, fmt.Errorf("%w: %T is a sequence, use the collection operations", ErrUnsupportedValueType, v)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValueType, v)
}

// ValueTypeOf returns the type name used for assignability checks: the node
// type for references, one of the Type* constants otherwise.
func ValueTypeOf(v Value) string {
	switch val := v.(type) {
	case TypedRef:
		return val.Type
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case int64:
		return TypeInteger
	case float64:
		return TypeDouble
	case Individual:
		return TypeIndividual
	}
	return ""
}

// IsAssignable reports whether v may be used where typeName is expected.
// A nil registry only accepts exact matches.
func IsAssignable(v Value, typeName string, reg TypeRegistry) bool {
	got := ValueTypeOf(v)
	if got == "" {
		return false
	}
	if got == typeName {
		return true
	}
	return reg != nil && reg.IsAssignable(got, typeName)
}

// valuesEqual compares two normalized values. References compare by node.
func valuesEqual(a, b Value) bool {
	ra, aok := a.(TypedRef)
	rb, bok := b.(TypedRef)
	if aok || bok {
		return aok && bok && ra.SameNode(rb)
	}
	return a == b
}
