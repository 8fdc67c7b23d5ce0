package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/modelstore/internal/store"
)

// Reserved map keys that mark a Risor map as a store value.
const (
	refKey        = "$ref"
	individualKey = "$individual"
)

// logObject provides log.Info/Warn/Error/Debug methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string)  { l.logger.Info(msg, "source", "script") }
func (l *logObject) Warn(msg string)  { l.logger.Warn(msg, "source", "script") }
func (l *logObject) Error(msg string) { l.logger.Error(msg, "source", "script") }
func (l *logObject) Debug(msg string) { l.logger.Debug(msg, "source", "script") }

// makeRefFn returns ref(id), which builds a reference value for set_value
// and add_to_collection.
func makeRefFn() *object.Builtin {
	return object.NewBuiltin("ref", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("ref", 1, len(args))
		}
		id, err := toString(args[0])
		if err != nil {
			return object.Errorf("ref: %v", err)
		}
		return refToObject(store.Ref(id))
	})
}

// makeIndividualFn returns individual(uri).
func makeIndividualFn() *object.Builtin {
	return object.NewBuiltin("individual", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("individual", 1, len(args))
		}
		uri, err := toString(args[0])
		if err != nil {
			return object.Errorf("individual: %v", err)
		}
		return object.NewMap(map[string]object.Object{individualKey: object.NewString(uri)})
	})
}

// makePropFn returns prop(name), which expands a property name the same way
// every host function does.
func makePropFn(defaultNS string) *object.Builtin {
	return object.NewBuiltin("prop", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("prop", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("prop: %v", err)
		}
		return object.NewString(parseProp(name, defaultNS).String())
	})
}

// parseProp splits a property name into namespace and local name. Full
// IRIs split after their last '/' or '#'; bare names get defaultNS.
func parseProp(name, defaultNS string) store.PropertyDescriptor {
	if i := strings.LastIndexAny(name, "/#"); i >= 0 {
		return store.Prop(name[:i+1], name[i+1:])
	}
	return store.Prop(defaultNS, name)
}

// toValue converts a Risor object to a store value. Nil maps to nil so
// set_value(id, p, nil) removes the property.
func toValue(obj object.Object) (store.Value, error) {
	switch v := obj.(type) {
	case *object.NilType:
		return nil, nil
	case *object.String:
		return v.Value(), nil
	case *object.Int:
		return v.Value(), nil
	case *object.Float:
		return v.Value(), nil
	case *object.Bool:
		return v.Value(), nil
	case *object.Map:
		m := v.Value()
		if id, ok := m[refKey]; ok {
			s, err := toString(id)
			if err != nil {
				return nil, fmt.Errorf("reference id: %w", err)
			}
			return store.Ref(s), nil
		}
		if uri, ok := m[individualKey]; ok {
			s, err := toString(uri)
			if err != nil {
				return nil, fmt.Errorf("individual uri: %w", err)
			}
			return store.Individual{URI: s}, nil
		}
		return nil, fmt.Errorf("%w: map without %s or %s", store.ErrUnsupportedValueType, refKey, individualKey)
	case *object.List:
		return nil, fmt.Errorf("%w: list is a sequence, use add_to_collection", store.ErrUnsupportedValueType)
	}
	return nil, fmt.Errorf("%w: %s", store.ErrUnsupportedValueType, obj.Type())
}

// fromValue converts a store value to a Risor object. Collection views are
// materialized into lists.
func fromValue(v store.Value) (object.Object, error) {
	switch val := v.(type) {
	case nil:
		return object.Nil, nil
	case string:
		return object.NewString(val), nil
	case bool:
		return object.NewBool(val), nil
	case int64:
		return object.NewInt(val), nil
	case float64:
		return object.NewFloat(val), nil
	case store.TypedRef:
		return refToObject(val), nil
	case store.Individual:
		return object.NewMap(map[string]object.Object{individualKey: object.NewString(val.URI)}), nil
	case *store.CollectionView:
		values, err := val.Values()
		if err != nil {
			return nil, err
		}
		return valuesToList(values)
	}
	return nil, fmt.Errorf("%w: %T", store.ErrUnsupportedValueType, v)
}

func valuesToList(values []store.Value) (object.Object, error) {
	items := make([]object.Object, 0, len(values))
	for _, v := range values {
		obj, err := fromValue(v)
		if err != nil {
			return nil, err
		}
		items = append(items, obj)
	}
	return object.NewList(items), nil
}

func refToObject(ref store.TypedRef) object.Object {
	m := map[string]object.Object{refKey: object.NewString(ref.ID)}
	if ref.Type != "" {
		m["type"] = object.NewString(ref.Type)
	}
	if ref.SpecVersion != "" {
		m["spec_version"] = object.NewString(ref.SpecVersion)
	}
	return object.NewMap(m)
}

func refsToList(refs []store.TypedRef) object.Object {
	items := make([]object.Object, 0, len(refs))
	for _, ref := range refs {
		items = append(items, refToObject(ref))
	}
	return object.NewList(items)
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// toID accepts an identifier string or a ref map.
func toID(obj object.Object) (string, error) {
	if m, ok := obj.(*object.Map); ok {
		if id, ok := m.Value()[refKey]; ok {
			return toString(id)
		}
	}
	return toString(obj)
}
