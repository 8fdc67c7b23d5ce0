package model

import (
	"fmt"

	"github.com/jward/modelstore/internal/store"
)

// Object is the generic model object: a store handle plus the node's
// TypedRef. It is the "materialized node" that the store refuses as a value;
// Set and Add convert it to its reference first.
type Object struct {
	ds  store.DataStore
	ref store.TypedRef
}

// NewObject wraps ref. It does not check that the node exists.
func NewObject(ds store.DataStore, ref store.TypedRef) *Object {
	return &Object{ds: ds, ref: ref}
}

func (o *Object) Ref() store.TypedRef { return o.ref }
func (o *Object) ID() string          { return o.ref.ID }
func (o *Object) Type() string        { return o.ref.Type }

// Store returns the store the object reads and writes through.
func (o *Object) Store() store.DataStore { return o.ds }

// Get returns a scalar property value. Collection properties come back as a
// *store.CollectionView.
func (o *Object) Get(prop store.PropertyDescriptor) (store.Value, bool, error) {
	return o.ds.GetValue(o.ref.ID, prop)
}

// GetString returns a string property, or "" when it is unset.
func (o *Object) GetString(prop store.PropertyDescriptor) (string, error) {
	v, ok, err := o.Get(prop)
	if err != nil || !ok {
		return "", err
	}
	s, isString := v.(string)
	if !isString {
		return "", fmt.Errorf("%s %s: %w: have %T, want string", o.ref.ID, prop, store.ErrUnsupportedValueType, v)
	}
	return s, nil
}

// GetObject resolves a reference-valued property to its model object using
// reg. ok is false when the property is unset.
func (o *Object) GetObject(reg *Registry, prop store.PropertyDescriptor) (store.Referable, bool, error) {
	v, ok, err := o.Get(prop)
	if err != nil || !ok {
		return nil, false, err
	}
	ref, isRef := v.(store.TypedRef)
	if !isRef {
		return nil, false, fmt.Errorf("%s %s: %w: have %T, want reference", o.ref.ID, prop, store.ErrUnsupportedValueType, v)
	}
	target, err := reg.Construct(o.ds, ref.ID)
	if err != nil {
		return nil, false, err
	}
	return target, true, nil
}

func (o *Object) Set(prop store.PropertyDescriptor, v store.Value) error {
	return o.ds.SetValue(o.ref.ID, prop, toValue(v))
}

func (o *Object) Unset(prop store.PropertyDescriptor) error {
	return o.ds.RemoveProperty(o.ref.ID, prop)
}

func (o *Object) Add(prop store.PropertyDescriptor, v store.Value) error {
	return o.ds.AddToCollection(o.ref.ID, prop, toValue(v))
}

func (o *Object) Remove(prop store.PropertyDescriptor, v store.Value) (bool, error) {
	return o.ds.RemoveFromCollection(o.ref.ID, prop, toValue(v))
}

// Collection returns a view over a collection property.
func (o *Object) Collection(prop store.PropertyDescriptor) *store.CollectionView {
	return store.NewCollectionView(o.ds, o.ref.ID, prop)
}

// Is reports whether the object's type is assignable to typeName.
func (o *Object) Is(reg store.TypeRegistry, typeName string) bool {
	return o.ref.Type == typeName || (reg != nil && reg.IsAssignable(o.ref.Type, typeName))
}

// toValue replaces model objects with their references.
func toValue(v store.Value) store.Value {
	if r, ok := v.(store.Referable); ok {
		return r.Ref()
	}
	return v
}
