package store

import "iter"

// DataStore is the storage contract every node-level caller programs
// against: model classes, graph converters and alternate backends. All
// access goes through an identifier and a property descriptor; callers never
// hold a node record.
//
// Implementations must be safe for concurrent use.
type DataStore interface {
	// Exists reports whether id names a node. Identifiers compare
	// case-insensitively.
	Exists(id string) bool

	// Create installs an empty node. It fails with ErrDuplicateID if the
	// identifier is taken, and advances the matching identifier counter when
	// the identifier looks generated.
	Create(ref TypedRef) error

	// GetTypedRef returns the node's reference with its stored casing.
	GetTypedRef(id string) (TypedRef, error)

	// GetPropertyDescriptors lists the node's properties in sorted order.
	GetPropertyDescriptors(id string) ([]PropertyDescriptor, error)

	// SetValue stores a scalar value. A nil value removes the property.
	SetValue(id string, prop PropertyDescriptor, v Value) error

	// GetValue returns a scalar value, or a *CollectionView when prop is a
	// collection. ok is false when the property is unset.
	GetValue(id string, prop PropertyDescriptor) (v Value, ok bool, err error)

	// RemoveProperty clears scalar or collection state for prop.
	RemoveProperty(id string, prop PropertyDescriptor) error

	AddToCollection(id string, prop PropertyDescriptor, v Value) error
	// RemoveFromCollection drops one occurrence of v and reports whether one
	// was present.
	RemoveFromCollection(id string, prop PropertyDescriptor, v Value) (bool, error)
	ClearCollection(id string, prop PropertyDescriptor) error
	CollectionSize(id string, prop PropertyDescriptor) (int, error)
	CollectionContains(id string, prop PropertyDescriptor, v Value) (bool, error)
	// CollectionValues returns the collection in insertion order.
	CollectionValues(id string, prop PropertyDescriptor) ([]Value, error)
	IsCollectionProperty(id string, prop PropertyDescriptor) (bool, error)

	// IsPropertyValueAssignableTo and IsCollectionMembersAssignableTo are
	// advisory type checks against the store's type registry.
	IsPropertyValueAssignableTo(id string, prop PropertyDescriptor, typeName string) (bool, error)
	IsCollectionMembersAssignableTo(id string, prop PropertyDescriptor, typeName string) (bool, error)

	// GetNextID returns and consumes the next identifier of a generated
	// family. It fails with ErrUnsupportedIDKind for other kinds.
	GetNextID(kind IDKind) (string, error)

	// GetIDKind classifies an identifier.
	GetIDKind(id string) IDKind

	// Scan returns a snapshot of the nodes whose identifier starts with
	// namespace and whose type equals typeName. Empty filters match all.
	// The sequence may be iterated any number of times and does not see
	// later mutations.
	Scan(namespace, typeName string) (iter.Seq[TypedRef], error)

	// Delete removes a node. It fails with ErrInUse while the node is
	// referenced, and releases every reference the node held.
	Delete(id string) error

	// EnterCriticalSection acquires the transaction lock in read or write
	// mode. The handle must be passed to LeaveCriticalSection on every path.
	EnterCriticalSection(readOnly bool) (*CriticalSection, error)
	LeaveCriticalSection(cs *CriticalSection)

	// Close releases backend resources.
	Close() error
}

// TypeRegistry answers structural type questions for assignability checks.
type TypeRegistry interface {
	// IsAssignable reports whether a value of type from may be used where
	// type to is expected.
	IsAssignable(from, to string) bool
}

// Compile-time check: *MemStore satisfies DataStore.
var _ DataStore = (*MemStore)(nil)
