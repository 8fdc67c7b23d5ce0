package store

import "errors"

// Sentinel errors for store operations. Backends wrap them with context;
// callers match with errors.Is.
var (
	// ErrNotFound is returned when an operation names an identifier that is
	// not in the store, including the target of a reference.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned by Create when the identifier (compared
	// case-insensitively) already exists.
	ErrDuplicateID = errors.New("duplicate identifier")

	// ErrInUse is returned by Delete while other nodes still reference the
	// node.
	ErrInUse = errors.New("node in use")

	// ErrUnsupportedValueType is returned for values outside the closed value
	// kinds, for model objects passed instead of references, for raw
	// sequences, and for scalar/collection mismatches on a property.
	ErrUnsupportedValueType = errors.New("unsupported value type")

	// ErrUnsupportedIDKind is returned by GetNextID for identifier kinds that
	// cannot be generated.
	ErrUnsupportedIDKind = errors.New("unsupported identifier kind")

	// ErrRefcountUnderflow signals a reference count that would drop below
	// zero. It means a mutation bypassed the paired increment.
	ErrRefcountUnderflow = errors.New("reference count underflow")

	// ErrReadOnly is returned by backends that do not accept mutations.
	ErrReadOnly = errors.New("read-only store")
)
