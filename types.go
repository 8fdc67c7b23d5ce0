package modelstore

import (
	"github.com/jward/modelstore/internal/catalog"
	"github.com/jward/modelstore/internal/model"
	"github.com/jward/modelstore/internal/store"
)

// Public type aliases for the internal types used by the Engine and
// QueryBuilder APIs. External consumers use these names; no conversion is
// needed.

type DataStore = store.DataStore
type MemStore = store.MemStore
type TypedRef = store.TypedRef
type PropertyDescriptor = store.PropertyDescriptor
type Value = store.Value
type Individual = store.Individual
type Referable = store.Referable
type IDKind = store.IDKind
type CollectionView = store.CollectionView
type Batch = store.Batch
type Catalog = catalog.Store
type Registry = model.Registry
type Object = model.Object
type Relationship = model.Relationship

// Property namespaces of the built-in types.
const (
	CoreNS      = model.CoreNS
	SoftwareNS  = model.SoftwareNS
	LicensingNS = model.LicensingNS
	SpecVersion = model.SpecVersion
)

// Identifier families accepted by Engine.Create and GetNextID.
const (
	IDKindUnknown     = store.IDKindUnknown
	IDKindAnonymous   = store.IDKindAnonymous
	IDKindLicenseRef  = store.IDKindLicenseRef
	IDKindDocumentRef = store.IDKindDocumentRef
	IDKindElementRef  = store.IDKindElementRef
	IDKindListed      = store.IDKindListed
)

// Sentinel errors callers test with errors.Is.
var (
	ErrNotFound             = store.ErrNotFound
	ErrDuplicateID          = store.ErrDuplicateID
	ErrInUse                = store.ErrInUse
	ErrUnsupportedValueType = store.ErrUnsupportedValueType
	ErrUnsupportedIDKind    = store.ErrUnsupportedIDKind
	ErrRefcountUnderflow    = store.ErrRefcountUnderflow
	ErrReadOnly             = store.ErrReadOnly
)

// Prop builds a property descriptor.
func Prop(namespace, name string) PropertyDescriptor {
	return store.Prop(namespace, name)
}

// Ref builds an untyped reference to id for SetValue and AddToCollection.
func Ref(id string) TypedRef {
	return store.Ref(id)
}

// NewBatch returns an empty write batch for Engine.Commit.
func NewBatch() *Batch {
	return store.NewBatch()
}
