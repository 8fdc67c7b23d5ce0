// Package model resolves type names to node constructors and wraps stored
// nodes in typed model objects.
//
// Model objects never hold property data. They carry a store handle and a
// TypedRef, and every accessor goes through the store contract.
package model

import (
	"fmt"
	"slices"
	"sync"

	"github.com/jward/modelstore/internal/store"
)

// Constructor builds the model object for an existing node.
type Constructor func(ds store.DataStore, ref store.TypedRef) (store.Referable, error)

// TypeInfo describes one registered node type.
type TypeInfo struct {
	Name string
	// Parents are the direct supertypes. Assignability follows them
	// transitively.
	Parents []string
	// New constructs the model object. Nil means the generic *Object.
	New Constructor
}

// Registry maps type names to constructors and answers assignability
// questions. It satisfies store.TypeRegistry.
//
// Thread safety: the RWMutex protects types. Registration normally happens
// at startup; lookups may run concurrently with it.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TypeInfo
}

// Compile-time check: *Registry satisfies store.TypeRegistry.
var _ store.TypeRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]TypeInfo)}
}

// Register adds a type. Registering a name twice is an error.
func (r *Registry) Register(info TypeInfo) error {
	if info.Name == "" {
		return fmt.Errorf("register type: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[info.Name]; ok {
		return fmt.Errorf("register type %s: already registered", info.Name)
	}
	info.Parents = slices.Clone(info.Parents)
	r.types[info.Name] = info
	return nil
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.types[name]
	return info, ok
}

// Types returns every registered type name, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsAssignable reports whether from is to or one of its transitive
// subtypes. Unregistered types are only assignable to themselves.
func (r *Registry) IsAssignable(from, to string) bool {
	if from == to {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, parent := range r.types[cur].Parents {
			if parent == to {
				return true
			}
			if !seen[parent] {
				seen[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return false
}

// Construct wraps the existing node id in its registered model object.
func (r *Registry) Construct(ds store.DataStore, id string) (store.Referable, error) {
	ref, err := ds.GetTypedRef(id)
	if err != nil {
		return nil, fmt.Errorf("construct: %w", err)
	}
	info, ok := r.Lookup(ref.Type)
	if !ok {
		return nil, fmt.Errorf("construct %s: unknown type %q", ref.ID, ref.Type)
	}
	if info.New == nil {
		return NewObject(ds, ref), nil
	}
	return info.New(ds, ref)
}

// Create installs a new node of typeName and returns its model object. An
// empty id draws one from kind's family with ds.GetNextID.
func (r *Registry) Create(ds store.DataStore, id, typeName, specVersion string, kind store.IDKind) (store.Referable, error) {
	if _, ok := r.Lookup(typeName); !ok {
		return nil, fmt.Errorf("create: unknown type %q", typeName)
	}
	if id == "" {
		var err error
		if id, err = ds.GetNextID(kind); err != nil {
			return nil, fmt.Errorf("create %s: %w", typeName, err)
		}
	}
	if err := ds.Create(store.TypedRef{ID: id, Type: typeName, SpecVersion: specVersion}); err != nil {
		return nil, err
	}
	return r.Construct(ds, id)
}
