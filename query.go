package modelstore

import (
	"errors"
	"fmt"

	"github.com/jward/modelstore/internal/model"
	"github.com/jward/modelstore/internal/store"
)

// QueryBuilder provides a read API over a DataStore.
type QueryBuilder struct {
	ds       store.DataStore
	registry *model.Registry
}

// NewQueryBuilder returns a QueryBuilder over any DataStore, such as the
// listed catalog.
func NewQueryBuilder(ds DataStore, reg *Registry) *QueryBuilder {
	if reg == nil {
		reg = model.DefaultRegistry()
	}
	return &QueryBuilder{ds: ds, registry: reg}
}

// NodeResult extends TypedRef with computed fields useful for discovery.
type NodeResult struct {
	TypedRef
	Name     string // core name property, "" if unset or not a string
	IDKind   IDKind
	RefCount int // -1 when the store does not track reference counts
}

// refCounter is implemented by stores that expose reference counts.
type refCounter interface {
	RefCount(id string) (int, error)
}

// Node returns the node with its computed fields. Returns nil with no error
// if id does not exist.
func (q *QueryBuilder) Node(id string) (*NodeResult, error) {
	ref, err := q.ds.GetTypedRef(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	nr, err := q.nodeResult(ref)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	return &nr, nil
}

// Referrers returns the nodes holding a reference to id, sorted by
// identifier. Returns nil with no error if id does not exist.
func (q *QueryBuilder) Referrers(id string) ([]TypedRef, error) {
	refs, err := store.Referrers(q.ds, id)
	if errors.Is(err, store.ErrNotFound) && !q.ds.Exists(id) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// References returns the outgoing reference edges of id in property order,
// collection members in insertion order. Returns nil with no error if id
// does not exist.
func (q *QueryBuilder) References(id string) ([]GraphEdge, error) {
	edges, err := q.nodeEdges(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("references: %w", err)
	}
	return edges, nil
}

func (q *QueryBuilder) nodeResult(ref TypedRef) (NodeResult, error) {
	nr := NodeResult{
		TypedRef: ref,
		IDKind:   q.ds.GetIDKind(ref.ID),
		RefCount: -1,
	}
	if v, ok, err := q.ds.GetValue(ref.ID, model.PropName); err != nil {
		return NodeResult{}, err
	} else if ok {
		nr.Name, _ = v.(string)
	}
	if rc, ok := q.ds.(refCounter); ok {
		n, err := rc.RefCount(ref.ID)
		if err != nil {
			return NodeResult{}, err
		}
		nr.RefCount = n
	}
	return nr, nil
}

// propertyValues returns the values of one property: a single element for
// scalars, every member in order for collections.
func (q *QueryBuilder) propertyValues(id string, prop PropertyDescriptor) (values []Value, isCollection bool, err error) {
	isCollection, err = q.ds.IsCollectionProperty(id, prop)
	if err != nil {
		return nil, false, err
	}
	if isCollection {
		values, err = q.ds.CollectionValues(id, prop)
		return values, true, err
	}
	v, ok, err := q.ds.GetValue(id, prop)
	if err != nil || !ok {
		return nil, false, err
	}
	return []Value{v}, false, nil
}

// nodeEdges lists the references held by id's properties.
func (q *QueryBuilder) nodeEdges(id string) ([]GraphEdge, error) {
	ref, err := q.ds.GetTypedRef(id)
	if err != nil {
		return nil, err
	}
	props, err := q.ds.GetPropertyDescriptors(id)
	if err != nil {
		return nil, err
	}
	var edges []GraphEdge
	for _, prop := range props {
		values, _, err := q.propertyValues(id, prop)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			if target, ok := v.(TypedRef); ok {
				edges = append(edges, GraphEdge{From: ref.ID, To: target.ID, Property: prop})
			}
		}
	}
	return edges, nil
}
