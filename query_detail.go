package modelstore

import (
	"fmt"

	"github.com/jward/modelstore/internal/store"
)

// PropertyEntry is one property of a node with its values. Scalars carry
// exactly one value.
type PropertyEntry struct {
	Property   PropertyDescriptor
	Collection bool
	Values     []Value
}

// NodeDetail bundles a node with all of its property values and the nodes
// that reference it. One call replaces a lookup per property.
type NodeDetail struct {
	Node       NodeResult      // the node itself with its reference count
	Properties []PropertyEntry // sorted by property
	Referrers  []TypedRef      // nodes holding a reference to this one
	Digest     string          // content hash, see store.Digest
}

// NodeDetail returns a node with every property and its referrers, read
// inside one read-only critical section. Returns nil with no error if id
// does not exist.
func (q *QueryBuilder) NodeDetail(id string) (*NodeDetail, error) {
	var detail *NodeDetail
	err := store.WithCriticalSection(q.ds, true, func() error {
		nr, err := q.Node(id)
		if err != nil || nr == nil {
			return err
		}
		id = nr.ID

		props, err := q.ds.GetPropertyDescriptors(id)
		if err != nil {
			return err
		}
		entries := make([]PropertyEntry, 0, len(props))
		for _, prop := range props {
			values, isCollection, err := q.propertyValues(id, prop)
			if err != nil {
				return err
			}
			if values == nil {
				values = []Value{}
			}
			entries = append(entries, PropertyEntry{Property: prop, Collection: isCollection, Values: values})
		}

		referrers, err := q.Referrers(id)
		if err != nil {
			return err
		}
		if referrers == nil {
			referrers = []TypedRef{}
		}

		digest, err := store.Digest(q.ds, id)
		if err != nil {
			return err
		}

		detail = &NodeDetail{
			Node:       *nr,
			Properties: entries,
			Referrers:  referrers,
			Digest:     digest,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("node detail: %w", err)
	}
	return detail, nil
}
