package store

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// property is the state of one property on one node: a scalar value or a
// collection, fixed by whichever operation created it.
type property struct {
	mu         sync.Mutex
	collection *collection // nil for scalar properties
	value      Value
	dead       bool // removed from its node; look the property up again
}

func (p *property) isCollection() bool {
	return p.collection != nil
}

// refs returns the references p holds, with multiplicity.
func (p *property) refs() []TypedRef {
	if p.collection != nil {
		return p.collection.refs()
	}
	if r, ok := p.value.(TypedRef); ok {
		return []TypedRef{r}
	}
	return nil
}

// storedNode is one node's record: its typed reference, its property table
// and its in-use counter. refCount is guarded by MemStore.refMu, not by the
// property table.
type storedNode struct {
	TypedRef
	props    *xsync.MapOf[PropertyDescriptor, *property]
	refCount int
}

func newStoredNode(ref TypedRef) *storedNode {
	return &storedNode{
		TypedRef: ref,
		props:    xsync.NewMapOf[PropertyDescriptor, *property](),
	}
}

func shapeError(prop PropertyDescriptor, isCollection bool) error {
	if isCollection {
		return fmt.Errorf("%w: property %s is a collection", ErrUnsupportedValueType, prop)
	}
	return fmt.Errorf("%w: property %s is not a collection", ErrUnsupportedValueType, prop)
}

// lookup returns prop locked, or nil if the node has no such property.
func (n *storedNode) lookup(prop PropertyDescriptor) *property {
	for {
		p, ok := n.props.Load(prop)
		if !ok {
			return nil
		}
		p.mu.Lock()
		if !p.dead {
			return p
		}
		p.mu.Unlock()
	}
}

// acquire returns prop locked, creating it with the requested shape. It fails
// when the property already exists with the other shape.
func (n *storedNode) acquire(prop PropertyDescriptor, asCollection bool) (*property, error) {
	for {
		p, _ := n.props.LoadOrCompute(prop, func() *property {
			np := &property{}
			if asCollection {
				np.collection = newCollection()
			}
			return np
		})
		p.mu.Lock()
		if p.dead {
			p.mu.Unlock()
			continue
		}
		if p.isCollection() != asCollection {
			p.mu.Unlock()
			return nil, shapeError(prop, p.isCollection())
		}
		return p, nil
	}
}

// detach removes a locked property from the table.
func (n *storedNode) detach(prop PropertyDescriptor, p *property) {
	p.dead = true
	n.props.Delete(prop)
}

func (n *storedNode) descriptors() []PropertyDescriptor {
	var out []PropertyDescriptor
	n.props.Range(func(prop PropertyDescriptor, _ *property) bool {
		out = append(out, prop)
		return true
	})
	slices.SortFunc(out, func(a, b PropertyDescriptor) int {
		if c := strings.Compare(a.Namespace, b.Namespace); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// scalar returns the scalar value of prop. isCollection is set when prop is
// a collection instead.
func (n *storedNode) scalar(prop PropertyDescriptor) (v Value, isCollection, ok bool) {
	p := n.lookup(prop)
	if p == nil {
		return nil, false, false
	}
	defer p.mu.Unlock()
	if p.isCollection() {
		return nil, true, true
	}
	return p.value, false, true
}

// setScalar stores v and returns the previous value.
func (n *storedNode) setScalar(prop PropertyDescriptor, v Value) (Value, error) {
	p, err := n.acquire(prop, false)
	if err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	old := p.value
	p.value = v
	return old, nil
}

func (n *storedNode) add(prop PropertyDescriptor, v Value) error {
	p, err := n.acquire(prop, true)
	if err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.collection.add(v)
	return nil
}

// remove drops one occurrence of v from the collection prop.
func (n *storedNode) remove(prop PropertyDescriptor, v Value) (bool, error) {
	p := n.lookup(prop)
	if p == nil {
		return false, nil
	}
	defer p.mu.Unlock()
	if !p.isCollection() {
		return false, shapeError(prop, false)
	}
	return p.collection.remove(v), nil
}

// collectionRefs returns the references held by the collection prop.
// exists is false when the node has no such property.
func (n *storedNode) collectionRefs(prop PropertyDescriptor) (refs []TypedRef, exists bool, err error) {
	p := n.lookup(prop)
	if p == nil {
		return nil, false, nil
	}
	defer p.mu.Unlock()
	if !p.isCollection() {
		return nil, true, shapeError(prop, false)
	}
	return p.collection.refs(), true, nil
}

func (n *storedNode) clear(prop PropertyDescriptor) error {
	p := n.lookup(prop)
	if p == nil {
		return nil
	}
	defer p.mu.Unlock()
	if !p.isCollection() {
		return shapeError(prop, false)
	}
	p.collection.clear()
	return nil
}

// propertyRefs returns the references prop holds, scalar or collection.
func (n *storedNode) propertyRefs(prop PropertyDescriptor) []TypedRef {
	p := n.lookup(prop)
	if p == nil {
		return nil
	}
	defer p.mu.Unlock()
	return p.refs()
}

// removeProperty drops prop entirely.
func (n *storedNode) removeProperty(prop PropertyDescriptor) {
	p := n.lookup(prop)
	if p == nil {
		return
	}
	defer p.mu.Unlock()
	n.detach(prop, p)
}

// allRefs returns every reference held by the node.
func (n *storedNode) allRefs() []TypedRef {
	var out []TypedRef
	for _, prop := range n.descriptors() {
		out = append(out, n.propertyRefs(prop)...)
	}
	return out
}

func (n *storedNode) isCollection(prop PropertyDescriptor) bool {
	p := n.lookup(prop)
	if p == nil {
		return false
	}
	defer p.mu.Unlock()
	return p.isCollection()
}

// collectionRead runs fn on the collection prop under its lock. ok is false
// when the node has no such property.
func (n *storedNode) collectionRead(prop PropertyDescriptor, fn func(c *collection)) (ok bool, err error) {
	p := n.lookup(prop)
	if p == nil {
		return false, nil
	}
	defer p.mu.Unlock()
	if !p.isCollection() {
		return true, shapeError(prop, false)
	}
	fn(p.collection)
	return true, nil
}

func (n *storedNode) isPropertyValueAssignableTo(prop PropertyDescriptor, typeName string, reg TypeRegistry) bool {
	v, isCollection, ok := n.scalar(prop)
	if !ok || isCollection {
		return false
	}
	return IsAssignable(v, typeName, reg)
}

func (n *storedNode) isCollectionMembersAssignableTo(prop PropertyDescriptor, typeName string, reg TypeRegistry) bool {
	assignable := true
	ok, err := n.collectionRead(prop, func(c *collection) {
		for _, bucket := range c.buckets {
			for _, e := range bucket {
				if !IsAssignable(e.value, typeName, reg) {
					assignable = false
					return
				}
			}
		}
	})
	if err != nil {
		return false
	}
	if !ok {
		return true
	}
	return assignable
}
