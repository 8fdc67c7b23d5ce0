package modelstore

import (
	"fmt"
	"slices"
)

// TypeHierarchy describes a registered type's place in the type registry
// and how many nodes of the store are assignable to it.
type TypeHierarchy struct {
	Type        string
	Parents     []string // direct parents in declaration order
	Ancestors   []string // all supertypes, nearest first
	Children    []string // direct subtypes, sorted
	Descendants []string // all subtypes, sorted
	Instances   int      // nodes whose type is assignable to Type
}

// TypeHierarchy returns the hierarchy around typeName. Returns nil with no
// error if the type is not registered.
func (q *QueryBuilder) TypeHierarchy(typeName string) (*TypeHierarchy, error) {
	info, ok := q.registry.Lookup(typeName)
	if !ok {
		return nil, nil
	}

	h := &TypeHierarchy{
		Type:        typeName,
		Parents:     slices.Clone(info.Parents),
		Ancestors:   []string{},
		Children:    []string{},
		Descendants: []string{},
	}
	if h.Parents == nil {
		h.Parents = []string{}
	}

	// Ancestors by BFS over parent links.
	seen := map[string]bool{typeName: true}
	queue := slices.Clone(info.Parents)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		h.Ancestors = append(h.Ancestors, cur)
		if parent, ok := q.registry.Lookup(cur); ok {
			queue = append(queue, parent.Parents...)
		}
	}

	for _, name := range q.registry.Types() {
		if name == typeName || !q.registry.IsAssignable(name, typeName) {
			continue
		}
		h.Descendants = append(h.Descendants, name)
		if sub, ok := q.registry.Lookup(name); ok && slices.Contains(sub.Parents, typeName) {
			h.Children = append(h.Children, name)
		}
	}

	seq, err := q.ds.Scan("", "")
	if err != nil {
		return nil, fmt.Errorf("type hierarchy: %w", err)
	}
	for ref := range seq {
		if q.registry.IsAssignable(ref.Type, typeName) {
			h.Instances++
		}
	}
	return h, nil
}
