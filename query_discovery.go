package modelstore

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// --- Common Types ---

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByID       SortField = "id"
	SortByType     SortField = "type"
	SortByName     SortField = "name"
	SortByRefCount SortField = "ref_count"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// NodeFilter specifies which nodes to include. Zero fields match all.
type NodeFilter struct {
	Namespace    string   // case-insensitive identifier prefix
	Types        []string // exact type names, match any
	AssignableTo string   // type name the node's type must be assignable to
	Kinds        []IDKind // identifier families, match any
	Unreferenced bool     // only nodes nothing references
}

// --- Internal Helpers ---

func (q *QueryBuilder) collectNodes(filter NodeFilter, match func(NodeResult) bool) ([]NodeResult, error) {
	seq, err := q.ds.Scan(filter.Namespace, "")
	if err != nil {
		return nil, err
	}
	var out []NodeResult
	for ref := range seq {
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, ref.Type) {
			continue
		}
		if filter.AssignableTo != "" && !q.registry.IsAssignable(ref.Type, filter.AssignableTo) {
			continue
		}
		nr, err := q.nodeResult(ref)
		if err != nil {
			if !q.ds.Exists(ref.ID) {
				// Deleted after the scan snapshot was taken.
				continue
			}
			return nil, err
		}
		if len(filter.Kinds) > 0 && !slices.Contains(filter.Kinds, nr.IDKind) {
			continue
		}
		if filter.Unreferenced && nr.RefCount != 0 {
			continue
		}
		if match != nil && !match(nr) {
			continue
		}
		out = append(out, nr)
	}
	return out, nil
}

// compareNodes orders by field in the requested direction. Ties always
// break by identifier ascending so pages are stable.
func compareNodes(sort Sort) func(a, b NodeResult) int {
	byID := func(a, b NodeResult) int {
		return strings.Compare(strings.ToLower(a.ID), strings.ToLower(b.ID))
	}
	var primary func(a, b NodeResult) int
	switch sort.Field {
	case SortByType:
		primary = func(a, b NodeResult) int { return strings.Compare(a.Type, b.Type) }
	case SortByName:
		primary = func(a, b NodeResult) int { return strings.Compare(a.Name, b.Name) }
	case SortByRefCount:
		primary = func(a, b NodeResult) int { return cmp.Compare(a.RefCount, b.RefCount) }
	default:
		primary = byID
	}
	return func(a, b NodeResult) int {
		c := primary(a, b)
		if sort.Order == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return byID(a, b)
	}
}

func sortAndPage(nodes []NodeResult, sort Sort, page Pagination) *PagedResult[NodeResult] {
	slices.SortFunc(nodes, compareNodes(sort))

	page = page.normalize()
	total := len(nodes)
	start := min(page.Offset, total)
	end := min(start+page.Limit, total)
	items := nodes[start:end]
	if len(items) == 0 {
		items = []NodeResult{}
	}
	return &PagedResult[NodeResult]{Items: items, TotalCount: total}
}

// --- Discovery ---

// Nodes lists the nodes matching filter.
func (q *QueryBuilder) Nodes(filter NodeFilter, sort Sort, page Pagination) (*PagedResult[NodeResult], error) {
	nodes, err := q.collectNodes(filter, nil)
	if err != nil {
		return nil, fmt.Errorf("nodes: %w", err)
	}
	return sortAndPage(nodes, sort, page), nil
}

// Search lists the nodes matching filter whose identifier or name contains
// pattern, case-insensitively. An empty pattern returns an empty result.
func (q *QueryBuilder) Search(pattern string, filter NodeFilter, sort Sort, page Pagination) (*PagedResult[NodeResult], error) {
	if pattern == "" {
		return &PagedResult[NodeResult]{Items: []NodeResult{}}, nil
	}
	needle := strings.ToLower(pattern)
	nodes, err := q.collectNodes(filter, func(nr NodeResult) bool {
		return strings.Contains(strings.ToLower(nr.ID), needle) ||
			strings.Contains(strings.ToLower(nr.Name), needle)
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return sortAndPage(nodes, sort, page), nil
}

// TypeCount is the number of nodes of one type.
type TypeCount struct {
	Type  string
	Count int
}

// GraphSummary is a high-level overview of the store's contents.
type GraphSummary struct {
	NodeCount     int
	Types         []TypeCount    // sorted by count descending, then type
	Kinds         map[IDKind]int // nodes per identifier family
	TopReferenced []NodeResult   // most referenced nodes, at most topN
}

// Summary returns node counts per type and family and the topN most
// referenced nodes. Nodes with no references are never listed as top.
func (q *QueryBuilder) Summary(topN int) (*GraphSummary, error) {
	nodes, err := q.collectNodes(NodeFilter{}, nil)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	summary := &GraphSummary{
		NodeCount:     len(nodes),
		Types:         []TypeCount{},
		Kinds:         map[IDKind]int{},
		TopReferenced: []NodeResult{},
	}
	byType := map[string]int{}
	for _, nr := range nodes {
		byType[nr.Type]++
		summary.Kinds[nr.IDKind]++
	}
	for t, n := range byType {
		summary.Types = append(summary.Types, TypeCount{Type: t, Count: n})
	}
	slices.SortFunc(summary.Types, func(a, b TypeCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Type, b.Type)
	})

	if topN > 0 {
		referenced := slices.DeleteFunc(nodes, func(nr NodeResult) bool { return nr.RefCount <= 0 })
		top := sortAndPage(referenced, Sort{Field: SortByRefCount, Order: Desc}, Pagination{Limit: topN})
		summary.TopReferenced = top.Items
	}
	return summary, nil
}
