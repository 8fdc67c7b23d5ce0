package modelstore

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jward/modelstore/internal/model"
)

// RelationshipEdge is one Relationship node read as a directed edge set.
type RelationshipEdge struct {
	Relationship string   // identifier of the Relationship node
	Type         string   // relationshipType individual URI, "" if unset
	From         string   // source node identifier, "" if unset
	To           []string // target node identifiers in insertion order
}

// matchesRelType reports whether uri names relType, given either as the
// full individual URI or as its local name such as "dependsOn".
func matchesRelType(uri, relType string) bool {
	if relType == "" {
		return true
	}
	if strings.EqualFold(uri, relType) {
		return true
	}
	local := uri[strings.LastIndexAny(uri, "/#")+1:]
	return strings.EqualFold(local, relType)
}

// Relationships returns every node assignable to Relationship whose type
// matches relType, sorted by relationship identifier. An empty relType
// matches all.
func (q *QueryBuilder) Relationships(relType string) ([]RelationshipEdge, error) {
	seq, err := q.ds.Scan("", "")
	if err != nil {
		return nil, fmt.Errorf("relationships: scan: %w", err)
	}

	edges := []RelationshipEdge{}
	for ref := range seq {
		if !q.registry.IsAssignable(ref.Type, "Relationship") {
			continue
		}
		edge := RelationshipEdge{Relationship: ref.ID, To: []string{}}

		v, ok, err := q.ds.GetValue(ref.ID, model.PropRelationshipType)
		if err != nil {
			if !q.ds.Exists(ref.ID) {
				continue
			}
			return nil, fmt.Errorf("relationships: %s: %w", ref.ID, err)
		}
		if ind, isInd := v.(Individual); ok && isInd {
			edge.Type = ind.URI
		}
		if !matchesRelType(edge.Type, relType) {
			continue
		}

		from, _, err := q.propertyValues(ref.ID, model.PropFrom)
		if err != nil {
			return nil, fmt.Errorf("relationships: %s: %w", ref.ID, err)
		}
		for _, v := range from {
			if r, ok := v.(TypedRef); ok {
				edge.From = r.ID
			}
		}
		to, _, err := q.propertyValues(ref.ID, model.PropTo)
		if err != nil {
			return nil, fmt.Errorf("relationships: %s: %w", ref.ID, err)
		}
		for _, v := range to {
			if r, ok := v.(TypedRef); ok {
				edge.To = append(edge.To, r.ID)
			}
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// RelationshipCycles detects cycles among the nodes linked by relationships
// of relType using Tarjan's strongly connected components algorithm.
// Returns a list of cycles, each a list of node identifiers with the first
// element repeated at the end. Returns empty list (not nil) for acyclic
// graphs.
func (q *QueryBuilder) RelationshipCycles(relType string) ([][]string, error) {
	rels, err := q.Relationships(relType)
	if err != nil {
		return nil, fmt.Errorf("relationship cycles: %w", err)
	}

	// Build adjacency list and detect self-loops.
	adj := map[string][]string{}
	selfLoops := map[string]bool{}
	var vertices []string
	addVertex := func(v string) {
		if _, ok := adj[v]; !ok {
			adj[v] = nil
			vertices = append(vertices, v)
		}
	}
	for _, rel := range rels {
		if rel.From == "" {
			continue
		}
		addVertex(rel.From)
		for _, to := range rel.To {
			addVertex(to)
			if to == rel.From {
				selfLoops[to] = true
			}
			adj[rel.From] = append(adj[rel.From], to)
		}
	}
	slices.Sort(vertices)

	// Tarjan's SCC algorithm.
	type nodeInfo struct {
		index   int
		lowlink int
		onStack bool
	}
	info := map[string]*nodeInfo{}
	index := 0
	var stack []string
	result := [][]string{}

	var strongconnect func(v string)
	strongconnect = func(v string) {
		ni := &nodeInfo{index: index, lowlink: index, onStack: true}
		info[v] = ni
		index++
		stack = append(stack, v)

		for _, w := range adj[v] {
			wInfo, visited := info[w]
			if !visited {
				strongconnect(w)
				ni.lowlink = min(ni.lowlink, info[w].lowlink)
			} else if wInfo.onStack {
				ni.lowlink = min(ni.lowlink, wInfo.index)
			}
		}

		if ni.lowlink != ni.index {
			return
		}
		var scc []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			info[w].onStack = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if len(scc) == 1 && !selfLoops[scc[0]] {
			return
		}
		// Tarjan pops in reverse.
		slices.Reverse(scc)
		scc = append(scc, scc[0])
		result = append(result, scc)
	}

	for _, v := range vertices {
		if _, visited := info[v]; !visited {
			strongconnect(v)
		}
	}

	slices.SortFunc(result, func(a, b []string) int {
		return strings.Compare(a[0], b[0])
	})
	return result, nil
}
