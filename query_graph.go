package modelstore

import (
	"fmt"
	"slices"
	"strings"
)

// Graph is the subgraph reachable from a root node. Nodes and edges are
// bulk-loaded then traversed with BFS.
type Graph struct {
	Root  string      // root node identifier
	Nodes []GraphNode // all nodes reached within depth, root first
	Edges []GraphEdge // all edges between reached nodes
	Depth int         // actual max depth reached (may be < maxDepth if graph is shallow)
}

// GraphNode is a node in the graph with its distance from the root.
type GraphNode struct {
	Node  NodeResult
	Depth int // BFS depth from root (0 = root itself)
}

// GraphEdge is a reference held by property Property of node From.
type GraphEdge struct {
	From     string
	To       string
	Property PropertyDescriptor
}

func (e GraphEdge) key() string {
	return strings.ToLower(e.From) + "\x00" + strings.ToLower(e.To) + "\x00" + e.Property.String()
}

// graphData holds the bulk-loaded adjacency maps, keyed by lowercased
// identifier.
type graphData struct {
	forward map[string][]GraphEdge // holder -> held
	reverse map[string][]GraphEdge // held -> holders
	refs    map[string]TypedRef
}

const maxGraphDepth = 100

// buildGraph loads every node's outgoing references into memory so the
// BFS does not issue one property read per visited node.
func (q *QueryBuilder) buildGraph() (*graphData, error) {
	seq, err := q.ds.Scan("", "")
	if err != nil {
		return nil, fmt.Errorf("build graph: scan: %w", err)
	}
	data := &graphData{
		forward: make(map[string][]GraphEdge),
		reverse: make(map[string][]GraphEdge),
		refs:    make(map[string]TypedRef),
	}
	for ref := range seq {
		edges, err := q.nodeEdges(ref.ID)
		if err != nil {
			if !q.ds.Exists(ref.ID) {
				continue
			}
			return nil, fmt.Errorf("build graph: %s: %w", ref.ID, err)
		}
		data.refs[strings.ToLower(ref.ID)] = ref
		for _, e := range edges {
			from, to := strings.ToLower(e.From), strings.ToLower(e.To)
			data.forward[from] = append(data.forward[from], e)
			data.reverse[to] = append(data.reverse[to], e)
		}
	}
	return data, nil
}

// Reachable returns every node reachable from id by following references
// up to maxDepth hops. maxDepth of 0 returns only the root node. Negative
// returns error. Capped at 100. Returns nil, nil if id does not exist.
func (q *QueryBuilder) Reachable(id string, maxDepth int) (*Graph, error) {
	g, err := q.walk(id, maxDepth, false)
	if err != nil {
		return nil, fmt.Errorf("reachable: %w", err)
	}
	return g, nil
}

// Dependents returns every node that reaches id by following references
// up to maxDepth hops, that is the transitive referrers. Same depth rules
// as Reachable.
func (q *QueryBuilder) Dependents(id string, maxDepth int) (*Graph, error) {
	g, err := q.walk(id, maxDepth, true)
	if err != nil {
		return nil, fmt.Errorf("dependents: %w", err)
	}
	return g, nil
}

// Unreferenced lists the nodes nothing references, the roots of the graph.
func (q *QueryBuilder) Unreferenced(filter NodeFilter, sort Sort, page Pagination) (*PagedResult[NodeResult], error) {
	filter.Unreferenced = true
	nodes, err := q.collectNodes(filter, nil)
	if err != nil {
		return nil, fmt.Errorf("unreferenced: %w", err)
	}
	return sortAndPage(nodes, sort, page), nil
}

func (q *QueryBuilder) walk(id string, maxDepth int, reverse bool) (*Graph, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("maxDepth must be non-negative, got %d", maxDepth)
	}
	maxDepth = min(maxDepth, maxGraphDepth)

	root, err := q.Node(id)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, nil
	}

	result := &Graph{
		Root:  root.ID,
		Nodes: []GraphNode{{Node: *root, Depth: 0}},
		Edges: []GraphEdge{},
	}
	if maxDepth == 0 {
		return result, nil
	}

	data, err := q.buildGraph()
	if err != nil {
		return nil, err
	}
	adjacency := data.forward
	if reverse {
		adjacency = data.reverse
	}
	next := func(e GraphEdge) string {
		if reverse {
			return strings.ToLower(e.From)
		}
		return strings.ToLower(e.To)
	}

	rootKey := strings.ToLower(root.ID)
	visited := map[string]int{rootKey: 0}
	type bfsEntry struct {
		key   string
		depth int
	}
	queue := []bfsEntry{{key: rootKey, depth: 0}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}
		for _, e := range adjacency[current.key] {
			k := next(e)
			if _, seen := visited[k]; seen {
				continue
			}
			d := current.depth + 1
			visited[k] = d
			result.Depth = max(result.Depth, d)
			queue = append(queue, bfsEntry{key: k, depth: d})
		}
	}

	var nodes []GraphNode
	for k, d := range visited {
		if k == rootKey {
			continue
		}
		ref, ok := data.refs[k]
		if !ok {
			continue
		}
		nr, err := q.nodeResult(ref)
		if err != nil {
			if !q.ds.Exists(ref.ID) {
				continue
			}
			return nil, err
		}
		nodes = append(nodes, GraphNode{Node: nr, Depth: d})
	}
	slices.SortFunc(nodes, func(a, b GraphNode) int {
		if a.Depth != b.Depth {
			return a.Depth - b.Depth
		}
		return strings.Compare(strings.ToLower(a.Node.ID), strings.ToLower(b.Node.ID))
	})
	result.Nodes = append(result.Nodes, nodes...)

	// An edge belongs to the subgraph when both of its ends were reached.
	seen := make(map[string]bool)
	for k := range visited {
		for _, e := range data.forward[k] {
			if _, ok := visited[strings.ToLower(e.To)]; !ok || seen[e.key()] {
				continue
			}
			seen[e.key()] = true
			result.Edges = append(result.Edges, e)
		}
	}
	slices.SortFunc(result.Edges, func(a, b GraphEdge) int {
		return strings.Compare(a.key(), b.key())
	})
	return result, nil
}
