package modelstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/modelstore/internal/model"
)

// newGraphEngine builds a small document graph:
//
//	urn:doc           SpdxDocument, rootElement -> urn:app
//	urn:app           Package, verifiedUsing -> __anon__gnrtd0
//	urn:lib, urn:util Package
//	urn:readme        File
//	urn:rel-describes doc describes app
//	urn:rel-dep1      app dependsOn lib, util
//	urn:rel-dep2      lib dependsOn util
//	urn:rel-contains  app contains readme
func newGraphEngine(t *testing.T) *Engine {
	t.Helper()
	e := newTestEngine(t)

	create := func(id, typeName, name string) Referable {
		obj, err := e.Create(id, typeName, IDKindUnknown)
		require.NoError(t, err)
		if name != "" {
			require.NoError(t, obj.(*Object).Set(model.PropName, name))
		}
		return obj
	}
	doc := create("urn:doc", "SpdxDocument", "example")
	app := create("urn:app", "Package", "app")
	lib := create("urn:lib", "Package", "left-pad")
	util := create("urn:util", "Package", "util")
	readme := create("urn:readme", "File", "README")

	hash, err := e.Create("", "Hash", IDKindAnonymous)
	require.NoError(t, err)
	require.NoError(t, app.(*Object).Add(model.PropVerifiedUsing, hash))
	require.NoError(t, doc.(*Object).Set(model.PropRootElement, app))

	link := func(id string, from Referable, relType Individual, to ...Referable) {
		rel := create(id, "Relationship", "")
		require.NoError(t, rel.(*Relationship).Link(from, relType, to...))
	}
	link("urn:rel-describes", doc, model.RelDescribes, app)
	link("urn:rel-dep1", app, model.RelDependsOn, lib, util)
	link("urn:rel-dep2", lib, model.RelDependsOn, util)
	link("urn:rel-contains", app, model.RelContains, readme)
	return e
}

func nodeIDs(nodes []NodeResult) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestNode(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	n, err := q.Node("URN:APP")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "urn:app", n.ID)
	assert.Equal(t, "Package", n.Type)
	assert.Equal(t, "app", n.Name)
	assert.Equal(t, 4, n.RefCount)
	assert.Equal(t, IDKindUnknown, n.IDKind)

	n, err = q.Node("urn:missing")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestReferencesAndReferrers(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	edges, err := q.References("urn:rel-dep1")
	require.NoError(t, err)
	require.Len(t, edges, 3)
	assert.Equal(t, GraphEdge{From: "urn:rel-dep1", To: "urn:app", Property: model.PropFrom}, edges[0])
	assert.Equal(t, "urn:lib", edges[1].To)
	assert.Equal(t, "urn:util", edges[2].To)

	refs, err := q.Referrers("urn:util")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "urn:rel-dep1", refs[0].ID)
	assert.Equal(t, "urn:rel-dep2", refs[1].ID)

	refs, err = q.Referrers("urn:missing")
	require.NoError(t, err)
	assert.Nil(t, refs)
}

func TestNodeDetail(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	d, err := q.NodeDetail("urn:app")
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, 4, d.Node.RefCount)
	require.Len(t, d.Properties, 2)
	assert.Equal(t, model.PropName, d.Properties[0].Property)
	assert.False(t, d.Properties[0].Collection)
	assert.Equal(t, []Value{"app"}, d.Properties[0].Values)
	assert.Equal(t, model.PropVerifiedUsing, d.Properties[1].Property)
	assert.True(t, d.Properties[1].Collection)
	require.Len(t, d.Properties[1].Values, 1)
	assert.Equal(t, "__anon__gnrtd0", d.Properties[1].Values[0].(TypedRef).ID)

	var referrers []string
	for _, r := range d.Referrers {
		referrers = append(referrers, r.ID)
	}
	assert.Equal(t, []string{"urn:doc", "urn:rel-contains", "urn:rel-dep1", "urn:rel-describes"}, referrers)
	assert.Len(t, d.Digest, 64)

	d, err = q.NodeDetail("urn:missing")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestNodes_FilterSortPage(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	all, err := q.Nodes(NodeFilter{}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 10, all.TotalCount)
	assert.Equal(t, "__anon__gnrtd0", all.Items[0].ID)

	pkgs, err := q.Nodes(NodeFilter{Types: []string{"Package"}}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:app", "urn:lib", "urn:util"}, nodeIDs(pkgs.Items))

	artifacts, err := q.Nodes(NodeFilter{AssignableTo: "Artifact"}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:app", "urn:lib", "urn:readme", "urn:util"}, nodeIDs(artifacts.Items))

	anon, err := q.Nodes(NodeFilter{Kinds: []IDKind{IDKindAnonymous}}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"__anon__gnrtd0"}, nodeIDs(anon.Items))

	byRefs, err := q.Nodes(NodeFilter{AssignableTo: "Package"}, Sort{Field: SortByRefCount, Order: Desc}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:app", "urn:lib", "urn:util"}, nodeIDs(byRefs.Items))

	byName, err := q.Nodes(NodeFilter{Types: []string{"Package"}}, Sort{Field: SortByName}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:app", "urn:lib", "urn:util"}, nodeIDs(byName.Items))

	page, err := q.Nodes(NodeFilter{}, Sort{}, Pagination{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 10, page.TotalCount)
	assert.Equal(t, []string{"urn:app", "urn:doc"}, nodeIDs(page.Items))

	past, err := q.Nodes(NodeFilter{}, Sort{}, Pagination{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, past.Items)
	assert.NotNil(t, past.Items)

	ns, err := q.Nodes(NodeFilter{Namespace: "URN:REL-"}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 4, ns.TotalCount)
}

func TestPagination_Normalize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Pagination{Offset: 0, Limit: defaultLimit}, Pagination{Offset: -5}.normalize())
	assert.Equal(t, Pagination{Limit: maxLimit}, Pagination{Limit: 10000}.normalize())
}

func TestSearch(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	res, err := q.Search("PAD", NodeFilter{}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:lib"}, nodeIDs(res.Items))

	res, err = q.Search("rel-dep", NodeFilter{}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:rel-dep1", "urn:rel-dep2"}, nodeIDs(res.Items))

	res, err = q.Search("", NodeFilter{}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestSummary(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	s, err := q.Summary(2)
	require.NoError(t, err)
	assert.Equal(t, 10, s.NodeCount)
	assert.Equal(t, []TypeCount{
		{Type: "Relationship", Count: 4},
		{Type: "Package", Count: 3},
		{Type: "File", Count: 1},
		{Type: "Hash", Count: 1},
		{Type: "SpdxDocument", Count: 1},
	}, s.Types)
	assert.Equal(t, 1, s.Kinds[IDKindAnonymous])
	assert.Equal(t, 9, s.Kinds[IDKindUnknown])
	assert.Equal(t, []string{"urn:app", "urn:lib"}, nodeIDs(s.TopReferenced))
}

func TestReachable(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	g, err := q.Reachable("urn:rel-describes", 0)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)

	g, err = q.Reachable("urn:rel-describes", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Depth)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "urn:rel-describes", g.Nodes[0].Node.ID)
	assert.Equal(t, "urn:app", g.Nodes[1].Node.ID)
	assert.Equal(t, "urn:doc", g.Nodes[2].Node.ID)

	g, err = q.Reachable("urn:rel-describes", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Depth)
	require.Len(t, g.Nodes, 4)
	assert.Equal(t, GraphNode{Node: g.Nodes[3].Node, Depth: 2}, g.Nodes[3])
	assert.Equal(t, "__anon__gnrtd0", g.Nodes[3].Node.ID)
	// rel->doc, rel->app, doc->app, app->hash
	assert.Len(t, g.Edges, 4)

	_, err = q.Reachable("urn:app", -1)
	require.Error(t, err)

	g, err = q.Reachable("urn:missing", 3)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestDependents(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	g, err := q.Dependents("urn:util", 5)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "urn:rel-dep1", g.Nodes[1].Node.ID)
	assert.Equal(t, "urn:rel-dep2", g.Nodes[2].Node.ID)
	assert.Len(t, g.Edges, 2)

	g, err = q.Dependents("urn:app", 1)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 5)
}

func TestUnreferenced(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	res, err := q.Unreferenced(NodeFilter{}, Sort{}, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, []string{"urn:rel-contains", "urn:rel-dep1", "urn:rel-dep2", "urn:rel-describes"}, nodeIDs(res.Items))
}

func TestRelationships(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	all, err := q.Relationships("")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	deps, err := q.Relationships("dependsOn")
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, RelationshipEdge{
		Relationship: "urn:rel-dep1",
		Type:         model.RelDependsOn.URI,
		From:         "urn:app",
		To:           []string{"urn:lib", "urn:util"},
	}, deps[0])

	describes, err := q.Relationships(model.RelDescribes.URI)
	require.NoError(t, err)
	require.Len(t, describes, 1)
	assert.Equal(t, "urn:doc", describes[0].From)
}

func TestRelationshipCycles(t *testing.T) {
	t.Parallel()
	e := newGraphEngine(t)
	q := e.Query()

	cycles, err := q.RelationshipCycles("dependsOn")
	require.NoError(t, err)
	assert.Empty(t, cycles)
	assert.NotNil(t, cycles)

	util, err := e.Object("urn:util")
	require.NoError(t, err)
	app, err := e.Object("urn:app")
	require.NoError(t, err)
	rel, err := e.Create("urn:rel-cycle", "Relationship", IDKindUnknown)
	require.NoError(t, err)
	require.NoError(t, rel.(*Relationship).Link(util, model.RelDependsOn, app))

	cycles, err = q.RelationshipCycles("dependsOn")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"urn:app", "urn:lib", "urn:util", "urn:app"}}, cycles)

	// Cycles are per relationship type.
	cycles, err = q.RelationshipCycles("contains")
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestTypeHierarchy(t *testing.T) {
	t.Parallel()
	q := newGraphEngine(t).Query()

	h, err := q.TypeHierarchy("Artifact")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, []string{"Element"}, h.Parents)
	assert.Equal(t, []string{"Element"}, h.Ancestors)
	assert.Equal(t, []string{"File", "Package", "Snippet"}, h.Children)
	assert.Equal(t, []string{"File", "Package", "Snippet"}, h.Descendants)
	assert.Equal(t, 4, h.Instances)

	h, err = q.TypeHierarchy("ListedLicense")
	require.NoError(t, err)
	assert.Equal(t, []string{"License", "AnyLicenseInfo", "Element"}, h.Ancestors)
	assert.Empty(t, h.Children)

	h, err = q.TypeHierarchy("Element")
	require.NoError(t, err)
	assert.Empty(t, h.Parents)
	assert.Contains(t, h.Descendants, "SpdxDocument")
	assert.Contains(t, h.Children, "Artifact")
	assert.NotContains(t, h.Children, "Package")

	h, err = q.TypeHierarchy("NoSuchType")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestQueryBuilder_OverCatalog(t *testing.T) {
	t.Parallel()
	e := newCatalogEngine(t)
	q := NewQueryBuilder(e.Catalog(), e.Registry())

	res, err := q.Nodes(NodeFilter{AssignableTo: "License"}, Sort{}, Pagination{})
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalCount)
	assert.Equal(t, "https://spdx.org/licenses/Apache-2.0", res.Items[0].ID)
	assert.Equal(t, "Apache License 2.0", res.Items[0].Name)
	assert.Equal(t, IDKindListed, res.Items[0].IDKind)
	assert.Equal(t, -1, res.Items[0].RefCount)

	d, err := q.NodeDetail("https://spdx.org/licenses/mit")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Empty(t, d.Referrers)
}
