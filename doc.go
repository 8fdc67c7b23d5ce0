// Package modelstore is an in-memory, concurrent, typed property graph for
// SPDX-style document objects. Nodes are identified by case-insensitive
// identifiers, carry a type name and a spec version, and hold named
// properties whose values are scalars, enumeration individuals, references
// to other nodes, or ordered collections of those.
//
// # Store
//
// The store keeps a reference count per node: every reference held by
// another node's property counts once, and a node that is still referenced
// cannot be deleted ([ErrInUse]). Reference counts move together with the
// property writes that change them, so concurrent writers never observe a
// count that disagrees with the graph.
//
// Identifiers are generated per family with [DataStore] GetNextID:
//
//   - anonymous: __anon__gnrtd0, __anon__gnrtd1, ...
//   - license-ref: LicenseRef-gnrtd0, ...
//   - document-ref: DocumentRef-gnrtd0, ...
//   - element-ref: SPDXRef-gnrtd0, ...
//
// Creating a node whose identifier already follows a family pattern moves
// that family's counter past it, so generated identifiers never collide.
//
// # Usage
//
//	e, err := modelstore.New(modelstore.WithCatalog("licenses.db"))
//	if err != nil { ... }
//	defer e.Close()
//
//	pkg, err := e.Create("urn:doc#pkg", "Package", modelstore.IDKindUnknown)
//	err = e.Store().SetValue(pkg.Ref().ID, modelstore.Prop(modelstore.CoreNS, "name"), "left-pad")
//	mit, err := e.ImportListed("MIT")
//
// Graph-building logic can also live in Risor scripts run with
// [Engine.RunScript] or [Engine.RunScripts]; see the internal/runtime
// package for the globals exposed to scripts.
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] reads the graph:
//
//   - [QueryBuilder.NodeDetail] returns a node with all property values and
//     the nodes referencing it.
//   - [QueryBuilder.Nodes] and [QueryBuilder.Search] list nodes with
//     filtering, sorting and pagination.
//   - [QueryBuilder.Reachable] and [QueryBuilder.Dependents] walk outgoing
//     and incoming references breadth first.
//   - [QueryBuilder.Relationships] and [QueryBuilder.RelationshipCycles]
//     read Relationship nodes as a graph of edges.
//   - [QueryBuilder.TypeHierarchy] describes a registered type.
package modelstore
