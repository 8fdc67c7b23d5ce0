package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/modelstore/internal/store"
)

func newTestStore(t *testing.T) (*store.MemStore, *Registry) {
	t.Helper()
	reg := DefaultRegistry()
	s := store.NewMemStore(store.WithRegistry(reg))
	t.Cleanup(func() { s.Close() })
	return s, reg
}

func TestRegistry_IsAssignable(t *testing.T) {
	t.Parallel()
	reg := DefaultRegistry()

	assert.True(t, reg.IsAssignable("Package", "Package"))
	assert.True(t, reg.IsAssignable("Package", "Artifact"))
	assert.True(t, reg.IsAssignable("Package", "Element"))
	assert.True(t, reg.IsAssignable("ListedLicense", "AnyLicenseInfo"))
	assert.True(t, reg.IsAssignable("SpdxDocument", "Element"))
	assert.False(t, reg.IsAssignable("Element", "Package"))
	assert.False(t, reg.IsAssignable("Hash", "Element"))
	assert.False(t, reg.IsAssignable("Unregistered", "Element"))
}

func TestRegistry_MultipleParents(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	require.NoError(t, reg.Register(TypeInfo{Name: "A"}))
	require.NoError(t, reg.Register(TypeInfo{Name: "B"}))
	require.NoError(t, reg.Register(TypeInfo{Name: "C", Parents: []string{"A", "B"}}))
	require.NoError(t, reg.Register(TypeInfo{Name: "D", Parents: []string{"C"}}))

	assert.True(t, reg.IsAssignable("D", "B"))
	assert.True(t, reg.IsAssignable("D", "A"))
	assert.False(t, reg.IsAssignable("A", "B"))
}

func TestRegistry_RegisterErrors(t *testing.T) {
	t.Parallel()
	reg := DefaultRegistry()

	require.Error(t, reg.Register(TypeInfo{Name: "Package"}))
	require.Error(t, reg.Register(TypeInfo{}))
	assert.Contains(t, reg.Types(), "Relationship")
}

func TestRegistry_CreateAndConstruct(t *testing.T) {
	t.Parallel()
	s, reg := newTestStore(t)

	obj, err := reg.Create(s, "", "Package", SpecVersion, store.IDKindElementRef)
	require.NoError(t, err)
	assert.Equal(t, "SPDXRef-gnrtd0", obj.Ref().ID)
	pkg, ok := obj.(*Object)
	require.True(t, ok)
	assert.Equal(t, "Package", pkg.Type())

	rel, err := reg.Create(s, "urn:rel1", "Relationship", SpecVersion, store.IDKindUnknown)
	require.NoError(t, err)
	_, isRel := rel.(*Relationship)
	assert.True(t, isRel)

	again, err := reg.Construct(s, "URN:REL1")
	require.NoError(t, err)
	assert.Equal(t, "urn:rel1", again.Ref().ID)

	_, err = reg.Create(s, "urn:rel1", "Relationship", SpecVersion, store.IDKindUnknown)
	assert.ErrorIs(t, err, store.ErrDuplicateID)
	_, err = reg.Create(s, "urn:x", "Nope", SpecVersion, store.IDKindUnknown)
	require.Error(t, err)
	_, err = reg.Construct(s, "urn:missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestObject_SetConvertsModelObjects(t *testing.T) {
	t.Parallel()
	s, reg := newTestStore(t)

	fileObj, err := reg.Create(s, "urn:file", "File", SpecVersion, store.IDKindUnknown)
	require.NoError(t, err)
	pkgObj, err := reg.Create(s, "urn:pkg", "Package", SpecVersion, store.IDKindUnknown)
	require.NoError(t, err)
	pkg := pkgObj.(*Object)

	// The raw store refuses a model object.
	err = s.SetValue("urn:pkg", PropComment, fileObj)
	require.ErrorIs(t, err, store.ErrUnsupportedValueType)

	require.NoError(t, pkg.Set(PropComment, fileObj))
	require.NoError(t, pkg.Add(PropVerifiedUsing, fileObj))
	n, err := s.RefCount("urn:file")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	target, ok, err := pkg.GetObject(reg, PropComment)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "urn:file", target.Ref().ID)

	removed, err := pkg.Remove(PropVerifiedUsing, fileObj)
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, pkg.Unset(PropComment))
	n, err = s.RefCount("urn:file")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestObject_GetString(t *testing.T) {
	t.Parallel()
	s, reg := newTestStore(t)

	obj, err := reg.Create(s, "urn:pkg", "Package", SpecVersion, store.IDKindUnknown)
	require.NoError(t, err)
	pkg := obj.(*Object)

	name, err := pkg.GetString(PropName)
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, pkg.Set(PropName, "left-pad"))
	name, err = pkg.GetString(PropName)
	require.NoError(t, err)
	assert.Equal(t, "left-pad", name)

	require.NoError(t, pkg.Set(PropPackageVersion, 3))
	_, err = pkg.GetString(PropPackageVersion)
	assert.ErrorIs(t, err, store.ErrUnsupportedValueType)

	assert.True(t, pkg.Is(reg, "Artifact"))
	assert.False(t, pkg.Is(reg, "File"))
}

func TestRelationship_Link(t *testing.T) {
	t.Parallel()
	s, reg := newTestStore(t)

	doc, err := reg.Create(s, "urn:doc", "SpdxDocument", SpecVersion, store.IDKindUnknown)
	require.NoError(t, err)
	a, err := reg.Create(s, "urn:a", "Package", SpecVersion, store.IDKindUnknown)
	require.NoError(t, err)
	b, err := reg.Create(s, "urn:b", "File", SpecVersion, store.IDKindUnknown)
	require.NoError(t, err)
	obj, err := reg.Create(s, "", "Relationship", SpecVersion, store.IDKindElementRef)
	require.NoError(t, err)
	rel := obj.(*Relationship)

	require.NoError(t, rel.Link(doc, RelDescribes, a, b))

	from, ok, err := rel.From()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "urn:doc", from.ID)

	to, err := rel.To()
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "urn:a", to[0].ID)
	assert.Equal(t, "File", to[1].Type)

	ok, err = s.IsCollectionMembersAssignableTo(rel.ID(), PropTo, "Artifact")
	require.NoError(t, err)
	assert.True(t, ok)

	err = s.Delete("urn:a")
	assert.ErrorIs(t, err, store.ErrInUse)
	require.NoError(t, s.Delete(rel.ID()))
	require.NoError(t, s.Delete("urn:a"))
}
