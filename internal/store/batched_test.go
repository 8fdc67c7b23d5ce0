package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_PlaceholdersResolveOnCommit(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	createNode(t, s, "urn:doc#SPDXRef-gnrtd4", "SpdxDocument")

	b := NewBatch()
	pkg := b.NextID(IDKindElementRef)
	rel := b.NextID(IDKindElementRef)
	assert.True(t, IsPlaceholder(pkg))
	assert.False(t, IsPlaceholder("SPDXRef-gnrtd0"))

	b.Create(TypedRef{ID: pkg, Type: "Package"})
	b.Set(pkg, propName, "left-pad")
	b.Create(TypedRef{ID: rel, Type: "Relationship"})
	b.Set(rel, propFrom, Ref("urn:doc#SPDXRef-gnrtd4"))
	b.Add(rel, propTo, Ref(pkg))
	assert.Equal(t, 5, b.Len())

	mapping, err := CommitBatch(s, b)
	require.NoError(t, err)
	assert.Zero(t, b.Len())
	assert.Equal(t, "SPDXRef-gnrtd5", mapping[pkg])
	assert.Equal(t, "SPDXRef-gnrtd6", mapping[rel])

	got, ok, err := s.GetValue(mapping[pkg], propName)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "left-pad", got)

	values, err := s.CollectionValues(mapping[rel], propTo)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, TypedRef{ID: "SPDXRef-gnrtd5", Type: "Package"}, values[0])
	assert.Equal(t, 1, refCount(t, s, mapping[pkg]))
}

func TestBatch_StopsAtFirstError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := NewBatch()
	b.Create(TypedRef{ID: "urn:a", Type: "Package"})
	b.Add("urn:a", propTo, Ref("urn:ghost"))
	b.Create(TypedRef{ID: "urn:b", Type: "Package"})

	_, err := CommitBatch(s, b)
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, s.Exists("urn:a"))
	assert.False(t, s.Exists("urn:b"))
	assert.Zero(t, b.Len())

	// The transaction lock was released.
	require.NoError(t, WithCriticalSection(s, false, func() error { return nil }))
}

func TestBatch_UnsupportedKind(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := NewBatch()
	id := b.NextID(IDKindListed)
	b.Create(TypedRef{ID: id, Type: "ListedLicense"})

	_, err := CommitBatch(s, b)
	require.ErrorIs(t, err, ErrUnsupportedIDKind)
	assert.Zero(t, s.Size())
}

// =============================================================================
// Referrers, Digest, Copy
// =============================================================================

func TestReferrers(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	createNode(t, s, "urn:pkg", "Package")
	createNode(t, s, "urn:rel1", "Relationship")
	createNode(t, s, "urn:rel2", "Relationship")
	createNode(t, s, "urn:other", "Relationship")

	require.NoError(t, s.SetValue("urn:rel2", propFrom, Ref("urn:pkg")))
	require.NoError(t, s.AddToCollection("urn:rel1", propTo, Ref("URN:PKG")))
	require.NoError(t, s.SetValue("urn:other", propName, "urn:pkg"))

	refs, err := Referrers(s, "urn:pkg")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "urn:rel1", refs[0].ID)
	assert.Equal(t, "urn:rel2", refs[1].ID)

	_, err = Referrers(s, "urn:ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDigest_IgnoresIdentifierAndTracksContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	createNode(t, s, "urn:target", "File")

	build := func(id string, tags ...string) string {
		createNode(t, s, id, "Package")
		require.NoError(t, s.SetValue(id, propName, "left-pad"))
		require.NoError(t, s.SetValue(id, propFrom, Ref("urn:target")))
		for _, tag := range tags {
			require.NoError(t, s.AddToCollection(id, propTags, tag))
		}
		d, err := Digest(s, id)
		require.NoError(t, err)
		return d
	}

	a := build("urn:a", "x", "y")
	b := build("urn:b", "x", "y")
	c := build("urn:c", "y", "x")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "collection order is part of the content")

	require.NoError(t, s.SetValue("urn:b", propName, "right-pad"))
	b2, err := Digest(s, "urn:b")
	require.NoError(t, err)
	assert.NotEqual(t, a, b2)
}

func TestCopy_BetweenStores(t *testing.T) {
	t.Parallel()
	src := newTestStore(t)
	dst := newTestStore(t)

	createNode(t, src, "urn:f", "File")
	createNode(t, dst, "urn:f", "File")
	createNode(t, src, "urn:pkg", "Package")
	require.NoError(t, src.SetValue("urn:pkg", propName, "left-pad"))
	require.NoError(t, src.AddToCollection("urn:pkg", propTo, Ref("urn:f")))
	require.NoError(t, src.AddToCollection("urn:pkg", propTags, "a"))

	ref, err := Copy(dst, src, "URN:PKG")
	require.NoError(t, err)
	assert.Equal(t, "urn:pkg", ref.ID)

	want, err := Digest(src, "urn:pkg")
	require.NoError(t, err)
	got, err := Digest(dst, "urn:pkg")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, refCount(t, dst, "urn:f"))
}

func TestCopy_RollsBackOnMissingTarget(t *testing.T) {
	t.Parallel()
	src := newTestStore(t)
	dst := newTestStore(t)

	createNode(t, src, "urn:f", "File")
	createNode(t, src, "urn:pkg", "Package")
	require.NoError(t, src.AddToCollection("urn:pkg", propTo, Ref("urn:f")))

	_, err := Copy(dst, src, "urn:pkg")
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, dst.Exists("urn:pkg"))
}
