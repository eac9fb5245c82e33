package tree

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/strata/pkg/object"
)

func blobRef(path string) object.NodeRef {
	return object.NodeRef{Path: path, ObjectID: object.ForString(path), Type: object.TypeBlob}
}

func tombstone(path string) object.NodeRef {
	return object.NodeRef{Path: path, Type: object.TypeBlob}
}

func TestSplitPath(t *testing.T) {
	segs, err := SplitPath("Points/Points.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Points", "Points.1"}, segs)

	for _, bad := range []string{"", "/a", "a/", "a//b", "/"} {
		_, err := SplitPath(bad)
		assert.ErrorIs(t, err, ErrMalformedPath, bad)
	}
}

func TestHasPathPrefix(t *testing.T) {
	assert.True(t, HasPathPrefix("Points/Points.1", "Points"))
	assert.True(t, HasPathPrefix("Points", "Points"))
	assert.True(t, HasPathPrefix("anything", ""))
	assert.False(t, HasPathPrefix("PointsExtra/x", "Points"))
	assert.False(t, HasPathPrefix("Lines/x", "Points"))
}

func TestApplyChangesNamespaces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	p := testParams["tiny"]
	base := Empty(store, p)

	root, err := ApplyChanges(ctx, base, []object.NodeRef{
		blobRef("Points/Points.1"),
		blobRef("Points/Points.2"),
		blobRef("Lines/Lines.1"),
	})
	require.NoError(t, err)
	// The root holds one entry per namespace.
	assert.EqualValues(t, 2, root.Size())

	ns, found, err := root.Get("Points")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, object.TypeTree, ns.Type)

	ref, found, err := FindPath(ctx, root, "Points/Points.2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Points/Points.2", ref.Path)
	assert.Equal(t, object.ForString("Points/Points.2"), ref.ObjectID)

	_, found, err = FindPath(ctx, root, "Points/Points.3")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = FindPath(ctx, root, "Points/Points.1/deeper")
	require.NoError(t, err)
	assert.False(t, found)

	var paths []string
	for e, err := range Walk(ctx, root, "") {
		require.NoError(t, err)
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"Points/Points.1", "Points/Points.2", "Lines/Lines.1"}, paths)

	paths = nil
	for e, err := range Walk(ctx, root, "Points") {
		require.NoError(t, err)
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"Points/Points.1", "Points/Points.2"}, paths)

	// Deleting the last entry of a namespace removes the namespace.
	root, err = ApplyChanges(ctx, root, []object.NodeRef{tombstone("Lines/Lines.1")})
	require.NoError(t, err)
	assert.EqualValues(t, 1, root.Size())
	_, found, err = root.Get("Lines")
	require.NoError(t, err)
	assert.False(t, found)

	// Tombstones for paths that never existed change nothing.
	again, err := ApplyChanges(ctx, root, []object.NodeRef{tombstone("Nowhere/x"), tombstone("Points/Points.9")})
	require.NoError(t, err)
	assert.Equal(t, root.ID(), again.ID())
}

func TestApplyChangesMatchesDirectBuild(t *testing.T) {
	ctx := context.Background()
	for name, p := range testParams {
		t.Run(name, func(t *testing.T) {
			store := newTestStore()
			var changes []object.NodeRef
			for i := 0; i < 300; i++ {
				changes = append(changes, blobRef(fmt.Sprintf("F.%d", i)))
			}
			a, err := ApplyChanges(ctx, Empty(store, p), changes)
			require.NoError(t, err)

			m := NewMutable(store, p)
			for _, c := range changes {
				require.NoError(t, m.Put(c))
			}
			b, err := m.Persist()
			require.NoError(t, err)
			assert.Equal(t, b.ID(), a.ID())
		})
	}
}

func TestApplyChangesRejectsConflicts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	p := DefaultParams()

	_, err := ApplyChanges(ctx, Empty(store, p), []object.NodeRef{blobRef("a"), blobRef("a/b")})
	assert.ErrorIs(t, err, ErrMalformedPath)

	root, err := ApplyChanges(ctx, Empty(store, p), []object.NodeRef{blobRef("a")})
	require.NoError(t, err)
	_, err = ApplyChanges(ctx, root, []object.NodeRef{blobRef("a/b")})
	assert.ErrorIs(t, err, ErrMalformedPath)

	_, err = ApplyChanges(ctx, root, []object.NodeRef{blobRef("bad//path")})
	assert.ErrorIs(t, err, ErrMalformedPath)

	nested, err := ApplyChanges(ctx, Empty(store, p), []object.NodeRef{blobRef("roads/r1"), blobRef("roads/r2")})
	require.NoError(t, err)
	_, err = ApplyChanges(ctx, nested, []object.NodeRef{blobRef("roads")})
	assert.ErrorIs(t, err, ErrMalformedPath)
	ref, found, err := FindPath(ctx, nested, "roads/r1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, object.ForString("roads/r1"), ref.ObjectID)
}

func TestApplyChangesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ApplyChanges(ctx, Empty(newTestStore(), DefaultParams()), []object.NodeRef{blobRef("a")})
	assert.ErrorIs(t, err, context.Canceled)
}
