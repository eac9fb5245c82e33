package staging

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/tree"
)

func newArea(t *testing.T) (*Area, *object.Store) {
	t.Helper()
	store := object.NewStore(object.NewMemoryBackend(), nil)
	return New(store, tree.DefaultParams()), store
}

func ref(path string) object.NodeRef {
	return object.NodeRef{Path: path, ObjectID: object.ForString(path), Type: object.TypeBlob}
}

func TestStageMovesEntry(t *testing.T) {
	a, _ := newArea(t)
	require.NoError(t, a.PutUnstaged(ref("Points/Points.1")))
	assert.Equal(t, 1, a.CountUnstaged(""))
	assert.Equal(t, 0, a.CountStaged(""))

	ok, err := a.Stage("Points/Points.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, a.CountUnstaged(""))
	assert.Equal(t, 1, a.CountStaged(""))

	got, found := a.FindStaged("Points/Points.1")
	require.True(t, found)
	assert.Equal(t, object.ForString("Points/Points.1"), got.ObjectID)
	_, found = a.FindUnstaged("Points/Points.1")
	assert.False(t, found)

	// Staging a path with no unstaged entry is a no-op.
	ok, err = a.Stage("Points/Points.2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, a.CountStaged(""))
}

func TestPutRejectsMalformedPaths(t *testing.T) {
	a, _ := newArea(t)
	for _, p := range []string{"", "/a", "a/", "a//b"} {
		assert.ErrorIs(t, a.PutUnstaged(ref(p)), tree.ErrMalformedPath, p)
	}
}

func TestPrefixQueriesAreSegmentWise(t *testing.T) {
	a, _ := newArea(t)
	for _, p := range []string{"Points/Points.1", "Points/Points.2", "Points.x", "PointsExtra/a", "Lines/Lines.1"} {
		require.NoError(t, a.PutUnstaged(ref(p)))
	}
	assert.Equal(t, 2, a.CountUnstaged("Points"))
	assert.Equal(t, 5, a.CountUnstaged(""))

	var paths []string
	for _, r := range a.Unstaged("Points") {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{"Points/Points.1", "Points/Points.2"}, paths)

	n, err := a.RemoveUnstaged("Points")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, a.CountUnstaged(""))
}

func TestStageMatching(t *testing.T) {
	a, _ := newArea(t)
	for _, p := range []string{"Points/Points.1", "Points/Points.2", "Lines/Lines.1", "Lines/sub/Lines.2", "Roads/r1"} {
		require.NoError(t, a.PutUnstaged(ref(p)))
	}

	n, err := a.StageMatching("Lines/**")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = a.StageMatching("Points/*.1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = a.StageMatching("Roads")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, 4, a.CountStaged(""))
	assert.Equal(t, 1, a.CountUnstaged(""))

	n, err = a.StageMatching()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, a.CountUnstaged(""))

	_, err = a.StageMatching("[unclosed")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestWriteTreeAppliesAndClears(t *testing.T) {
	ctx := context.Background()
	a, store := newArea(t)
	p := tree.DefaultParams()

	require.NoError(t, a.PutStaged(ref("Points/Points.1")))
	require.NoError(t, a.PutStaged(ref("Points/Points.2")))
	require.NoError(t, a.PutStaged(ref("Lines/Lines.1")))
	require.NoError(t, a.PutUnstaged(ref("Points/Points.3")))

	rootID, err := a.WriteTree(ctx, object.NullID)
	require.NoError(t, err)
	assert.Equal(t, 0, a.CountStaged(""))
	assert.Equal(t, 1, a.CountUnstaged(""), "unstaged entries never participate")

	root, err := tree.Load(store, p, rootID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, root.Size())
	_, found, err := tree.FindPath(ctx, root, "Points/Points.3")
	require.NoError(t, err)
	assert.False(t, found)

	// A tombstone removes the path; untouched entries survive.
	require.NoError(t, a.PutStaged(object.NodeRef{Path: "Points/Points.1", Type: object.TypeBlob}))
	nextID, err := a.WriteTree(ctx, rootID)
	require.NoError(t, err)
	next, err := tree.Load(store, p, nextID)
	require.NoError(t, err)
	_, found, err = tree.FindPath(ctx, next, "Points/Points.1")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = tree.FindPath(ctx, next, "Points/Points.2")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = tree.FindPath(ctx, next, "Lines/Lines.1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestWriteTreeNothingStagedReturnsBase(t *testing.T) {
	a, _ := newArea(t)
	id, err := a.WriteTree(context.Background(), object.NullID)
	require.NoError(t, err)
	assert.Equal(t, object.EmptyTreeID(), id)
}

func TestBuildTreeFailureKeepsStaged(t *testing.T) {
	a, _ := newArea(t)
	require.NoError(t, a.PutStaged(ref("a")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := a.BuildTree(ctx, object.NullID)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, a.CountStaged(""))

	_, _, err = a.BuildTree(context.Background(), object.ForString("missing tree"))
	require.ErrorIs(t, err, object.ErrNotFound)
	assert.Equal(t, 1, a.CountStaged(""))
}

func TestClearAppliedKeepsRestagedEntries(t *testing.T) {
	a, _ := newArea(t)
	require.NoError(t, a.PutStaged(ref("a")))
	require.NoError(t, a.PutStaged(ref("b")))

	_, applied, err := a.BuildTree(context.Background(), object.NullID)
	require.NoError(t, err)
	require.Len(t, applied, 2)

	changed := ref("b")
	changed.ObjectID = object.ForString("b v2")
	require.NoError(t, a.PutStaged(changed))

	require.NoError(t, a.ClearApplied(applied))
	remaining := a.Staged("")
	require.Len(t, remaining, 1)
	assert.Equal(t, changed.ObjectID, remaining[0].ObjectID)
}

func TestIndexPersistence(t *testing.T) {
	store := object.NewStore(object.NewMemoryBackend(), nil)
	path := filepath.Join(t.TempDir(), "index")

	a, err := Open(store, tree.DefaultParams(), path)
	require.NoError(t, err)
	require.NoError(t, a.PutUnstaged(ref("u/1")))
	spatial := ref("s/1")
	spatial.Bounds = &object.Bounds{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}
	require.NoError(t, a.PutStaged(spatial))

	b, err := Open(store, tree.DefaultParams(), path)
	require.NoError(t, err)
	got, found := b.FindStaged("s/1")
	require.True(t, found)
	assert.True(t, got.Equal(spatial))
	_, found = b.FindUnstaged("u/1")
	assert.True(t, found)

	require.NoError(t, b.Reset())
	c, err := Open(store, tree.DefaultParams(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, c.CountStaged("")+c.CountUnstaged(""))
}

func TestConcurrentStageIsAtomic(t *testing.T) {
	a, _ := newArea(t)
	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, a.PutUnstaged(ref(fmt.Sprintf("F/%d", i))))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	moved := 0
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				ok, err := a.Stage(fmt.Sprintf("F/%d", i))
				if err != nil {
					t.Error(err)
					return
				}
				if ok {
					mu.Lock()
					moved++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n, moved, "each path is staged exactly once")
	assert.Equal(t, n, a.CountStaged("F"))
	assert.Equal(t, 0, a.CountUnstaged(""))
}
