// Package storagetest holds a conformance suite for object.Backend
// implementations.
package storagetest

import (
	"bytes"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/strata/pkg/object"
)

// Opener returns a fresh, empty backend. The suite closes it.
type Opener func(t *testing.T) object.Backend

// Run exercises the Backend contract against backends from open.
func Run(t *testing.T, open Opener) {
	t.Run("PutGetExists", func(t *testing.T) { testPutGet(t, open(t)) })
	t.Run("PutIdempotent", func(t *testing.T) { testIdempotent(t, open(t)) })
	t.Run("Lookup", func(t *testing.T) { testLookup(t, open(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, open(t)) })
	t.Run("ForEachAndClear", func(t *testing.T) { testForEach(t, open(t)) })
	t.Run("Store", func(t *testing.T) { testStore(t, open(t)) })
}

func envelope(s string) (object.ID, []byte) {
	data := []byte(s)
	return object.HashObject(object.TypeBlob, data), append([]byte(fmt.Sprintf("blob %d\x00", len(data))), data...)
}

func testPutGet(t *testing.T, b object.Backend) {
	defer b.Close()
	id, raw := envelope("hello")

	ok, err := b.Exists(id)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = b.Get(id)
	assert.ErrorIs(t, err, object.ErrNotFound)

	require.NoError(t, b.Put(id, raw))
	ok, err = b.Exists(id)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := b.Get(id)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	big := bytes.Repeat([]byte("compressible "), 4096)
	bigID := object.HashObject(object.TypeBlob, big)
	require.NoError(t, b.Put(bigID, big))
	got, err = b.Get(bigID)
	require.NoError(t, err)
	assert.Equal(t, big, got)
}

func testIdempotent(t *testing.T, b object.Backend) {
	defer b.Close()
	id, raw := envelope("once")
	require.NoError(t, b.Put(id, raw))
	require.NoError(t, b.Put(id, raw))
	ids, err := b.Lookup(id.String()[:8])
	require.NoError(t, err)
	assert.Equal(t, []object.ID{id}, ids)
}

func testLookup(t *testing.T, b object.Backend) {
	defer b.Close()
	var all []object.ID
	for i := 0; i < 64; i++ {
		id, raw := envelope(fmt.Sprintf("obj-%d", i))
		require.NoError(t, b.Put(id, raw))
		all = append(all, id)
	}
	target := all[17]
	for _, n := range []int{1, 2, 3, 5, 8, 64} {
		prefix := target.String()[:n]
		ids, err := b.Lookup(prefix)
		require.NoError(t, err)
		assert.Contains(t, ids, target, "prefix %q", prefix)
		for _, id := range ids {
			assert.True(t, id.HasPrefix(prefix))
		}
		var want int
		for _, id := range all {
			if id.HasPrefix(prefix) {
				want++
			}
		}
		assert.Len(t, ids, want, "prefix %q", prefix)
	}
	ids, err := b.Lookup("")
	require.NoError(t, err)
	assert.Len(t, ids, len(all))
}

func testDelete(t *testing.T, b object.Backend) {
	defer b.Close()
	id, raw := envelope("doomed")
	require.NoError(t, b.Put(id, raw))
	require.NoError(t, b.Delete(id))
	ok, err := b.Exists(id)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, b.Delete(id))
}

func testForEach(t *testing.T, b object.Backend) {
	defer b.Close()
	lister, ok := b.(object.Lister)
	if !ok {
		t.Skip("backend does not implement object.Lister")
	}
	want := map[object.ID][]byte{}
	for i := 0; i < 10; i++ {
		id, raw := envelope(fmt.Sprintf("each-%d", i))
		require.NoError(t, b.Put(id, raw))
		want[id] = raw
	}
	got := map[object.ID][]byte{}
	require.NoError(t, lister.ForEach(func(id object.ID, raw []byte) error {
		got[id] = slices.Clone(raw)
		return nil
	}))
	assert.Equal(t, want, got)

	clearer, ok := b.(interface{ Clear() error })
	if !ok {
		return
	}
	require.NoError(t, clearer.Clear())
	ids, err := b.Lookup("")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testStore(t *testing.T, b object.Backend) {
	s := object.NewStore(b, nil)
	defer s.Close()

	blobID, err := s.WriteBlob(&object.Blob{Data: []byte("record")})
	require.NoError(t, err)
	tr := &object.TreeObj{Entries: []object.NodeRef{{Path: "r", ObjectID: blobID, Type: object.TypeBlob}}}
	treeID, err := s.WriteTree(tr)
	require.NoError(t, err)
	commitID, err := s.WriteCommit(&object.Commit{TreeID: treeID, Message: "m", Timestamp: 1})
	require.NoError(t, err)

	c, err := s.ReadCommit(commitID)
	require.NoError(t, err)
	assert.Equal(t, treeID, c.TreeID)

	resolved, err := s.ResolvePrefix(commitID.String()[:10])
	require.NoError(t, err)
	assert.Equal(t, commitID, resolved)
}
