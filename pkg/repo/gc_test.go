package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGCDiscardsOrphanedPending(t *testing.T) {
	r := newTestRepo(t)
	ref := insert(t, r, "a", "v: 1\n")

	s, err := r.GC()
	require.NoError(t, err)
	assert.Zero(t, s.PendingDiscarded, "pending objects still referenced")

	_, err = r.Reset("a")
	require.NoError(t, err)
	s, err = r.GC()
	require.NoError(t, err)
	assert.Equal(t, 2, s.PendingDiscarded)
	assert.False(t, s.ValueLogCompacted)

	ok, err := r.Store().Exists(ref.ObjectID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGCKeepsCommittedObjects(t *testing.T) {
	r := newTestRepo(t)
	ref := insert(t, r, "a", "v: 1\n")
	commitAll(t, r, "a")

	s, err := r.GC()
	require.NoError(t, err)
	assert.Zero(t, s.PendingDiscarded)

	rec, _, err := r.ReadRecord(context.Background(), "HEAD", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Fields["v"])
	ok, err := r.Objects().Exists(ref.ObjectID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGCBadger(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(t, dir)
	opts.Format.Storage.Backend = BackendBadger
	r, err := Init(dir, opts)
	require.NoError(t, err)
	defer r.Close()

	insert(t, r, "a", "v: 1\n")
	commitAll(t, r, "a")

	s, err := r.GC()
	require.NoError(t, err)
	assert.False(t, s.ValueLogCompacted, "a fresh value log has nothing to rewrite")

	rec, _, err := r.ReadRecord(context.Background(), "HEAD", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Fields["v"])
}
