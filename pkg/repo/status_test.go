package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/strata/pkg/diff"
	"github.com/odvcencio/strata/pkg/object"
)

type change struct {
	path string
	kind diff.ChangeType
}

func changes(entries []diff.Entry) []change {
	out := make([]change, len(entries))
	for i, e := range entries {
		out[i] = change{e.Path(), e.Change}
	}
	return out
}

func TestStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Clean())
	assert.Equal(t, "master", st.Branch)
	assert.True(t, st.Head.IsNull())

	insert(t, r, "a", "v: 1\n")
	insert(t, r, "b", "v: 1\n")
	st, err = r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []change{{"a", diff.Added}, {"b", diff.Added}}, changes(st.Unstaged))
	assert.Empty(t, st.Staged)

	_, err = r.Add("a")
	require.NoError(t, err)
	st, err = r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []change{{"a", diff.Added}}, changes(st.Staged))
	assert.Equal(t, []change{{"b", diff.Added}}, changes(st.Unstaged))

	c := commitAll(t, r, "a and b")
	st, err = r.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Clean())
	assert.Equal(t, c.ID, st.Head)

	insert(t, r, "a", "v: 2\n")
	require.NoError(t, r.Delete(ctx, "b"))
	insert(t, r, "c", "v: 1\n")
	_, err = r.Add("c")
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, "c"))

	st, err = r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []change{{"c", diff.Added}}, changes(st.Staged))
	assert.Equal(t, []change{{"a", diff.Modified}, {"b", diff.Removed}, {"c", diff.Removed}}, changes(st.Unstaged))
	assert.False(t, st.Clean())
}

func TestStatusIgnoresNoOps(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	insert(t, r, "a", "v: 1\n")
	commitAll(t, r, "a")

	insert(t, r, "a", "v: 1\n")
	st, err := r.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Clean())

	_, err = r.Commit(ctx, CommitOptions{Message: "no-op", All: true})
	assert.ErrorIs(t, err, ErrNothingToCommit)
}

func TestDiffRevisions(t *testing.T) {
	r, cs := history(t)
	ctx := context.Background()

	entries, err := r.Diff(ctx, "HEAD~2", "HEAD", diff.Options{})
	require.NoError(t, err)
	assert.Equal(t, []change{{"rivers/v1", diff.Added}, {"roads/r2", diff.Added}}, changes(entries))

	entries, err = r.Diff(ctx, "HEAD", "HEAD~2", diff.Options{PathFilter: "roads"})
	require.NoError(t, err)
	assert.Equal(t, []change{{"roads/r2", diff.Removed}}, changes(entries))

	entries, err = r.Diff(ctx, cs[1].ID.String(), cs[1].TreeID.String(), diff.Options{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = r.Diff(ctx, "nope", "HEAD", diff.Options{})
	assert.ErrorIs(t, err, ErrUnknownRevision)
	_, err = r.Diff(ctx, "", "HEAD", diff.Options{PathFilter: "/x"})
	assert.Error(t, err)
}

func TestDiffStaged(t *testing.T) {
	r, _ := history(t)
	ctx := context.Background()

	insert(t, r, "roads/r1", "name: A1 (widened)\n")
	insert(t, r, "lakes/l1", "name: Coniston\n")
	entries, err := r.Diff(ctx, "", "", diff.Options{})
	require.NoError(t, err)
	assert.Empty(t, entries, "unstaged changes are not part of the staged tree")

	_, err = r.Add()
	require.NoError(t, err)
	entries, err = r.Diff(ctx, "", "", diff.Options{})
	require.NoError(t, err)
	assert.Equal(t, []change{{"lakes/l1", diff.Added}, {"roads/r1", diff.Modified}}, changes(entries))

	for _, e := range entries {
		if e.Change == diff.Modified {
			assert.NotEqual(t, e.Old.ObjectID, e.New.ObjectID)
			assert.Equal(t, object.TypeBlob, e.New.Type)
		}
	}
	// Computing the staged diff must not move any ref.
	head, err := r.ResolveCommit("HEAD")
	require.NoError(t, err)
	assert.Equal(t, "more roads", head.Message)
}
