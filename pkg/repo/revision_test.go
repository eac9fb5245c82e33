package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/strata/pkg/object"
)

func TestResolveRevision(t *testing.T) {
	r, cs := history(t)
	c1, c2, c3 := cs[0], cs[1], cs[2]
	require.NoError(t, r.CreateTag("v1", c1.ID, false))

	tests := map[string]object.ID{
		"":                  c3.ID,
		"HEAD":              c3.ID,
		"master":            c3.ID,
		"refs/heads/master": c3.ID,
		"HEAD^":             c2.ID,
		"HEAD~1":            c2.ID,
		"HEAD~2":            c1.ID,
		"HEAD^^":            c1.ID,
		"master~":           c2.ID,
		"HEAD~0":            c3.ID,
		"v1":                c1.ID,
		"refs/tags/v1":      c1.ID,
		c2.ID.String():      c2.ID,
		c2.ID.String()[:12]: c2.ID,
		c3.ID.String() + "^": c2.ID,
	}
	for rev, want := range tests {
		got, err := r.ResolveRevision(rev)
		require.NoError(t, err, rev)
		assert.Equal(t, want, got, rev)
	}
}

func TestResolveRevisionErrors(t *testing.T) {
	r, _ := history(t)
	for _, rev := range []string{"nope", "HEAD~3", "HEAD~x", "refs/heads/gone", "deadbeefdeadbeef"} {
		_, err := r.ResolveRevision(rev)
		assert.ErrorIs(t, err, ErrUnknownRevision, rev)
	}

	empty := newTestRepo(t)
	_, err := empty.ResolveRevision("HEAD")
	assert.ErrorIs(t, err, ErrUnknownRevision)
}

func TestResolveTreeAndCommit(t *testing.T) {
	r, cs := history(t)
	c2 := cs[1]

	id, err := r.ResolveTree("HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, c2.TreeID, id)

	id, err = r.ResolveTree(c2.TreeID.String())
	require.NoError(t, err)
	assert.Equal(t, c2.TreeID, id)

	c, err := r.ResolveCommit("HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, c2.ID, c.ID)

	_, err = r.ResolveCommit(c2.TreeID.String())
	assert.ErrorIs(t, err, ErrUnknownRevision)
}

func TestHeadTree(t *testing.T) {
	r, cs := history(t)
	id, err := r.HeadTree()
	require.NoError(t, err)
	assert.Equal(t, cs[2].TreeID, id)
}
