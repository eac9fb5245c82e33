package repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

func TestReadReflog(t *testing.T) {
	r, cs := history(t)

	entries, err := r.ReadReflog("", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, cs[2].ID, entries[0].New)
	assert.Equal(t, cs[1].ID, entries[0].Old)
	assert.Equal(t, object.NullID, entries[2].Old)
	assert.True(t, strings.HasPrefix(entries[0].Reason, "commit: more roads"), entries[0].Reason)
	for _, e := range entries {
		assert.Equal(t, refs.Master, e.Ref)
	}

	limited, err := r.ReadReflog("HEAD", 1)
	require.NoError(t, err)
	assert.Equal(t, entries[:1], limited)

	byName, err := r.ReadReflog("master", 0)
	require.NoError(t, err)
	assert.Equal(t, entries, byName)
}

func TestReadReflogBranchAndTag(t *testing.T) {
	r, cs := history(t)
	require.NoError(t, r.CreateBranch("dev", cs[0].ID))
	require.NoError(t, r.CreateTag("v1", cs[0].ID, false))

	dev, err := r.ReadReflog("dev", 0)
	require.NoError(t, err)
	require.Len(t, dev, 1)
	assert.Equal(t, "branch: created", dev[0].Reason)

	tag, err := r.ReadReflog("refs/tags/v1", 0)
	require.NoError(t, err)
	require.Len(t, tag, 1)
	assert.Equal(t, cs[0].ID, tag[0].New)

	none, err := r.ReadReflog("never", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
