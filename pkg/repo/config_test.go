package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/strata/pkg/config"
	"github.com/odvcencio/strata/pkg/object"
)

func TestSetIdentityScopes(t *testing.T) {
	r := newTestRepo(t)
	global := object.Person{Name: "Global User", Email: "global@example.com"}
	require.NoError(t, r.SetIdentity(config.Global, global))

	data, err := os.ReadFile(filepath.Join(r.Platform().UserHome, config.GlobalFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "global@example.com")

	name, found, err := r.Config().Lookup("user.name")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Global User", name)

	require.NoError(t, r.SetIdentity(config.Local, object.Person{Name: "Local User", Email: "local@example.com"}))
	assert.FileExists(t, filepath.Join(r.Dir, "config"))

	name, _, err = r.Config().Lookup("user.name")
	require.NoError(t, err)
	assert.Equal(t, "Local User", name)
}

func TestIdentityResolver(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(t, dir)
	opts.StateResolver = nil
	r, err := Init(dir, opts)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SetIdentity(config.Local, object.Person{Name: "Ada", Email: "ada@example.com"}))
	p, err := r.Identity()
	require.NoError(t, err)
	assert.Equal(t, object.Person{Name: "Ada", Email: "ada@example.com"}, p)
}
