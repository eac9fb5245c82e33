package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "repo", ".strata", "config"), ForHome(filepath.Join(dir, "home")))
}

func TestSplitKey(t *testing.T) {
	section, name, err := SplitKey("user.name")
	require.NoError(t, err)
	assert.Equal(t, "user", section)
	assert.Equal(t, "name", name)

	section, name, err = SplitKey("remote.origin.url")
	require.NoError(t, err)
	assert.Equal(t, "remote", section)
	assert.Equal(t, "origin.url", name)

	for _, bad := range []string{"", "user", ".name", "user.", "a.b\nc"} {
		_, _, err := SplitKey(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, "%q", bad)
	}
}

func TestPutGetUnset(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Get(Local, "user.name")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(Local, "user.name", "Ada"))
	v, ok, err := s.Get(Local, "user.name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ada", v)

	_, ok, err = s.Get(Global, "user.name")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := s.Unset(Local, "user.name")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Unset(Local, "user.name")
	require.NoError(t, err)
	assert.False(t, removed)

	entries, err := s.List(Local)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEmptyValueReadsAbsent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(Global, "user.email", ""))
	_, ok, err := s.Get(Global, "user.email")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupFallsBackToGlobal(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(Global, "user.name", "Global User"))
	require.NoError(t, s.Put(Global, "user.email", "g@example.com"))
	require.NoError(t, s.Put(Local, "user.name", "Local User"))

	v, ok, err := s.Lookup("user.name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Local User", v)

	v, ok, err = s.Lookup("user.email")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "g@example.com", v)

	_, ok, err = s.Lookup("core.missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Lookup("nodot")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDisabledScope(t *testing.T) {
	s := New("", ForHome(t.TempDir()))
	_, _, err := s.Get(Local, "user.name")
	assert.ErrorIs(t, err, ErrNoLocation)
	assert.ErrorIs(t, s.Put(Local, "user.name", "x"), ErrNoLocation)

	require.NoError(t, s.Put(Global, "user.name", "x"))
	v, ok, err := s.Lookup("user.name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestListAndFileFormat(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(Local, "user.name", "Ada"))
	require.NoError(t, s.Put(Local, "user.email", "ada@example.com"))
	require.NoError(t, s.Put(Local, "remote.origin.url", "https://example.com/r"))

	entries, err := s.List(Local)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Key: "user.name", Value: "Ada"},
		{Key: "user.email", Value: "ada@example.com"},
		{Key: "remote.origin.url", Value: "https://example.com/r"},
	}, entries)

	data, err := os.ReadFile(s.Path(Local))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[user]")
	assert.Contains(t, string(data), "[remote]")

	// A second store over the same files sees the values.
	other := New(s.Path(Local), s.Path(Global))
	v, ok, err := other.Get(Local, "remote.origin.url")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/r", v)

	removed, err := s.Unset(Local, "remote.origin.url")
	require.NoError(t, err)
	assert.True(t, removed)
	data, err = os.ReadFile(s.Path(Local))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "[remote]")
}
