package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/strata/pkg/config"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

func TestCommitNothingToCommit(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.Commit(context.Background(), CommitOptions{Message: "empty"})
	assert.ErrorIs(t, err, ErrNothingToCommit)

	// Unstaged changes are not committed without All.
	insert(t, r, "a", "v: 1\n")
	_, err = r.Commit(context.Background(), CommitOptions{Message: "still empty"})
	assert.ErrorIs(t, err, ErrNothingToCommit)
}

func TestCommitBuildsHistory(t *testing.T) {
	r := newTestRepo(t)
	insert(t, r, "roads/r1", "name: High Street\nlanes: 2\n")
	first := commitAll(t, r, "add roads")

	assert.Empty(t, first.Parents)
	assert.Equal(t, testAuthor, first.Author)
	assert.Equal(t, testAuthor, first.Committer)
	assert.Equal(t, "add roads", first.Message)

	insert(t, r, "roads/r2", "name: Low Road\nlanes: 1\n")
	second := commitAll(t, r, "more roads")
	assert.Equal(t, []object.ID{first.ID}, second.Parents)
	assert.Greater(t, second.Timestamp, first.Timestamp)

	id, found, err := r.Refs().GetRef(refs.Master)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second.ID, id)

	stored, err := r.Objects().ReadCommit(second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.TreeID, stored.TreeID)

	rec, _, err := r.ReadRecord(context.Background(), "HEAD", "roads/r1")
	require.NoError(t, err)
	assert.Equal(t, "High Street", rec.Fields["name"])
	assert.Equal(t, int64(2), rec.Fields["lanes"])

	st, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Clean())
}

func TestCommitPromotesPendingObjects(t *testing.T) {
	r := newTestRepo(t)
	ref := insert(t, r, "a", "v: 1\n")

	ok, err := r.Objects().Exists(ref.ObjectID)
	require.NoError(t, err)
	assert.False(t, ok, "blob is pending before commit")

	c := commitAll(t, r, "a")

	pending, err := r.overlay.Pending()
	require.NoError(t, err)
	assert.Zero(t, pending)
	for _, id := range []object.ID{ref.ObjectID, ref.MetadataID, c.TreeID, c.ID} {
		ok, err := r.Objects().Exists(id)
		require.NoError(t, err)
		assert.True(t, ok, id.Short())
	}
}

func TestCommitOnlyStagedChanges(t *testing.T) {
	r := newTestRepo(t)
	insert(t, r, "a", "v: 1\n")
	insert(t, r, "b", "v: 2\n")
	n, err := r.Add("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = r.Commit(context.Background(), CommitOptions{Message: "only a"})
	require.NoError(t, err)

	_, _, err = r.ReadRecord(context.Background(), "HEAD", "b")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	st, err := r.Status(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Staged)
	require.Len(t, st.Unstaged, 1)
	assert.Equal(t, "b", st.Unstaged[0].Path())
}

func TestCommitCanceledLeavesRefs(t *testing.T) {
	r := newTestRepo(t)
	insert(t, r, "a", "v: 1\n")
	_, err := r.Add()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Commit(ctx, CommitOptions{Message: "never"})
	require.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)

	_, found, err := r.Refs().GetRef(refs.Master)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, r.Staging().CountStaged(""))

	_, err = r.Commit(context.Background(), CommitOptions{Message: "now"})
	assert.NoError(t, err)
}

func TestCommitProgressAndCancelMidway(t *testing.T) {
	r := newTestRepo(t)
	insert(t, r, "a", "v: 1\n")

	var phases []CommitPhase
	_, err := r.Commit(context.Background(), CommitOptions{
		Message:  "a",
		All:      true,
		Progress: func(p CommitPhase) { phases = append(phases, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, []CommitPhase{PhaseStaged, PhaseTreeWritten, PhaseObjects, PhaseRefs}, phases)

	head, err := r.ResolveRevision("HEAD")
	require.NoError(t, err)

	insert(t, r, "b", "v: 2\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = r.Commit(ctx, CommitOptions{
		Message: "b",
		All:     true,
		Progress: func(p CommitPhase) {
			if p == PhaseTreeWritten {
				cancel()
			}
		},
	})
	require.ErrorIs(t, err, ErrCanceled)

	after, err := r.ResolveRevision("HEAD")
	require.NoError(t, err)
	assert.Equal(t, head, after)
}

func TestCommitSigner(t *testing.T) {
	r := newTestRepo(t)
	insert(t, r, "a", "v: 1\n")

	var signed []byte
	c, err := r.Commit(context.Background(), CommitOptions{
		Message: "signed",
		All:     true,
		Signer: func(payload []byte) (string, error) {
			signed = payload
			return "test:" + object.HashBytes(payload).String(), nil
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, c.Signature)

	payload, err := object.CommitSigningPayload(c)
	require.NoError(t, err)
	assert.Equal(t, signed, payload)

	stored, err := r.Objects().ReadCommit(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Signature, stored.Signature)
}

func TestCommitSignerError(t *testing.T) {
	r := newTestRepo(t)
	insert(t, r, "a", "v: 1\n")
	boom := errors.New("no key")
	_, err := r.Commit(context.Background(), CommitOptions{
		Message: "x",
		All:     true,
		Signer:  func([]byte) (string, error) { return "", boom },
	})
	assert.ErrorIs(t, err, boom)
	_, found, _ := r.Refs().GetRef(refs.Master)
	assert.False(t, found)
}

func TestCommitExplicitIdentityAndTime(t *testing.T) {
	r := newTestRepo(t)
	insert(t, r, "a", "v: 1\n")
	author := object.Person{Name: "Grace", Email: "grace@example.com"}
	committer := object.Person{Name: "Bot", Email: "bot@example.com"}
	ts := int64(42_000)

	c, err := r.Commit(context.Background(), CommitOptions{
		Message: "x", All: true, Author: &author, Committer: &committer, Timestamp: &ts,
	})
	require.NoError(t, err)
	assert.Equal(t, author, c.Author)
	assert.Equal(t, committer, c.Committer)
	assert.Equal(t, ts, c.Timestamp)
}

func TestCommitIdentityFromConfig(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(t, dir)
	opts.StateResolver = nil
	r, err := Init(dir, opts)
	require.NoError(t, err)
	defer r.Close()

	// Nothing configured: the platform user name is the fallback.
	p, err := r.Identity()
	require.NoError(t, err)
	assert.Equal(t, object.Person{Name: "tester"}, p)

	require.NoError(t, r.SetIdentity(config.Global, object.Person{Name: "Global", Email: "g@example.com"}))
	require.NoError(t, r.Config().Put(config.Local, "user.name", "Local"))

	insert(t, r, "a", "v: 1\n")
	c := commitAll(t, r, "configured")
	assert.Equal(t, object.Person{Name: "Local", Email: "g@example.com"}, c.Author)
	assert.Equal(t, c.Author, c.Committer)
	assert.NotZero(t, c.Timestamp)

	require.NoError(t, r.Config().Put(config.Local, "committer.name", "CI"))
	insert(t, r, "b", "v: 2\n")
	c = commitAll(t, r, "ci")
	assert.Equal(t, "CI", c.Committer.Name)
	assert.Equal(t, "Local", c.Author.Name)
}

func TestCommitDeletion(t *testing.T) {
	r := newTestRepo(t)
	insert(t, r, "a", "v: 1\n")
	insert(t, r, "b", "v: 2\n")
	commitAll(t, r, "a and b")

	require.NoError(t, r.Delete(context.Background(), "a"))
	commitAll(t, r, "drop a")

	_, _, err := r.ReadRecord(context.Background(), "HEAD", "a")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, _, err = r.ReadRecord(context.Background(), "HEAD~1", "a")
	assert.NoError(t, err)
	_, _, err = r.ReadRecord(context.Background(), "HEAD", "b")
	assert.NoError(t, err)
}

func TestCommitOnUnbornBranch(t *testing.T) {
	r := newTestRepo(t)
	insert(t, r, "a", "v: 1\n")
	master := commitAll(t, r, "on master")

	require.NoError(t, r.SwitchBranch("dev"))
	insert(t, r, "b", "v: 2\n")
	dev := commitAll(t, r, "on dev")
	assert.Empty(t, dev.Parents)

	id, _, err := r.Refs().GetRef(refs.Master)
	require.NoError(t, err)
	assert.Equal(t, master.ID, id)
	id, _, err = r.Refs().GetRef(refs.BranchName("dev"))
	require.NoError(t, err)
	assert.Equal(t, dev.ID, id)
}

func TestCommitDetachedHead(t *testing.T) {
	r := newTestRepo(t)
	insert(t, r, "a", "v: 1\n")
	first := commitAll(t, r, "first")

	_, err := r.Refs().RemoveSymRef(refs.Head)
	require.NoError(t, err)
	_, err = r.Refs().PutRef(refs.Head, first.ID, object.NullID)
	require.NoError(t, err)

	insert(t, r, "b", "v: 2\n")
	second := commitAll(t, r, "detached")
	assert.Equal(t, []object.ID{first.ID}, second.Parents)

	id, found, err := r.Refs().GetRef(refs.Head)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second.ID, id)

	master, _, err := r.Refs().GetRef(refs.Master)
	require.NoError(t, err)
	assert.Equal(t, first.ID, master)

	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Empty(t, branch)
}
