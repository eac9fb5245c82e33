package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

var (
	// ErrNothingToCommit is returned when the staged tree equals HEAD's.
	ErrNothingToCommit = errors.New("nothing to commit")
	// ErrCanceled is returned when a commit is abandoned because its
	// context ended. It wraps the context error.
	ErrCanceled = errors.New("operation canceled")
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in Commit.Signature.
type CommitSigner func(payload []byte) (string, error)

// CommitPhase names the step a commit has reached.
type CommitPhase int

const (
	PhaseStaged      CommitPhase = iota // staging settled
	PhaseTreeWritten                    // new root tree persisted
	PhaseObjects                        // pending objects promoted
	PhaseRefs                           // branch advanced
)

func (p CommitPhase) String() string {
	switch p {
	case PhaseStaged:
		return "staged"
	case PhaseTreeWritten:
		return "tree written"
	case PhaseObjects:
		return "objects promoted"
	case PhaseRefs:
		return "refs updated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CommitOptions configure Commit. Unset identity and time fields are filled
// in by the repository's StateResolver.
type CommitOptions struct {
	Author    *object.Person
	Committer *object.Person
	Message   string
	// Timestamp in Unix milliseconds.
	Timestamp *int64
	// All stages every unstaged change first.
	All    bool
	Signer CommitSigner
	// Progress is called as each phase completes.
	Progress func(CommitPhase)
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return nil
}

// Commit records the staged changes as a new commit on the current branch.
//
//  1. Stage everything if opts.All
//  2. Resolve HEAD to the parent commit (if any) and its root tree
//  3. Build the new root from staging; equal roots fail with ErrNothingToCommit
//  4. Build and optionally sign the commit object
//  5. Promote pending objects and write the commit
//  6. Advance the branch with a compare-and-swap against the parent
//  7. Drop the staged entries that went into the commit
//
// Cancellation before step 6 returns ErrCanceled and leaves refs untouched.
func (r *Repo) Commit(ctx context.Context, opts CommitOptions) (*object.Commit, error) {
	start := time.Now()
	progress := opts.Progress
	if progress == nil {
		progress = func(CommitPhase) {}
	}

	if opts.All {
		if _, err := r.staging.StageMatching(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}
	if err := canceled(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	progress(PhaseStaged)

	parentID, branch, hasParent, err := refs.Resolve(r.refs, refs.Head)
	if err != nil {
		return nil, fmt.Errorf("commit: resolve HEAD: %w", err)
	}
	baseTree := object.EmptyTreeID()
	var parents []object.ID
	if hasParent {
		parent, err := r.store.ReadCommit(parentID)
		if err != nil {
			return nil, fmt.Errorf("commit: read parent: %w", err)
		}
		baseTree = parent.TreeID
		parents = []object.ID{parentID}
	}

	treeID, applied, err := r.staging.BuildTree(ctx, baseTree)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("commit: %w", canceled(ctx))
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	if treeID == baseTree {
		return nil, fmt.Errorf("commit: %w", ErrNothingToCommit)
	}
	if err := canceled(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	progress(PhaseTreeWritten)

	c, err := r.buildCommit(treeID, parents, opts)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if err := canceled(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	promoted, err := r.overlay.Promote(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("commit: %w", canceled(ctx))
		}
		return nil, fmt.Errorf("commit: promote objects: %w", err)
	}
	r.metrics.ObjectsPromoted(promoted)
	r.logger.Debug("promoted pending objects", "count", promoted)

	if _, err := r.objects.Put(c); err != nil {
		return nil, fmt.Errorf("commit: write commit: %w", err)
	}
	progress(PhaseObjects)
	if err := canceled(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	expected := object.NullID
	if hasParent {
		expected = parentID
	}
	if _, err := refs.Update(r.refs, branch, c.ID, "commit: "+summary(c.Message), expected); err != nil {
		if !errors.Is(err, refs.ErrReflogAppend) {
			return nil, fmt.Errorf("commit: update ref %q: %w", branch, err)
		}
		r.logger.Warn("reflog append failed", "ref", branch, "err", err)
	}
	if branch != refs.Head {
		if err := r.pointHead(branch); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}
	progress(PhaseRefs)

	if err := r.staging.ClearApplied(applied); err != nil {
		return nil, fmt.Errorf("commit: clear staged: %w", err)
	}

	r.metrics.CommitCreated(start)
	r.logger.Info("created commit", "id", c.ID.String(), "ref", branch, "changes", len(applied))
	return c, nil
}

func (r *Repo) buildCommit(treeID object.ID, parents []object.ID, opts CommitOptions) (*object.Commit, error) {
	c := &object.Commit{
		TreeID:  treeID,
		Parents: parents,
		Message: opts.Message,
	}
	if opts.Author != nil {
		c.Author = *opts.Author
	} else {
		p, err := r.resolver.Author()
		if err != nil {
			return nil, err
		}
		c.Author = p
	}
	if opts.Committer != nil {
		c.Committer = *opts.Committer
	} else if opts.Author != nil {
		c.Committer = *opts.Author
	} else {
		p, err := r.resolver.Committer()
		if err != nil {
			return nil, err
		}
		c.Committer = p
	}
	if opts.Timestamp != nil {
		c.Timestamp = *opts.Timestamp
	} else {
		c.Timestamp = r.resolver.Now()
	}

	if opts.Signer != nil {
		payload, err := object.CommitSigningPayload(c)
		if err != nil {
			return nil, fmt.Errorf("sign commit: %w", err)
		}
		sig, err := opts.Signer(payload)
		if err != nil {
			return nil, fmt.Errorf("sign commit: %w", err)
		}
		c.Signature = sig
	}
	return c, nil
}

// pointHead makes HEAD a symbolic ref to branch unless it already is.
func (r *Repo) pointHead(branch string) error {
	cur, ok, err := r.refs.GetSymRef(refs.Head)
	if err != nil && !errors.Is(err, refs.ErrKindMismatch) {
		return fmt.Errorf("read HEAD: %w", err)
	}
	if ok && cur == branch {
		return nil
	}
	if _, err := r.refs.PutSymRef(refs.Head, branch); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	return nil
}

// summary returns the first line of a commit message.
func summary(msg string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	return line
}
