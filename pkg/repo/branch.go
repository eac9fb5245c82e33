package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

var (
	ErrBranchExists   = errors.New("branch already exists")
	ErrBranchNotFound = errors.New("branch not found")
	ErrCurrentBranch  = errors.New("branch is checked out")
	ErrStagedChanges  = errors.New("staged changes present")
)

// CreateBranch creates refs/heads/<name> pointing at target. It fails with
// ErrBranchExists if the branch already exists.
func (r *Repo) CreateBranch(name string, target object.ID) error {
	ref := refs.BranchName(name)
	if err := refs.ValidateName(ref); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	if _, err := r.peelCommit(target); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	if _, err := refs.Update(r.refs, ref, target, "branch: created", object.NullID); err != nil {
		if errors.Is(err, refs.ErrPreconditionFailed) {
			return fmt.Errorf("create branch: %w: %q", ErrBranchExists, name)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	r.logger.Info("created branch", "branch", name, "target", target.String())
	return nil
}

// DeleteBranch removes refs/heads/<name>. The current branch cannot be
// deleted.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: %w: %q", ErrCurrentBranch, name)
	}
	ref := refs.BranchName(name)
	id, found, err := r.refs.GetRef(ref)
	if err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	if !found {
		return fmt.Errorf("delete branch: %w: %q", ErrBranchNotFound, name)
	}
	if _, err := r.refs.RemoveRef(ref, id); err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches returns the branches sorted by name.
func (r *Repo) ListBranches() ([]refs.Ref, error) {
	out, err := r.refs.List(refs.HeadsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return out, nil
}

// CurrentBranch returns the short name of the branch HEAD points at, or ""
// for a detached HEAD.
func (r *Repo) CurrentBranch() (string, error) {
	target, ok, err := r.refs.GetSymRef(refs.Head)
	if err != nil {
		if errors.Is(err, refs.ErrKindMismatch) {
			return "", nil
		}
		return "", fmt.Errorf("current branch: %w", err)
	}
	if !ok || !strings.HasPrefix(target, refs.HeadsPrefix) {
		return "", nil
	}
	return strings.TrimPrefix(target, refs.HeadsPrefix), nil
}

// SwitchBranch points HEAD at refs/heads/<name>. The branch may be unborn.
// Staged changes would silently move to the other branch, so they must be
// committed or reset first.
func (r *Repo) SwitchBranch(name string) error {
	ref := refs.BranchName(name)
	if err := refs.ValidateName(ref); err != nil {
		return fmt.Errorf("switch branch: %w", err)
	}
	if n := r.staging.CountStaged(""); n > 0 {
		return fmt.Errorf("switch branch: %w (%d entries)", ErrStagedChanges, n)
	}

	// A detached HEAD is a direct ref and must be removed first.
	if id, found, err := r.refs.GetRef(refs.Head); err == nil && found {
		if _, err := r.refs.RemoveRef(refs.Head, id); err != nil {
			return fmt.Errorf("switch branch: %w", err)
		}
	} else if err != nil && !errors.Is(err, refs.ErrKindMismatch) {
		return fmt.Errorf("switch branch: %w", err)
	}
	if _, err := r.refs.PutSymRef(refs.Head, ref); err != nil {
		return fmt.Errorf("switch branch: %w", err)
	}
	r.logger.Info("switched branch", "branch", name)
	return nil
}
