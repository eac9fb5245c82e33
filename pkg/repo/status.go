package repo

import (
	"context"
	"fmt"

	"github.com/odvcencio/strata/pkg/diff"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
	"github.com/odvcencio/strata/pkg/tree"
)

// Status summarizes pending work.
type Status struct {
	// Branch is the current branch, "" when HEAD is detached.
	Branch string
	// Head is the HEAD commit, NullID before the first commit.
	Head object.ID
	// Staged compares staged entries with HEAD.
	Staged []diff.Entry
	// Unstaged compares unstaged entries with their staged or HEAD state.
	Unstaged []diff.Entry
}

// Clean reports whether nothing is pending.
func (s *Status) Clean() bool {
	return len(s.Staged) == 0 && len(s.Unstaged) == 0
}

// Status compares the staging area with HEAD. Entries that would not
// change anything are omitted.
func (r *Repo) Status(ctx context.Context) (*Status, error) {
	st := &Status{}
	var err error
	if st.Branch, err = r.CurrentBranch(); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	headID, _, found, err := refs.Resolve(r.refs, refs.Head)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	if found {
		st.Head = headID
	}
	rootID, err := r.HeadTree()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	root, err := tree.Load(r.store, r.Params(), rootID)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	headLookup := func(path string) (object.NodeRef, bool, error) {
		return tree.FindPath(ctx, root, path)
	}
	for _, ref := range r.staging.Staged("") {
		e, changed, err := compareRef(ref, headLookup)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		if changed {
			st.Staged = append(st.Staged, e)
		}
	}

	stagedOrHead := func(path string) (object.NodeRef, bool, error) {
		if ref, ok := r.staging.FindStaged(path); ok {
			return ref, !ref.IsTombstone(), nil
		}
		return headLookup(path)
	}
	for _, ref := range r.staging.Unstaged("") {
		e, changed, err := compareRef(ref, stagedOrHead)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		if changed {
			st.Unstaged = append(st.Unstaged, e)
		}
	}
	return st, nil
}

// compareRef classifies a pending ref against its previous state.
func compareRef(ref object.NodeRef, previous func(string) (object.NodeRef, bool, error)) (diff.Entry, bool, error) {
	old, found, err := previous(ref.Path)
	if err != nil {
		return diff.Entry{}, false, err
	}
	switch {
	case ref.IsTombstone() && !found:
		return diff.Entry{}, false, nil
	case ref.IsTombstone():
		return diff.Entry{Old: &old, Change: diff.Removed}, true, nil
	case !found:
		return diff.Entry{New: &ref, Change: diff.Added}, true, nil
	case old.ObjectID == ref.ObjectID:
		return diff.Entry{}, false, nil
	default:
		return diff.Entry{Old: &old, New: &ref, Change: diff.Modified}, true, nil
	}
}

// Diff compares two revisions. An empty oldRev means the HEAD tree (empty
// before the first commit); an empty newRev means the tree the staged
// changes would produce on top of HEAD. Building that tree only writes
// pending objects.
func (r *Repo) Diff(ctx context.Context, oldRev, newRev string, opts diff.Options) ([]diff.Entry, error) {
	oldTree, err := r.revTree(oldRev)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	var newTree object.ID
	if newRev == "" {
		head, err := r.HeadTree()
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		if newTree, _, err = r.staging.BuildTree(ctx, head); err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
	} else if newTree, err = r.ResolveTree(newRev); err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	entries, err := diff.Collect(diff.Trees(ctx, r.store, r.Params(), oldTree, newTree, opts))
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return entries, nil
}

func (r *Repo) revTree(rev string) (object.ID, error) {
	if rev == "" {
		return r.HeadTree()
	}
	return r.ResolveTree(rev)
}
