package repo

import (
	"context"
	"fmt"
	"iter"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/record"
	"github.com/odvcencio/strata/pkg/tree"
)

// ListTree yields the records under prefix in the tree of rev, with full
// paths. An empty rev lists HEAD.
func (r *Repo) ListTree(ctx context.Context, rev, prefix string) iter.Seq2[object.NodeRef, error] {
	return func(yield func(object.NodeRef, error) bool) {
		rootID, err := r.revTree(rev)
		if err != nil {
			yield(object.NodeRef{}, fmt.Errorf("ls-tree: %w", err))
			return
		}
		root, err := tree.Load(r.store, r.Params(), rootID)
		if err != nil {
			yield(object.NodeRef{}, fmt.Errorf("ls-tree: %w", err))
			return
		}
		for ref, err := range tree.Walk(ctx, root, prefix) {
			if !yield(ref, err) || err != nil {
				return
			}
		}
	}
}

// FindRecord looks path up in the tree of rev. An empty rev reads the
// current state: unstaged, then staged, then HEAD.
func (r *Repo) FindRecord(ctx context.Context, rev, path string) (object.NodeRef, bool, error) {
	if rev == "" {
		return r.lookup(ctx, path)
	}
	rootID, err := r.ResolveTree(rev)
	if err != nil {
		return object.NodeRef{}, false, err
	}
	root, err := tree.Load(r.store, r.Params(), rootID)
	if err != nil {
		return object.NodeRef{}, false, err
	}
	return tree.FindPath(ctx, root, path)
}

// ReadRecord returns the decoded record at path in rev.
func (r *Repo) ReadRecord(ctx context.Context, rev, path string) (*record.Record, object.NodeRef, error) {
	ref, found, err := r.FindRecord(ctx, rev, path)
	if err != nil {
		return nil, ref, fmt.Errorf("read record %s: %w", path, err)
	}
	if !found || ref.Type != object.TypeBlob {
		return nil, ref, fmt.Errorf("read record: %w: %s", ErrRecordNotFound, path)
	}
	blob, err := r.store.ReadBlob(ref.ObjectID)
	if err != nil {
		return nil, ref, fmt.Errorf("read record %s: %w", path, err)
	}
	rec, err := record.Decode(blob.Data)
	if err != nil {
		return nil, ref, fmt.Errorf("read record %s: %w", path, err)
	}
	return rec, ref, nil
}
