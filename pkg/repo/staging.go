package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/record"
	"github.com/odvcencio/strata/pkg/tree"
)

// ErrRecordNotFound is returned when a path names no record.
var ErrRecordNotFound = errors.New("record not found")

// Insert parses data as a YAML or JSON record, stores it and its schema as
// pending blobs and records the change as unstaged at path.
func (r *Repo) Insert(path string, data []byte) (object.NodeRef, error) {
	rec, err := record.Parse(data)
	if err != nil {
		return object.NodeRef{}, fmt.Errorf("insert %s: %w", path, err)
	}
	return r.InsertRecord(path, rec)
}

// InsertRecord is Insert for an already parsed record.
func (r *Repo) InsertRecord(path string, rec *record.Record) (object.NodeRef, error) {
	if _, err := tree.SplitPath(path); err != nil {
		return object.NodeRef{}, fmt.Errorf("insert: %w", err)
	}
	if cur, found, err := r.lookup(context.Background(), path); err != nil {
		return object.NodeRef{}, fmt.Errorf("insert %s: %w", path, err)
	} else if found && cur.Type == object.TypeTree {
		return object.NodeRef{}, fmt.Errorf("insert: %w: %q is a namespace", tree.ErrMalformedPath, path)
	}
	payload, err := rec.Encode()
	if err != nil {
		return object.NodeRef{}, fmt.Errorf("insert %s: %w", path, err)
	}
	blobID, err := r.store.WriteBlob(&object.Blob{Data: payload})
	if err != nil {
		return object.NodeRef{}, fmt.Errorf("insert %s: %w", path, err)
	}
	schema, err := record.EncodeSchema(rec.Schema())
	if err != nil {
		return object.NodeRef{}, fmt.Errorf("insert %s: %w", path, err)
	}
	schemaID, err := r.store.WriteBlob(&object.Blob{Data: schema})
	if err != nil {
		return object.NodeRef{}, fmt.Errorf("insert %s: %w", path, err)
	}
	ref, err := rec.Ref(path, blobID, schemaID)
	if err != nil {
		return object.NodeRef{}, fmt.Errorf("insert: %w", err)
	}
	if err := r.staging.PutUnstaged(ref); err != nil {
		return object.NodeRef{}, fmt.Errorf("insert %s: %w", path, err)
	}
	r.logger.Debug("inserted record", "path", path, "id", blobID.String())
	return ref, nil
}

// Delete records the removal of path as an unstaged tombstone. The path
// must exist in HEAD or in the staging area.
func (r *Repo) Delete(ctx context.Context, path string) error {
	if _, err := tree.SplitPath(path); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	ref, found, err := r.lookup(ctx, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if !found || ref.Type != object.TypeBlob {
		return fmt.Errorf("delete: %w: %s", ErrRecordNotFound, path)
	}
	if err := r.staging.PutUnstaged(object.NodeRef{Path: path, Type: object.TypeBlob}); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Add stages unstaged changes matching patterns (path prefixes or
// doublestar globs). No patterns stages everything.
func (r *Repo) Add(patterns ...string) (int, error) {
	n, err := r.staging.StageMatching(patterns...)
	if err != nil {
		return n, fmt.Errorf("add: %w", err)
	}
	return n, nil
}

// lookup finds the current state of path: unstaged, then staged, then
// HEAD. A tombstone reads as not found.
func (r *Repo) lookup(ctx context.Context, path string) (object.NodeRef, bool, error) {
	if ref, ok := r.staging.FindUnstaged(path); ok {
		return ref, !ref.IsTombstone(), nil
	}
	if ref, ok := r.staging.FindStaged(path); ok {
		return ref, !ref.IsTombstone(), nil
	}
	rootID, err := r.HeadTree()
	if err != nil {
		return object.NodeRef{}, false, err
	}
	root, err := tree.Load(r.store, r.Params(), rootID)
	if err != nil {
		return object.NodeRef{}, false, err
	}
	return tree.FindPath(ctx, root, path)
}
