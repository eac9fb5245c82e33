package tree

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
)

// ErrMalformedPath is returned for empty paths, paths with leading or
// trailing separators, and paths with empty segments.
var ErrMalformedPath = errors.New("malformed path")

// PathSeparator separates namespace segments in a full path.
const PathSeparator = "/"

// SplitPath validates path and splits it into segments.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrMalformedPath)
	}
	segs := strings.Split(path, PathSeparator)
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrMalformedPath, path)
		}
	}
	return segs, nil
}

// JoinPath joins segments with PathSeparator, skipping empty ones.
func JoinPath(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(PathSeparator)
		}
		b.WriteString(p)
	}
	return b.String()
}

// FindPath resolves a full path through nested namespace trees. The returned
// ref carries the full path.
func FindPath(ctx context.Context, root *Tree, path string) (object.NodeRef, bool, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return object.NodeRef{}, false, err
	}
	node := root
	for i, seg := range segs {
		if err := ctx.Err(); err != nil {
			return object.NodeRef{}, false, err
		}
		ref, found, err := node.Get(seg)
		if err != nil || !found {
			return object.NodeRef{}, false, err
		}
		if i == len(segs)-1 {
			ref.Path = path
			return ref, true, nil
		}
		if ref.Type != object.TypeTree {
			return object.NodeRef{}, false, nil
		}
		node, err = Load(root.store, root.params, ref.ObjectID)
		if err != nil {
			return object.NodeRef{}, false, err
		}
	}
	return object.NodeRef{}, false, nil
}

// ApplyChanges folds path-keyed changes into base and persists the result.
// A change whose ObjectID is null removes its path; any other change puts
// it. Namespace trees along a path are created on demand and dropped from
// their parent once empty. When changes name the same path more than once
// the last one wins.
func ApplyChanges(ctx context.Context, base *Tree, changes []object.NodeRef) (*Tree, error) {
	byPath := make(map[string]object.NodeRef, len(changes))
	for _, c := range changes {
		if _, err := SplitPath(c.Path); err != nil {
			return nil, err
		}
		byPath[c.Path] = c
	}
	return applyLevel(ctx, base, "", byPath)
}

func applyLevel(ctx context.Context, base *Tree, prefix string, changes map[string]object.NodeRef) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	direct := make(map[string]object.NodeRef)
	nested := make(map[string]map[string]object.NodeRef)
	for path, c := range changes {
		head, rest, ok := strings.Cut(path, PathSeparator)
		if !ok {
			direct[head] = c
			continue
		}
		if nested[head] == nil {
			nested[head] = make(map[string]object.NodeRef)
		}
		nested[head][rest] = c
	}
	for head := range nested {
		if _, clash := direct[head]; clash {
			return nil, fmt.Errorf("%w: %q is changed both as an entry and as a namespace", ErrMalformedPath, JoinPath(prefix, head))
		}
	}

	m := base.Mutable()
	for _, key := range slices.Sorted(maps.Keys(direct)) {
		c := direct[key]
		c.Path = key
		if c.IsTombstone() {
			if _, _, err := m.Remove(key); err != nil {
				return nil, err
			}
			continue
		}
		existing, found, err := m.Get(key)
		if err != nil {
			return nil, err
		}
		if found && existing.Type == object.TypeTree && c.Type != object.TypeTree {
			return nil, fmt.Errorf("%w: %q is a namespace", ErrMalformedPath, JoinPath(prefix, key))
		}
		if err := m.Put(c); err != nil {
			return nil, fmt.Errorf("apply %q: %w", JoinPath(prefix, key), err)
		}
	}

	for _, head := range slices.Sorted(maps.Keys(nested)) {
		full := JoinPath(prefix, head)
		existing, found, err := m.Get(head)
		if err != nil {
			return nil, err
		}
		child := Empty(base.store, base.params)
		if found {
			if existing.Type != object.TypeTree {
				return nil, fmt.Errorf("%w: %q is not a namespace", ErrMalformedPath, full)
			}
			if child, err = Load(base.store, base.params, existing.ObjectID); err != nil {
				return nil, err
			}
		}
		updated, err := applyLevel(ctx, child, full, nested[head])
		if err != nil {
			return nil, err
		}
		if updated.IsEmpty() {
			if found {
				if _, _, err := m.Remove(head); err != nil {
					return nil, err
				}
			}
			continue
		}
		ref := object.NodeRef{Path: head, ObjectID: updated.ID(), Type: object.TypeTree}
		if found {
			ref.MetadataID = existing.MetadataID
		}
		if err := m.Put(ref); err != nil {
			return nil, err
		}
	}

	return m.Persist()
}

// Walk yields every non-namespace entry under root whose full path lies
// under prefix (segment-wise; "" means everything). Yielded refs carry full
// paths. Order follows Tree.All at each level.
func Walk(ctx context.Context, root *Tree, prefix string) iter.Seq2[object.NodeRef, error] {
	return func(yield func(object.NodeRef, error) bool) {
		start, base := root, ""
		if prefix != "" {
			ref, found, err := FindPath(ctx, root, prefix)
			if err != nil {
				yield(object.NodeRef{}, err)
				return
			}
			if !found {
				return
			}
			if ref.Type != object.TypeTree {
				yield(ref, nil)
				return
			}
			start, err = Load(root.store, root.params, ref.ObjectID)
			if err != nil {
				yield(object.NodeRef{}, err)
				return
			}
			base = prefix
		}
		walkNamespace(ctx, start, base, yield)
	}
}

func walkNamespace(ctx context.Context, t *Tree, base string, yield func(object.NodeRef, error) bool) bool {
	for e, err := range t.All(ctx) {
		if err != nil {
			yield(object.NodeRef{}, err)
			return false
		}
		full := JoinPath(base, e.Path)
		if e.Type != object.TypeTree {
			e.Path = full
			if !yield(e, nil) {
				return false
			}
			continue
		}
		sub, err := Load(t.store, t.params, e.ObjectID)
		if err != nil {
			yield(object.NodeRef{}, err)
			return false
		}
		if !walkNamespace(ctx, sub, full, yield) {
			return false
		}
	}
	return true
}

// HasPathPrefix reports whether path equals prefix or lies under it,
// comparing whole segments. The empty prefix matches everything.
func HasPathPrefix(path, prefix string) bool {
	if prefix == "" || path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix) && strings.HasPrefix(path[len(prefix):], PathSeparator)
}
