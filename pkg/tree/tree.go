// Package tree implements the hash tree: a content-addressed, self-sharding
// map from keys to object.NodeRef.
//
// A node holds its entries directly until it grows past
// Params.NormalizedSizeLimit, then pushes them into Params.Buckets child
// subtrees chosen by hashing each key with the node's depth. Subtrees are
// referenced by ID through the object store. The shape of a normalized tree,
// and so its ID, depends only on the final key/value set.
//
// Tree is the immutable, persisted view. MutableTree accumulates puts and
// removes and turns back into a Tree through Persist.
package tree

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
)

// Tree is an immutable hash tree node loaded from, or persisted to, an
// object store.
type Tree struct {
	store  *object.Store
	params Params
	depth  int
	obj    *object.TreeObj
}

// Empty returns the empty root tree. Its ID is object.EmptyTreeID.
func Empty(store *object.Store, params Params) *Tree {
	return &Tree{
		store:  store,
		params: params,
		obj:    &object.TreeObj{ID: object.EmptyTreeID(), Version: object.TreeFormatVersion},
	}
}

// Load reads the root tree id. NullID loads the empty tree.
func Load(store *object.Store, params Params, id object.ID) (*Tree, error) {
	return loadAt(store, params, id, 0)
}

func loadAt(store *object.Store, params Params, id object.ID, depth int) (*Tree, error) {
	if id.IsNull() || id == object.EmptyTreeID() {
		t := Empty(store, params)
		t.depth = depth
		return t, nil
	}
	obj, err := store.ReadTree(id)
	if err != nil {
		return nil, fmt.Errorf("load tree %s: %w", id.Short(), err)
	}
	return &Tree{store: store, params: params, depth: depth, obj: obj}, nil
}

func (t *Tree) ID() object.ID { return t.obj.ID }

// Size returns the number of leaf entries reachable from this node.
func (t *Tree) Size() int64 { return t.obj.Size() }

// Depth is 0 for a root and grows by one per bucket level.
func (t *Tree) Depth() int { return t.depth }

func (t *Tree) Params() Params { return t.params }

func (t *Tree) Store() *object.Store { return t.store }

// IsEmpty reports whether the tree has no entries.
func (t *Tree) IsEmpty() bool { return t.Size() == 0 }

// IsBucketed reports whether this node references subtrees.
func (t *Tree) IsBucketed() bool { return len(t.obj.Buckets) > 0 }

// IsNormalized reports whether the node holds either at most
// NormalizedSizeLimit entries or only buckets.
func (t *Tree) IsNormalized() bool {
	if len(t.obj.Buckets) > 0 {
		return len(t.obj.Entries) == 0
	}
	return len(t.obj.Entries) <= t.params.NormalizedSizeLimit || t.depth >= t.params.MaxDepth
}

// Entries returns the entries held directly by this node, sorted by key.
func (t *Tree) Entries() []object.NodeRef { return slices.Clone(t.obj.Entries) }

// Buckets returns the subtree references of this node, sorted by index.
func (t *Tree) Buckets() []object.Bucket { return slices.Clone(t.obj.Buckets) }

// Bucket returns the child subtree for bucket index i, or nil.
func (t *Tree) Bucket(i uint32) (*Tree, error) {
	n, found := slices.BinarySearchFunc(t.obj.Buckets, i, func(b object.Bucket, i uint32) int {
		switch {
		case b.Index < i:
			return -1
		case b.Index > i:
			return 1
		}
		return 0
	})
	if !found {
		return nil, nil
	}
	return t.child(t.obj.Buckets[n])
}

func (t *Tree) child(b object.Bucket) (*Tree, error) {
	return loadAt(t.store, t.params, b.ID, t.depth+1)
}

// Get looks up key in this node and its subtrees.
func (t *Tree) Get(key string) (object.NodeRef, bool, error) {
	node := t
	for node.IsBucketed() {
		next, err := node.Bucket(t.params.bucketOf(node.depth, key))
		if err != nil {
			return object.NodeRef{}, false, err
		}
		if next == nil {
			return object.NodeRef{}, false, nil
		}
		node = next
	}
	n, found := slices.BinarySearchFunc(node.obj.Entries, key, func(e object.NodeRef, k string) int {
		return strings.Compare(e.Path, k)
	})
	if !found {
		return object.NodeRef{}, false, nil
	}
	return node.obj.Entries[n], true, nil
}

// All yields every leaf entry reachable from this node: entries of leaf
// nodes in key order, buckets in index order. Namespace entries are yielded
// as entries; their contents are not visited.
func (t *Tree) All(ctx context.Context) iter.Seq2[object.NodeRef, error] {
	return func(yield func(object.NodeRef, error) bool) {
		t.walk(ctx, yield)
	}
}

func (t *Tree) walk(ctx context.Context, yield func(object.NodeRef, error) bool) bool {
	for _, e := range t.obj.Entries {
		if !yield(e, nil) {
			return false
		}
	}
	for _, b := range t.obj.Buckets {
		if err := ctx.Err(); err != nil {
			yield(object.NodeRef{}, err)
			return false
		}
		c, err := t.child(b)
		if err != nil {
			yield(object.NodeRef{}, err)
			return false
		}
		if !c.walk(ctx, yield) {
			return false
		}
	}
	return true
}

// Mutable returns a MutableTree seeded with this node's content. The Tree is
// not affected by changes to the result.
func (t *Tree) Mutable() *MutableTree {
	m := newMutable(t.store, t.params, t.depth)
	for i := range t.obj.Entries {
		e := t.obj.Entries[i]
		m.entries[e.Path] = &e
	}
	for _, b := range t.obj.Buckets {
		m.buckets[b.Index] = b
	}
	m.size = t.obj.Size()
	m.sizeKnown = true
	return m
}
