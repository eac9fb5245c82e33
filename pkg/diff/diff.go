// Package diff compares two hash trees.
//
// Both trees are walked in lock-step by bucket. Subtrees with equal IDs are
// skipped without being read, so the cost of a diff follows the size of the
// change rather than the size of the trees.
package diff

import (
	"context"
	"iter"
	"maps"
	"slices"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/tree"
)

// ChangeType classifies what happened to a path between two trees.
type ChangeType int

const (
	Added    ChangeType = iota // Path exists only in the new tree.
	Removed                    // Path exists only in the old tree.
	Modified                   // Path exists in both trees with different objects.
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Entry is one changed path. Old is nil for Added, New is nil for Removed.
// Both refs carry full paths.
type Entry struct {
	Old    *object.NodeRef
	New    *object.NodeRef
	Change ChangeType
}

// Path returns the full path of the changed entry.
func (e Entry) Path() string {
	if e.New != nil {
		return e.New.Path
	}
	if e.Old != nil {
		return e.Old.Path
	}
	return ""
}

// Options tune a diff.
type Options struct {
	// PathFilter restricts the diff to paths equal to or under this path,
	// compared segment by segment. Empty means no restriction.
	PathFilter string
}

// Trees yields the changes that turn tree oldID into tree newID. Either ID
// may be NullID for the empty tree. Only record entries are reported;
// namespaces are descended into, never reported themselves.
//
// The sequence is produced lazily and stops at the first error, which is
// yielded with a zero Entry. Cancellation of ctx is reported the same way.
func Trees(ctx context.Context, store *object.Store, params tree.Params, oldID, newID object.ID, opts Options) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		var filter []string
		if opts.PathFilter != "" {
			segs, err := tree.SplitPath(opts.PathFilter)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			filter = segs
		}
		oldTree, err := tree.Load(store, params, oldID)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		newTree, err := tree.Load(store, params, newID)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		w := &walker{ctx: ctx, store: store, params: params, yield: yield}
		w.namespace(oldTree, newTree, "", filter)
	}
}

// Collect drains a diff sequence into a slice.
func Collect(seq iter.Seq2[Entry, error]) ([]Entry, error) {
	var out []Entry
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

type walker struct {
	ctx    context.Context
	store  *object.Store
	params tree.Params
	yield  func(Entry, error) bool
}

func (w *walker) fail(err error) bool {
	w.yield(Entry{}, err)
	return false
}

// side is one half of a comparison at some depth: a stored node, or a
// virtual leaf holding the slice of a leaf node's entries that fall into one
// bucket of the other side.
type side struct {
	t       *tree.Tree
	entries []object.NodeRef
	depth   int
}

func (s side) bucketed() bool { return s.t != nil && s.t.IsBucketed() }

func (s side) empty() bool {
	if s.t != nil {
		return s.t.IsEmpty()
	}
	return len(s.entries) == 0
}

func (s side) leafEntries() []object.NodeRef {
	if s.t != nil {
		return s.t.Entries()
	}
	return s.entries
}

// indexes returns the bucket indexes populated on this side at s.depth.
func (s side) indexes(params tree.Params) []uint32 {
	if s.bucketed() {
		var out []uint32
		for _, b := range s.t.Buckets() {
			out = append(out, b.Index)
		}
		return out
	}
	var out []uint32
	for _, e := range s.leafEntries() {
		out = append(out, tree.BucketIndex(s.depth, e.Path, params.Buckets))
	}
	return out
}

func (s side) child(params tree.Params, idx uint32) (side, error) {
	next := side{depth: s.depth + 1}
	if s.bucketed() {
		c, err := s.t.Bucket(idx)
		if err != nil {
			return next, err
		}
		next.t = c
		return next, nil
	}
	for _, e := range s.leafEntries() {
		if tree.BucketIndex(s.depth, e.Path, params.Buckets) == idx {
			next.entries = append(next.entries, e)
		}
	}
	return next, nil
}

func (w *walker) namespace(oldTree, newTree *tree.Tree, base string, filter []string) bool {
	return w.nodes(side{t: oldTree}, side{t: newTree}, base, filter)
}

func (w *walker) nodes(a, b side, base string, filter []string) bool {
	if err := w.ctx.Err(); err != nil {
		return w.fail(err)
	}
	if a.t != nil && b.t != nil && a.t.ID() == b.t.ID() {
		return true
	}
	if a.empty() && b.empty() {
		return true
	}

	if !a.bucketed() && !b.bucketed() {
		return w.leaves(a.leafEntries(), b.leafEntries(), base, filter)
	}

	var indexes []uint32
	if len(filter) > 0 {
		indexes = []uint32{tree.BucketIndex(a.depth, filter[0], w.params.Buckets)}
	} else {
		set := make(map[uint32]struct{})
		for _, i := range a.indexes(w.params) {
			set[i] = struct{}{}
		}
		for _, i := range b.indexes(w.params) {
			set[i] = struct{}{}
		}
		indexes = slices.Sorted(maps.Keys(set))
	}

	for _, idx := range indexes {
		ca, err := a.child(w.params, idx)
		if err != nil {
			return w.fail(err)
		}
		cb, err := b.child(w.params, idx)
		if err != nil {
			return w.fail(err)
		}
		if !w.nodes(ca, cb, base, filter) {
			return false
		}
	}
	return true
}

// leaves merge-joins two key-sorted entry lists.
func (w *walker) leaves(olds, news []object.NodeRef, base string, filter []string) bool {
	if len(filter) > 0 {
		olds = onlyKey(olds, filter[0])
		news = onlyKey(news, filter[0])
	}
	i, j := 0, 0
	for i < len(olds) || j < len(news) {
		var o, n *object.NodeRef
		switch {
		case j >= len(news) || (i < len(olds) && olds[i].Path < news[j].Path):
			o = &olds[i]
			i++
		case i >= len(olds) || news[j].Path < olds[i].Path:
			n = &news[j]
			j++
		default:
			o, n = &olds[i], &news[j]
			i++
			j++
		}
		if !w.pair(o, n, base, filter) {
			return false
		}
	}
	return true
}

func onlyKey(entries []object.NodeRef, key string) []object.NodeRef {
	for i := range entries {
		if entries[i].Path == key {
			return entries[i : i+1]
		}
	}
	return nil
}

// pair compares the old and new entry stored under one key.
func (w *walker) pair(o, n *object.NodeRef, base string, filter []string) bool {
	if o != nil && n != nil && o.ObjectID == n.ObjectID && o.Type == n.Type {
		return true
	}
	key := ""
	if o != nil {
		key = o.Path
	} else {
		key = n.Path
	}
	full := tree.JoinPath(base, key)
	var rest []string
	if len(filter) > 0 {
		rest = filter[1:]
	}

	oNS := o != nil && o.Type == object.TypeTree
	nNS := n != nil && n.Type == object.TypeTree
	if !oNS && !nNS {
		return w.leaf(o, n, full, rest)
	}

	oldSub, newSub := tree.Empty(w.store, w.params), tree.Empty(w.store, w.params)
	var err error
	if oNS {
		if oldSub, err = tree.Load(w.store, w.params, o.ObjectID); err != nil {
			return w.fail(err)
		}
	}
	if nNS {
		if newSub, err = tree.Load(w.store, w.params, n.ObjectID); err != nil {
			return w.fail(err)
		}
	}
	// A record replaced by a namespace, or the reverse.
	if o != nil && !oNS && !w.leaf(o, nil, full, rest) {
		return false
	}
	if !w.namespace(oldSub, newSub, full, rest) {
		return false
	}
	if n != nil && !nNS {
		return w.leaf(nil, n, full, rest)
	}
	return true
}

func (w *walker) leaf(o, n *object.NodeRef, full string, rest []string) bool {
	if len(rest) > 0 {
		// The filter names something below this record.
		return true
	}
	var e Entry
	switch {
	case o == nil:
		e.Change = Added
	case n == nil:
		e.Change = Removed
	default:
		e.Change = Modified
	}
	if o != nil {
		old := *o
		old.Path = full
		e.Old = &old
	}
	if n != nil {
		nw := *n
		nw.Path = full
		e.New = &nw
	}
	return w.yield(e, nil)
}
