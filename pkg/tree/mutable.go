package tree

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
)

// ErrInvalidEntry is returned by Put for refs that cannot be stored.
var ErrInvalidEntry = errors.New("invalid tree entry")

// MutableTree is a writer-owned working copy of a tree node. It is not safe
// for concurrent use.
//
// While the node has buckets, entries holds pending changes for keys that
// belong in subtrees; a nil value marks a pending deletion. Normalize pushes
// pending changes down and leaves the node in canonical shape.
type MutableTree struct {
	store   *object.Store
	params  Params
	depth   int
	entries map[string]*object.NodeRef
	buckets map[uint32]object.Bucket

	size      int64
	sizeKnown bool
}

// NewMutable returns an empty MutableTree root.
func NewMutable(store *object.Store, params Params) *MutableTree {
	return newMutable(store, params, 0)
}

func newMutable(store *object.Store, params Params, depth int) *MutableTree {
	return &MutableTree{
		store:     store,
		params:    params,
		depth:     depth,
		entries:   make(map[string]*object.NodeRef),
		buckets:   make(map[uint32]object.Bucket),
		sizeKnown: true,
	}
}

// Put stores ref under ref.Path, replacing any existing entry. Reaching
// SplitFactor pending entries triggers normalization.
func (m *MutableTree) Put(ref object.NodeRef) error {
	if ref.Path == "" {
		return fmt.Errorf("put: %w: empty key", ErrMalformedPath)
	}
	if ref.ObjectID.IsNull() {
		return fmt.Errorf("put %q: %w: null object id", ref.Path, ErrInvalidEntry)
	}
	if len(m.buckets) == 0 {
		if _, exists := m.entries[ref.Path]; !exists {
			m.size++
		}
	} else {
		// The key's bucket has not been consulted, so the size is unknown
		// until the next normalization.
		m.sizeKnown = false
	}
	m.entries[ref.Path] = &ref

	if len(m.entries) >= m.params.SplitFactor {
		return m.Normalize()
	}
	return nil
}

// Remove deletes key and returns the removed entry. Removing an absent key
// is a no-op that reports false.
func (m *MutableTree) Remove(key string) (object.NodeRef, bool, error) {
	if len(m.buckets) == 0 {
		prev, ok := m.entries[key]
		if !ok || prev == nil {
			return object.NodeRef{}, false, nil
		}
		delete(m.entries, key)
		m.size--
		return *prev, true, nil
	}

	if prev, pending := m.entries[key]; pending {
		if prev == nil {
			return object.NodeRef{}, false, nil
		}
		// Whether the subtree also held key is unknown; the sentinel
		// covers both cases.
		m.entries[key] = nil
		m.sizeKnown = false
		return *prev, true, nil
	}

	child, err := m.loadBucket(m.params.bucketOf(m.depth, key))
	if err != nil {
		return object.NodeRef{}, false, err
	}
	if child == nil {
		return object.NodeRef{}, false, nil
	}
	prev, found, err := child.Get(key)
	if err != nil || !found {
		return object.NodeRef{}, false, err
	}
	m.entries[key] = nil
	if m.sizeKnown {
		m.size--
	}
	return prev, true, nil
}

// Get returns the current value for key, pending changes included.
func (m *MutableTree) Get(key string) (object.NodeRef, bool, error) {
	if e, pending := m.entries[key]; pending {
		if e == nil {
			return object.NodeRef{}, false, nil
		}
		return *e, true, nil
	}
	if len(m.buckets) == 0 {
		return object.NodeRef{}, false, nil
	}
	child, err := m.loadBucket(m.params.bucketOf(m.depth, key))
	if err != nil || child == nil {
		return object.NodeRef{}, false, err
	}
	return child.Get(key)
}

// Size returns the number of entries. If pending changes make the cached
// count unreliable, the tree is normalized first.
func (m *MutableTree) Size() (int64, error) {
	if !m.sizeKnown {
		if err := m.Normalize(); err != nil {
			return 0, err
		}
	}
	return m.size, nil
}

// IsNormalized reports whether the node is in canonical shape: a leaf within
// NormalizedSizeLimit (or at MaxDepth), or buckets with no pending entries.
func (m *MutableTree) IsNormalized() bool {
	if len(m.buckets) > 0 {
		return len(m.entries) == 0
	}
	return len(m.entries) <= m.params.NormalizedSizeLimit || m.depth >= m.params.MaxDepth
}

// Normalize brings the node to canonical shape:
//
//   - a node with at most NormalizedSizeLimit entries, or at MaxDepth, is a
//     leaf holding them directly;
//   - any other node holds only buckets, each a normalized subtree of the
//     keys hashing into it at this depth, with empty buckets dropped.
//
// Normalize is idempotent. Child subtrees it changes are written to the
// store.
func (m *MutableTree) Normalize() error {
	m.store.Metrics().TreeNormalized()

	if len(m.buckets) == 0 {
		if len(m.entries) <= m.params.NormalizedSizeLimit || m.depth >= m.params.MaxDepth {
			m.size = int64(len(m.entries))
			m.sizeKnown = true
			return nil
		}
		m.store.Metrics().TreeSplit()
	}

	if err := m.pushDown(); err != nil {
		return err
	}

	var total int64
	for _, b := range m.buckets {
		total += b.Size
	}
	m.size = total
	m.sizeKnown = true

	if total <= int64(m.params.NormalizedSizeLimit) {
		return m.collapse()
	}
	return nil
}

// pushDown moves every directly-held entry into its bucket's subtree.
func (m *MutableTree) pushDown() error {
	groups := make(map[uint32][]string)
	for key := range m.entries {
		idx := m.params.bucketOf(m.depth, key)
		groups[idx] = append(groups[idx], key)
	}

	for _, idx := range slices.Sorted(maps.Keys(groups)) {
		child, err := m.loadBucket(idx)
		if err != nil {
			return err
		}
		var mc *MutableTree
		if child == nil {
			mc = newMutable(m.store, m.params, m.depth+1)
		} else {
			mc = child.Mutable()
		}

		keys := groups[idx]
		slices.Sort(keys)
		for _, key := range keys {
			if e := m.entries[key]; e != nil {
				err = mc.Put(*e)
			} else {
				_, _, err = mc.Remove(key)
			}
			if err != nil {
				return fmt.Errorf("normalize bucket %d: %w", idx, err)
			}
		}

		if err := mc.Normalize(); err != nil {
			return err
		}
		if mc.size == 0 {
			delete(m.buckets, idx)
			continue
		}
		persisted, err := mc.persist()
		if err != nil {
			return err
		}
		m.buckets[idx] = object.Bucket{Index: idx, ID: persisted.ID(), Size: persisted.Size()}
	}
	clear(m.entries)
	return nil
}

// collapse turns a bucketed node small enough to be a leaf back into one.
func (m *MutableTree) collapse() error {
	for _, idx := range slices.Sorted(maps.Keys(m.buckets)) {
		child, err := m.loadBucket(idx)
		if err != nil {
			return err
		}
		for e, err := range child.All(context.Background()) {
			if err != nil {
				return err
			}
			m.entries[e.Path] = &e
		}
	}
	clear(m.buckets)
	m.size = int64(len(m.entries))
	return nil
}

func (m *MutableTree) loadBucket(idx uint32) (*Tree, error) {
	b, ok := m.buckets[idx]
	if !ok {
		return nil, nil
	}
	return loadAt(m.store, m.params, b.ID, m.depth+1)
}

// Persist normalizes the tree, writes it to the store and returns the
// immutable result. The MutableTree stays usable.
func (m *MutableTree) Persist() (*Tree, error) {
	if err := m.Normalize(); err != nil {
		return nil, err
	}
	return m.persist()
}

func (m *MutableTree) persist() (*Tree, error) {
	obj := &object.TreeObj{Version: object.TreeFormatVersion}
	for _, e := range m.entries {
		if e != nil {
			obj.Entries = append(obj.Entries, *e)
		}
	}
	slices.SortFunc(obj.Entries, func(a, b object.NodeRef) int {
		return strings.Compare(a.Path, b.Path)
	})
	for _, idx := range slices.Sorted(maps.Keys(m.buckets)) {
		obj.Buckets = append(obj.Buckets, m.buckets[idx])
	}
	if _, err := m.store.WriteTree(obj); err != nil {
		return nil, fmt.Errorf("persist tree: %w", err)
	}
	return &Tree{store: m.store, params: m.params, depth: m.depth, obj: obj}, nil
}
