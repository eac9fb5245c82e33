// Package staging tracks pending record changes and folds them into trees.
//
// An Area holds two sorted path -> NodeRef maps. Unstaged entries are
// working changes; staged entries are what the next commit will contain.
// A staged entry with a null ObjectID is a deletion tombstone. One mutex
// guards both maps so compound operations such as Stage appear atomic.
package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/btree"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/tree"
)

const btreeDegree = 32

// ErrInvalidPattern is returned by StageMatching for malformed globs.
var ErrInvalidPattern = errors.New("invalid path pattern")

// Area is the staging area. The zero value is not usable; call New or Open.
type Area struct {
	store  *object.Store
	params tree.Params

	mu        sync.Mutex
	unstaged  *btree.BTreeG[object.NodeRef]
	staged    *btree.BTreeG[object.NodeRef]
	indexPath string
}

func byPath(a, b object.NodeRef) bool { return a.Path < b.Path }

// New returns an empty in-memory staging area building trees in store.
func New(store *object.Store, params tree.Params) *Area {
	return &Area{
		store:    store,
		params:   params,
		unstaged: btree.NewG(btreeDegree, byPath),
		staged:   btree.NewG(btreeDegree, byPath),
	}
}

// Open returns a staging area persisted at indexPath. The file is read if
// it exists and rewritten after every change.
func Open(store *object.Store, params tree.Params, indexPath string) (*Area, error) {
	a := New(store, params)
	a.indexPath = indexPath
	if err := a.load(); err != nil {
		return nil, err
	}
	return a, nil
}

// PutUnstaged records a working change. A ref with a null ObjectID records a
// deletion.
func (a *Area) PutUnstaged(ref object.NodeRef) error {
	return a.put(a.unstaged, ref)
}

// PutStaged records a change directly in the staged set.
func (a *Area) PutStaged(ref object.NodeRef) error {
	return a.put(a.staged, ref)
}

func (a *Area) put(m *btree.BTreeG[object.NodeRef], ref object.NodeRef) error {
	if _, err := tree.SplitPath(ref.Path); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	m.ReplaceOrInsert(ref)
	return a.saveLocked()
}

// Stage moves path from the unstaged to the staged set. It reports false,
// changing nothing, when path has no unstaged entry.
func (a *Area) Stage(path string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ref, ok := a.unstaged.Delete(object.NodeRef{Path: path})
	if !ok {
		return false, nil
	}
	a.staged.ReplaceOrInsert(ref)
	return true, a.saveLocked()
}

// StageMatching stages every unstaged path matched by one of patterns and
// returns how many were staged. A pattern matches a path when it is a
// doublestar glob matching the path or a path prefix of it. No patterns
// stages everything.
func (a *Area) StageMatching(patterns ...string) (int, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var matched []object.NodeRef
	a.unstaged.Ascend(func(ref object.NodeRef) bool {
		if matchesAny(ref.Path, patterns) {
			matched = append(matched, ref)
		}
		return true
	})
	for _, ref := range matched {
		a.unstaged.Delete(ref)
		a.staged.ReplaceOrInsert(ref)
	}
	if len(matched) == 0 {
		return 0, nil
	}
	return len(matched), a.saveLocked()
}

func matchesAny(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		p = strings.TrimSuffix(p, tree.PathSeparator)
		if tree.HasPathPrefix(path, p) {
			return true
		}
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// CountStaged returns the number of staged entries under prefix.
func (a *Area) CountStaged(prefix string) int {
	return a.count(a.staged, prefix)
}

// CountUnstaged returns the number of unstaged entries under prefix.
func (a *Area) CountUnstaged(prefix string) int {
	return a.count(a.unstaged, prefix)
}

func (a *Area) count(m *btree.BTreeG[object.NodeRef], prefix string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if prefix == "" {
		return m.Len()
	}
	n := 0
	ascendPrefix(m, prefix, func(object.NodeRef) { n++ })
	return n
}

// FindStaged returns the staged entry for path.
func (a *Area) FindStaged(path string) (object.NodeRef, bool) {
	return a.find(a.staged, path)
}

// FindUnstaged returns the unstaged entry for path.
func (a *Area) FindUnstaged(path string) (object.NodeRef, bool) {
	return a.find(a.unstaged, path)
}

func (a *Area) find(m *btree.BTreeG[object.NodeRef], path string) (object.NodeRef, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return m.Get(object.NodeRef{Path: path})
}

// Staged returns the staged entries under prefix sorted by path.
func (a *Area) Staged(prefix string) []object.NodeRef {
	return a.list(a.staged, prefix)
}

// Unstaged returns the unstaged entries under prefix sorted by path.
func (a *Area) Unstaged(prefix string) []object.NodeRef {
	return a.list(a.unstaged, prefix)
}

func (a *Area) list(m *btree.BTreeG[object.NodeRef], prefix string) []object.NodeRef {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []object.NodeRef
	ascendPrefix(m, prefix, func(ref object.NodeRef) { out = append(out, ref) })
	return out
}

// ascendPrefix visits entries under prefix in path order. Keys under a
// prefix form a contiguous range starting at the prefix itself.
func ascendPrefix(m *btree.BTreeG[object.NodeRef], prefix string, fn func(object.NodeRef)) {
	m.AscendGreaterOrEqual(object.NodeRef{Path: prefix}, func(ref object.NodeRef) bool {
		if !strings.HasPrefix(ref.Path, prefix) {
			return false
		}
		if tree.HasPathPrefix(ref.Path, prefix) {
			fn(ref)
		}
		return true
	})
}

// RemoveStaged drops staged entries under prefix and returns how many.
func (a *Area) RemoveStaged(prefix string) (int, error) {
	return a.remove(a.staged, prefix)
}

// RemoveUnstaged drops unstaged entries under prefix and returns how many.
func (a *Area) RemoveUnstaged(prefix string) (int, error) {
	return a.remove(a.unstaged, prefix)
}

func (a *Area) remove(m *btree.BTreeG[object.NodeRef], prefix string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var doomed []object.NodeRef
	ascendPrefix(m, prefix, func(ref object.NodeRef) { doomed = append(doomed, ref) })
	for _, ref := range doomed {
		m.Delete(ref)
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	return len(doomed), a.saveLocked()
}

func (a *Area) ClearStaged() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.staged.Clear(false)
	return a.saveLocked()
}

func (a *Area) ClearUnstaged() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unstaged.Clear(false)
	return a.saveLocked()
}

// Reset clears both sets.
func (a *Area) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.staged.Clear(false)
	a.unstaged.Clear(false)
	return a.saveLocked()
}

// BuildTree applies a snapshot of the staged set to the tree baseID and
// persists the result. It returns the new root ID and the entries it
// applied; the staged set is left unchanged.
func (a *Area) BuildTree(ctx context.Context, baseID object.ID) (object.ID, []object.NodeRef, error) {
	applied := a.Staged("")

	base, err := tree.Load(a.store, a.params, baseID)
	if err != nil {
		return object.NullID, nil, fmt.Errorf("write tree: %w", err)
	}
	if len(applied) == 0 {
		return base.ID(), nil, nil
	}
	root, err := tree.ApplyChanges(ctx, base, applied)
	if err != nil {
		return object.NullID, nil, fmt.Errorf("write tree: %w", err)
	}
	return root.ID(), applied, nil
}

// WriteTree is BuildTree followed by ClearApplied: the staged entries are
// consumed only once the new tree has been persisted.
func (a *Area) WriteTree(ctx context.Context, baseID object.ID) (object.ID, error) {
	id, applied, err := a.BuildTree(ctx, baseID)
	if err != nil {
		return object.NullID, err
	}
	return id, a.ClearApplied(applied)
}

// ClearApplied removes the given entries from the staged set. Entries
// restaged with a different value since BuildTree are kept.
func (a *Area) ClearApplied(applied []object.NodeRef) error {
	if len(applied) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ref := range applied {
		if cur, ok := a.staged.Get(ref); ok && cur.Equal(ref) {
			a.staged.Delete(ref)
		}
	}
	return a.saveLocked()
}

// ---------------------------------------------------------------------------
// Index file
// ---------------------------------------------------------------------------

const indexVersion = 1

type indexFile struct {
	Version  uint8            `cbor:"v"`
	Unstaged []object.NodeRef `cbor:"unstaged,omitempty"`
	Staged   []object.NodeRef `cbor:"staged,omitempty"`
}

func (a *Area) load() error {
	data, err := os.ReadFile(a.indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read index: %w", err)
	}
	var idx indexFile
	if err := object.UnmarshalCanonical(data, &idx); err != nil {
		return fmt.Errorf("read index: %w: %v", object.ErrDecode, err)
	}
	if idx.Version != indexVersion {
		return fmt.Errorf("read index: %w: unsupported version %d", object.ErrDecode, idx.Version)
	}
	for _, ref := range idx.Unstaged {
		a.unstaged.ReplaceOrInsert(ref)
	}
	for _, ref := range idx.Staged {
		a.staged.ReplaceOrInsert(ref)
	}
	return nil
}

// saveLocked atomically rewrites the index file. a.mu must be held.
func (a *Area) saveLocked() error {
	if a.indexPath == "" {
		return nil
	}
	idx := indexFile{Version: indexVersion}
	a.unstaged.Ascend(func(ref object.NodeRef) bool {
		idx.Unstaged = append(idx.Unstaged, ref)
		return true
	})
	a.staged.Ascend(func(ref object.NodeRef) bool {
		idx.Staged = append(idx.Staged, ref)
		return true
	})
	data, err := object.MarshalCanonical(&idx)
	if err != nil {
		return fmt.Errorf("write index: marshal: %w", err)
	}

	dir := filepath.Dir(a.indexPath)
	tmp, err := os.CreateTemp(dir, ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write index: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: close: %w", err)
	}
	if err := os.Rename(tmpName, a.indexPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: rename: %w", err)
	}
	return nil
}
