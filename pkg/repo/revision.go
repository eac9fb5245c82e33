package repo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

// ErrUnknownRevision is returned when a revision names nothing.
var ErrUnknownRevision = errors.New("unknown revision")

// ResolveRevision turns a revision string into an object ID.
//
// Resolution order:
//  1. "" and "HEAD" resolve HEAD through its symbolic target.
//  2. Names starting with "refs/" and all-caps special refs are read as-is.
//  3. A short name is tried as refs/heads/<name>, then refs/tags/<name>.
//  4. At least object.MinPrefixLen hex characters resolve as an ID prefix.
//
// A trailing "~N" walks N first parents and "^" one first parent.
func (r *Repo) ResolveRevision(rev string) (object.ID, error) {
	base, steps, err := splitAncestry(rev)
	if err != nil {
		return object.NullID, err
	}
	id, err := r.resolveBase(base)
	if err != nil {
		return object.NullID, err
	}
	for i := 0; i < steps; i++ {
		c, err := r.peelCommit(id)
		if err != nil {
			return object.NullID, fmt.Errorf("resolve %q: %w", rev, err)
		}
		if len(c.Parents) == 0 {
			return object.NullID, fmt.Errorf("resolve %q: %w: commit %s has no parent", rev, ErrUnknownRevision, c.ID.Short())
		}
		id = c.Parents[0]
	}
	return id, nil
}

// splitAncestry strips "~N" and "^" suffixes and returns the total number
// of first-parent steps they ask for.
func splitAncestry(rev string) (string, int, error) {
	steps := 0
	for {
		switch {
		case strings.HasSuffix(rev, "^"):
			rev = rev[:len(rev)-1]
			steps++
		case strings.LastIndexByte(rev, '~') >= 0:
			i := strings.LastIndexByte(rev, '~')
			n := 1
			if digits := rev[i+1:]; digits != "" {
				v, err := strconv.Atoi(digits)
				if err != nil || v < 0 {
					return "", 0, fmt.Errorf("%w: %q", ErrUnknownRevision, rev)
				}
				n = v
			}
			rev = rev[:i]
			steps += n
		default:
			return rev, steps, nil
		}
	}
}

func (r *Repo) resolveBase(rev string) (object.ID, error) {
	if rev == "" {
		rev = refs.Head
	}

	var candidates []string
	switch {
	case strings.HasPrefix(rev, "refs/"):
		candidates = []string{rev}
	case refs.ValidateName(rev) == nil:
		candidates = []string{rev, refs.BranchName(rev), refs.TagName(rev)}
	default:
		candidates = []string{refs.BranchName(rev), refs.TagName(rev)}
	}
	for _, name := range candidates {
		if refs.ValidateName(name) != nil {
			continue
		}
		id, _, found, err := refs.Resolve(r.refs, name)
		if err != nil {
			return object.NullID, fmt.Errorf("resolve %q: %w", rev, err)
		}
		if found {
			return id, nil
		}
	}

	if len(rev) >= object.MinPrefixLen {
		id, err := r.store.ResolvePrefix(rev)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, object.ErrAmbiguousID):
			return object.NullID, fmt.Errorf("resolve %q: %w", rev, err)
		}
	}
	if rev == refs.Head {
		return object.NullID, fmt.Errorf("resolve HEAD: %w: no commits yet", ErrUnknownRevision)
	}
	return object.NullID, fmt.Errorf("%w: %q", ErrUnknownRevision, rev)
}

// peelCommit reads id as a commit, following annotated tags.
func (r *Repo) peelCommit(id object.ID) (*object.Commit, error) {
	for {
		obj, err := r.store.Get(id)
		if err != nil {
			return nil, err
		}
		switch o := obj.(type) {
		case *object.Commit:
			return o, nil
		case *object.Tag:
			id = o.Target
		default:
			return nil, fmt.Errorf("%w: %s is a %s, not a commit", ErrUnknownRevision, id.Short(), obj.ObjectType())
		}
	}
}

// ResolveCommit resolves rev to a commit, following annotated tags.
func (r *Repo) ResolveCommit(rev string) (*object.Commit, error) {
	id, err := r.ResolveRevision(rev)
	if err != nil {
		return nil, err
	}
	c, err := r.peelCommit(id)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", rev, err)
	}
	return c, nil
}

// ResolveTree resolves rev to a root tree ID. Commits and tags are peeled;
// a tree ID is returned as-is.
func (r *Repo) ResolveTree(rev string) (object.ID, error) {
	id, err := r.ResolveRevision(rev)
	if err != nil {
		return object.NullID, err
	}
	for {
		obj, err := r.store.Get(id)
		if err != nil {
			return object.NullID, fmt.Errorf("resolve %q: %w", rev, err)
		}
		switch o := obj.(type) {
		case *object.TreeObj:
			return o.ID, nil
		case *object.Commit:
			return o.TreeID, nil
		case *object.Tag:
			id = o.Target
		default:
			return object.NullID, fmt.Errorf("%w: %q names a %s", ErrUnknownRevision, rev, obj.ObjectType())
		}
	}
}

// HeadTree returns the root tree of the HEAD commit, or the empty tree
// before the first commit.
func (r *Repo) HeadTree() (object.ID, error) {
	id, _, found, err := refs.Resolve(r.refs, refs.Head)
	if err != nil {
		return object.NullID, fmt.Errorf("head tree: %w", err)
	}
	if !found {
		return object.EmptyTreeID(), nil
	}
	c, err := r.peelCommit(id)
	if err != nil {
		return object.NullID, fmt.Errorf("head tree: %w", err)
	}
	return c.TreeID, nil
}
