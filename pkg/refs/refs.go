// Package refs stores named pointers into the object graph.
//
// A ref maps a name to an object ID; a symbolic ref maps a name to another
// ref name. Every mutation is a compare-and-swap: callers may supply the
// value they expect to replace, and a mismatch fails with
// ErrPreconditionFailed leaving the stored value untouched.
package refs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/object"
)

const (
	Head      = "HEAD"
	StageHead = "STAGE_HEAD"
	WorkHead  = "WORK_HEAD"

	HeadsPrefix = "refs/heads/"
	TagsPrefix  = "refs/tags/"

	// Master is the branch HEAD points at in a new repository.
	Master = HeadsPrefix + "master"
)

var (
	// ErrPreconditionFailed is returned when a ref's current value does not
	// match the expected old value of an update.
	ErrPreconditionFailed = errors.New("ref precondition failed")
	// ErrInvalidName is returned for structurally invalid ref names.
	ErrInvalidName = errors.New("invalid ref name")
	// ErrKindMismatch is returned when a direct-ref operation meets a
	// symbolic ref or the reverse.
	ErrKindMismatch = errors.New("ref kind mismatch")
	// ErrReflogAppend is matched by ReflogError.
	ErrReflogAppend = errors.New("ref updated but reflog append failed")
)

// Ref is one named pointer. Target is set for symbolic refs, ID otherwise.
type Ref struct {
	Name   string
	ID     object.ID
	Target string
}

// IsSymbolic reports whether r points at another ref.
func (r Ref) IsSymbolic() bool { return r.Target != "" }

func (r Ref) String() string {
	if r.IsSymbolic() {
		return fmt.Sprintf("%s -> %s", r.Name, r.Target)
	}
	return fmt.Sprintf("%s %s", r.ID, r.Name)
}

// Database is a ref store. Implementations must make each call atomic with
// respect to concurrent callers.
type Database interface {
	// GetRef returns the ID stored under name.
	GetRef(name string) (object.ID, bool, error)
	// PutRef stores id under name and returns the previous value. If
	// expectedOld is given the update only happens when the current value
	// equals it; NullID expects the ref not to exist.
	PutRef(name string, id object.ID, expectedOld ...object.ID) (object.ID, error)
	// RemoveRef deletes name and returns its last value. Removing an absent
	// ref without an expectation is a no-op.
	RemoveRef(name string, expectedOld ...object.ID) (object.ID, error)
	// GetSymRef returns the ref name that name points at.
	GetSymRef(name string) (string, bool, error)
	// PutSymRef points name at target and returns the previous target. An
	// empty expectedOld expects the symbolic ref not to exist.
	PutSymRef(name, target string, expectedOld ...string) (string, error)
	RemoveSymRef(name string, expectedOld ...string) (string, error)
	// List returns every ref whose name starts with prefix, sorted by name.
	List(prefix string) ([]Ref, error)
}

// ReasonUpdater is implemented by databases that record a reason with each
// update in a reflog.
type ReasonUpdater interface {
	PutRefReason(name string, id object.ID, reason string, expectedOld ...object.ID) (object.ID, error)
}

// Update is PutRef with a reflog reason when db supports one.
func Update(db Database, name string, id object.ID, reason string, expectedOld ...object.ID) (object.ID, error) {
	if ru, ok := db.(ReasonUpdater); ok {
		return ru.PutRefReason(name, id, reason, expectedOld...)
	}
	return db.PutRef(name, id, expectedOld...)
}

// Resolve returns the ID name points at, following at most one symbolic
// indirection: resolving HEAD reads its target and then that ref's value.
// The second return value is the direct ref name that was read.
func Resolve(db Database, name string) (object.ID, string, bool, error) {
	target, sym, err := db.GetSymRef(name)
	if err != nil && !errors.Is(err, ErrKindMismatch) {
		return object.NullID, "", false, err
	}
	if sym {
		name = target
	}
	id, found, err := db.GetRef(name)
	if err != nil {
		return object.NullID, name, false, err
	}
	return id, name, found, nil
}

// ValidateName checks a ref name. Accepted names are the all-caps special
// refs (HEAD, STAGE_HEAD, ...) and slash-separated names under "refs/".
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if !strings.Contains(name, "/") {
		for _, c := range name {
			if (c < 'A' || c > 'Z') && c != '_' {
				return fmt.Errorf("%w: %q", ErrInvalidName, name)
			}
		}
		return nil
	}
	if !strings.HasPrefix(name, "refs/") {
		return fmt.Errorf("%w: %q is not under refs/", ErrInvalidName, name)
	}
	if strings.HasSuffix(name, ".lock") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || strings.HasPrefix(seg, ".") {
			return fmt.Errorf("%w: %q has an empty or hidden segment", ErrInvalidName, name)
		}
	}
	for _, c := range name {
		if c <= ' ' || c == 0x7f || strings.ContainsRune("~^:?*[\\", c) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, c)
		}
	}
	return nil
}

// BranchName expands a short branch name to refs/heads/<name>. Full names
// are returned unchanged.
func BranchName(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return name
	}
	return HeadsPrefix + name
}

// TagName expands a short tag name to refs/tags/<name>.
func TagName(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return name
	}
	return TagsPrefix + name
}

// ShortName strips the refs/heads/ or refs/tags/ prefix.
func ShortName(name string) string {
	for _, p := range []string{HeadsPrefix, TagsPrefix} {
		if s, ok := strings.CutPrefix(name, p); ok {
			return s
		}
	}
	return name
}

func expectedID(name string, expectedOld []object.ID) (object.ID, bool, error) {
	switch len(expectedOld) {
	case 0:
		return object.NullID, false, nil
	case 1:
		return expectedOld[0], true, nil
	default:
		return object.NullID, false, fmt.Errorf("update ref %q: expected at most one old value", name)
	}
}

func expectedTarget(name string, expectedOld []string) (string, bool, error) {
	switch len(expectedOld) {
	case 0:
		return "", false, nil
	case 1:
		return expectedOld[0], true, nil
	default:
		return "", false, fmt.Errorf("update symref %q: expected at most one old value", name)
	}
}

// value is the stored state of one name.
type value struct {
	exists bool
	id     object.ID
	target string
}

func (v value) symbolic() bool { return v.exists && v.target != "" }

func (v value) direct() bool { return v.exists && v.target == "" }

// checkDirect validates a direct-ref update against the current value.
func checkDirect(name string, cur value, expectedOld []object.ID) error {
	want, hasWant, err := expectedID(name, expectedOld)
	if err != nil {
		return err
	}
	if cur.symbolic() {
		return fmt.Errorf("update ref %q: %w: ref is symbolic", name, ErrKindMismatch)
	}
	if hasWant && cur.id != want {
		return fmt.Errorf("update ref %q: %w (expected %s, found %s)", name, ErrPreconditionFailed, want.Short(), cur.id.Short())
	}
	return nil
}

// checkSymbolic validates a symbolic-ref update against the current value.
func checkSymbolic(name string, cur value, expectedOld []string) error {
	want, hasWant, err := expectedTarget(name, expectedOld)
	if err != nil {
		return err
	}
	if cur.direct() {
		return fmt.Errorf("update symref %q: %w: ref is not symbolic", name, ErrKindMismatch)
	}
	if hasWant && cur.target != want {
		return fmt.Errorf("update symref %q: %w (expected %q, found %q)", name, ErrPreconditionFailed, want, cur.target)
	}
	return nil
}
