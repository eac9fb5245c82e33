package refs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/odvcencio/strata/pkg/metrics"
	"github.com/odvcencio/strata/pkg/object"
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second

	symrefPrefix = "ref: "
)

// FileDatabase keeps one file per ref under its root directory: special
// refs at <root>/HEAD, branches at <root>/refs/heads/<name>. A direct ref
// file holds "<hex id>\n", a symbolic one "ref: <target>\n". Reflogs live
// under <root>/logs.
//
// Updates take a <ref>.lock file with O_EXCL, compare the current value
// under the lock, write the lock file and rename it over the ref. Concurrent
// updates from separate processes are therefore serialized per ref.
type FileDatabase struct {
	root    string
	metrics *metrics.Collector
}

// NewFileDatabase opens the ref store rooted at dir. collector may be nil.
func NewFileDatabase(dir string, collector *metrics.Collector) *FileDatabase {
	return &FileDatabase{root: dir, metrics: collector}
}

func (d *FileDatabase) refPath(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

func (d *FileDatabase) logPath(name string) string {
	return filepath.Join(d.root, "logs", filepath.FromSlash(name))
}

func (d *FileDatabase) read(name string) (value, error) {
	data, err := os.ReadFile(d.refPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return value{}, nil
		}
		return value{}, fmt.Errorf("read ref %q: %w", name, err)
	}
	return parseValue(name, data)
}

func parseValue(name string, data []byte) (value, error) {
	content := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(content, symrefPrefix); ok {
		return value{exists: true, target: strings.TrimSpace(target)}, nil
	}
	id, err := object.ParseID(content)
	if err != nil {
		return value{}, fmt.Errorf("read ref %q: %w", name, err)
	}
	return value{exists: true, id: id}, nil
}

func formatValue(v value) string {
	if v.target != "" {
		return symrefPrefix + v.target + "\n"
	}
	return v.id.String() + "\n"
}

// update runs apply on the current value of name while holding its lock.
// apply returns the next value; a value with exists == false deletes the
// ref.
func (d *FileDatabase) update(name string, apply func(cur value) (value, error)) (value, value, error) {
	refPath := d.refPath(name)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return value{}, value{}, fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return value{}, value{}, fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	cur, err := d.read(name)
	if err != nil {
		return value{}, value{}, err
	}
	next, err := apply(cur)
	if err != nil {
		d.metrics.RefUpdate(errors.Is(err, ErrPreconditionFailed))
		return cur, value{}, err
	}

	if !next.exists {
		if cur.exists {
			if err := os.Remove(refPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return cur, value{}, fmt.Errorf("update ref %q: remove: %w", name, err)
			}
		}
		d.metrics.RefUpdate(false)
		return cur, next, nil
	}

	if _, err := lockFile.WriteString(formatValue(next)); err != nil {
		return cur, value{}, fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return cur, value{}, fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return cur, value{}, fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return cur, value{}, fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false
	d.metrics.RefUpdate(false)
	return cur, next, nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if errors.Is(err, fs.ErrExist) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func (d *FileDatabase) GetRef(name string) (object.ID, bool, error) {
	if err := ValidateName(name); err != nil {
		return object.NullID, false, err
	}
	v, err := d.read(name)
	if err != nil {
		return object.NullID, false, err
	}
	if v.symbolic() {
		return object.NullID, false, fmt.Errorf("get ref %q: %w: ref is symbolic", name, ErrKindMismatch)
	}
	return v.id, v.exists, nil
}

func (d *FileDatabase) PutRef(name string, id object.ID, expectedOld ...object.ID) (object.ID, error) {
	return d.PutRefReason(name, id, "", expectedOld...)
}

// PutRefReason is PutRef recording reason in the reflog.
//
// The reflog is appended after the ref rename; if that fails the ref
// update remains and a *ReflogError is returned.
func (d *FileDatabase) PutRefReason(name string, id object.ID, reason string, expectedOld ...object.ID) (object.ID, error) {
	if err := ValidateName(name); err != nil {
		return object.NullID, err
	}
	if id.IsNull() {
		return object.NullID, fmt.Errorf("update ref %q: null id, use RemoveRef", name)
	}
	cur, _, err := d.update(name, func(cur value) (value, error) {
		if err := checkDirect(name, cur, expectedOld); err != nil {
			return value{}, err
		}
		return value{exists: true, id: id}, nil
	})
	if err != nil {
		return cur.id, err
	}
	if err := d.appendReflog(newReflogEntry(name, cur.id, id, reason)); err != nil {
		return cur.id, &ReflogError{Ref: name, Old: cur.id, New: id, Err: err}
	}
	return cur.id, nil
}

func (d *FileDatabase) RemoveRef(name string, expectedOld ...object.ID) (object.ID, error) {
	if err := ValidateName(name); err != nil {
		return object.NullID, err
	}
	cur, _, err := d.update(name, func(cur value) (value, error) {
		if err := checkDirect(name, cur, expectedOld); err != nil {
			return value{}, err
		}
		return value{}, nil
	})
	if err != nil {
		return cur.id, err
	}
	if cur.exists {
		if err := d.appendReflog(newReflogEntry(name, cur.id, object.NullID, "delete")); err != nil {
			return cur.id, &ReflogError{Ref: name, Old: cur.id, New: object.NullID, Err: err}
		}
	}
	return cur.id, nil
}

func (d *FileDatabase) GetSymRef(name string) (string, bool, error) {
	if err := ValidateName(name); err != nil {
		return "", false, err
	}
	v, err := d.read(name)
	if err != nil {
		return "", false, err
	}
	if v.direct() {
		return "", false, fmt.Errorf("get symref %q: %w: ref is not symbolic", name, ErrKindMismatch)
	}
	return v.target, v.exists, nil
}

func (d *FileDatabase) PutSymRef(name, target string, expectedOld ...string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if err := ValidateName(target); err != nil {
		return "", err
	}
	cur, _, err := d.update(name, func(cur value) (value, error) {
		if err := checkSymbolic(name, cur, expectedOld); err != nil {
			return value{}, err
		}
		return value{exists: true, target: target}, nil
	})
	return cur.target, err
}

func (d *FileDatabase) RemoveSymRef(name string, expectedOld ...string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	cur, _, err := d.update(name, func(cur value) (value, error) {
		if err := checkSymbolic(name, cur, expectedOld); err != nil {
			return value{}, err
		}
		return value{}, nil
	})
	return cur.target, err
}

// List returns the special refs at the root and every ref under refs/
// whose name starts with prefix.
func (d *FileDatabase) List(prefix string) ([]Ref, error) {
	var out []Ref
	add := func(name string) error {
		if !strings.HasPrefix(name, prefix) || ValidateName(name) != nil {
			return nil
		}
		v, err := d.read(name)
		if err != nil {
			return err
		}
		if v.exists {
			out = append(out, Ref{Name: name, ID: v.id, Target: v.target})
		}
		return nil
	}

	top, err := os.ReadDir(d.root)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	for _, e := range top {
		if e.Type().IsRegular() {
			if err := add(e.Name()); err != nil {
				return nil, err
			}
		}
	}

	refsRoot := filepath.Join(d.root, "refs")
	err = filepath.WalkDir(refsRoot, func(path string, de fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if de.IsDir() || strings.HasSuffix(de.Name(), ".lock") {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		return add(filepath.ToSlash(rel))
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	slices.SortFunc(out, func(a, b Ref) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (d *FileDatabase) appendReflog(e ReflogEntry) error {
	logPath := d.logPath(e.Ref)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(formatReflogLine(e)); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

func (d *FileDatabase) ReadReflog(name string, limit int) ([]ReflogEntry, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(d.logPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()
	return parseReflog(name, f, limit)
}
