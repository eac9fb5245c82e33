package object

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend stores envelopes as individual files with a 2-character
// fan-out directory layout: <root>/ab/cdef0123...
//
// Writes are atomic: data is written to a temp file and then renamed into
// place. Reads need no locking because a file is never rewritten.
type FileBackend struct {
	root        string
	compression Compression
}

// NewFileBackend creates a FileBackend rooted at dir. Directories are created
// lazily on first write.
func NewFileBackend(dir string, compression Compression) *FileBackend {
	return &FileBackend{root: dir, compression: compression}
}

// Root returns the directory holding the fan-out tree.
func (f *FileBackend) Root() string { return f.root }

func (f *FileBackend) objectPath(id ID) string {
	hex := id.String()
	return filepath.Join(f.root, hex[:2], hex[2:])
}

func (f *FileBackend) Exists(id ID) (bool, error) {
	_, err := os.Stat(f.objectPath(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("object stat %s: %w", id, err)
}

func (f *FileBackend) Get(id ID) ([]byte, error) {
	stored, err := os.ReadFile(f.objectPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("object read %s: %w", id, err)
	}
	raw, err := Decompress(stored)
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w", id, err)
	}
	return raw, nil
}

func (f *FileBackend) Put(id ID, raw []byte) error {
	// Fast path: already exists.
	if ok, err := f.Exists(id); err != nil {
		return err
	} else if ok {
		return nil
	}

	stored, err := Compress(f.compression, raw)
	if err != nil {
		return fmt.Errorf("object write %s: %w", id, err)
	}

	dir := filepath.Join(f.root, id.String()[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(stored); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("object write close: %w", err)
	}
	if err := os.Rename(tmpName, f.objectPath(id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("object write rename: %w", err)
	}
	return nil
}

func (f *FileBackend) Lookup(prefix string) ([]ID, error) {
	var dirs []string
	if len(prefix) >= 2 {
		dirs = []string{prefix[:2]}
	} else {
		entries, err := os.ReadDir(f.root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("object lookup: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() && len(e.Name()) == 2 && strings.HasPrefix(e.Name(), prefix) {
				dirs = append(dirs, e.Name())
			}
		}
	}

	var out []ID
	for _, dir := range dirs {
		names, err := os.ReadDir(filepath.Join(f.root, dir))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("object lookup: %w", err)
		}
		for _, n := range names {
			full := dir + n.Name()
			if n.IsDir() || !strings.HasPrefix(full, prefix) {
				continue
			}
			id, err := ParseID(full)
			if err != nil {
				// Temp files and strays.
				continue
			}
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out, nil
}

func (f *FileBackend) Delete(id ID) error {
	err := os.Remove(f.objectPath(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("object delete %s: %w", id, err)
	}
	return nil
}

// ForEach visits every stored object in directory order.
func (f *FileBackend) ForEach(fn func(id ID, raw []byte) error) error {
	ids, err := f.Lookup("")
	if err != nil {
		return err
	}
	for _, id := range ids {
		raw, err := f.Get(id)
		if err != nil {
			return err
		}
		if err := fn(id, raw); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every stored object along with the root directory.
func (f *FileBackend) Clear() error {
	if err := os.RemoveAll(f.root); err != nil {
		return fmt.Errorf("object clear: %w", err)
	}
	return nil
}

func (f *FileBackend) Close() error { return nil }
