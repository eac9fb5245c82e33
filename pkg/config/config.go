// Package config reads and writes INI-style key/value settings in two
// scopes: the repository-local file and the user's global file.
//
// Keys are written "section.name" and split at the first dot, so
// "remote.origin.url" lives in section "remote" under name "origin.url".
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/ini.v1"
)

var (
	// ErrInvalidKey is returned for keys without a non-empty section and name.
	ErrInvalidKey = errors.New("invalid config key")
	// ErrNoLocation is returned when a scope has no backing file, e.g. a
	// local lookup outside a repository or a global one without a home dir.
	ErrNoLocation = errors.New("config location unavailable")
)

// Scope selects which file an operation reads or writes.
type Scope int

const (
	Local Scope = iota
	Global
)

func (s Scope) String() string {
	if s == Global {
		return "global"
	}
	return "local"
}

// GlobalFileName is the name of the global config file in the user's home.
const GlobalFileName = ".strataconfig"

// Entry is one key/value pair.
type Entry struct {
	Key   string
	Value string
}

// Store is the pair of config files. Zero-value paths disable a scope.
type Store struct {
	mu         sync.Mutex
	localPath  string
	globalPath string
}

// New returns a store over the given files. Either path may be empty.
func New(localPath, globalPath string) *Store {
	return &Store{localPath: localPath, globalPath: globalPath}
}

// ForHome returns the global config path for a home directory, or "" when
// home is empty.
func ForHome(home string) string {
	if home == "" {
		return ""
	}
	return filepath.Join(home, GlobalFileName)
}

// Path returns the file backing scope, or "" if the scope is disabled.
func (s *Store) Path(scope Scope) string {
	if scope == Global {
		return s.globalPath
	}
	return s.localPath
}

// SplitKey splits "section.name" at the first dot.
func SplitKey(key string) (section, name string, err error) {
	section, name, ok := strings.Cut(key, ".")
	if !ok || section == "" || name == "" || strings.ContainsAny(key, "\n\r=") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return section, name, nil
}

// Get returns the value of key in scope. Empty values read as absent.
func (s *Store) Get(scope Scope, key string) (string, bool, error) {
	section, name, err := SplitKey(key)
	if err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.load(scope)
	if err != nil {
		return "", false, err
	}
	sec, err := f.GetSection(section)
	if err != nil || !sec.HasKey(name) {
		return "", false, nil
	}
	v := sec.Key(name).String()
	return v, v != "", nil
}

// Lookup returns key from the local scope, falling back to global. A
// disabled scope is skipped.
func (s *Store) Lookup(key string) (string, bool, error) {
	for _, scope := range []Scope{Local, Global} {
		if s.Path(scope) == "" {
			continue
		}
		v, ok, err := s.Get(scope, key)
		if err != nil {
			if errors.Is(err, ErrInvalidKey) {
				return "", false, err
			}
			return "", false, fmt.Errorf("lookup %s: %w", key, err)
		}
		if ok {
			return v, true, nil
		}
	}
	if _, _, err := SplitKey(key); err != nil {
		return "", false, err
	}
	return "", false, nil
}

// Put sets key to value in scope, creating the file if needed.
func (s *Store) Put(scope Scope, key, value string) error {
	section, name, err := SplitKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.load(scope)
	if err != nil {
		return err
	}
	f.Section(section).Key(name).SetValue(value)
	return s.save(scope, f)
}

// Unset removes key from scope. Sections left empty are removed too.
func (s *Store) Unset(scope Scope, key string) (bool, error) {
	section, name, err := SplitKey(key)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.load(scope)
	if err != nil {
		return false, err
	}
	sec, err := f.GetSection(section)
	if err != nil || !sec.HasKey(name) {
		return false, nil
	}
	sec.DeleteKey(name)
	if len(sec.Keys()) == 0 {
		f.DeleteSection(section)
	}
	return true, s.save(scope, f)
}

// List returns every key in scope in file order.
func (s *Store) List(scope Scope) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.load(scope)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		for _, k := range sec.Keys() {
			out = append(out, Entry{Key: sec.Name() + "." + k.Name(), Value: k.Value()})
		}
	}
	return out, nil
}

func (s *Store) load(scope Scope) (*ini.File, error) {
	path := s.Path(scope)
	if path == "" {
		return nil, fmt.Errorf("%s config: %w", scope, ErrNoLocation)
	}
	f, err := ini.LoadSources(ini.LoadOptions{Loose: true}, path)
	if err != nil {
		return nil, fmt.Errorf("read %s config: %w", scope, err)
	}
	return f, nil
}

// save writes f next to its destination and renames it into place.
func (s *Store) save(scope Scope, f *ini.File) error {
	path := s.Path(scope)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write %s config: %w", scope, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write %s config: tmpfile: %w", scope, err)
	}
	tmpName := tmp.Name()
	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s config: write: %w", scope, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s config: close: %w", scope, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s config: rename: %w", scope, err)
	}
	return nil
}
