package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/tree"
)

// FormatVersion is the only repository format this package opens.
const FormatVersion = 1

const formatFile = "format.toml"

// Storage backend names.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendBadger = "badger"
)

// ErrBadFormat is returned when format.toml is missing, unknown or invalid.
var ErrBadFormat = errors.New("bad repository format")

// Format is the immutable layout of a repository, fixed at Init. Tree
// thresholds determine object IDs, so they never change afterwards.
type Format struct {
	Version int           `toml:"version"`
	Storage StorageFormat `toml:"storage"`
	Tree    tree.Params   `toml:"tree"`
}

// StorageFormat selects the object backend.
type StorageFormat struct {
	Backend     string `toml:"backend"`
	Compression string `toml:"compression"`
}

// DefaultFormat returns the format of a new repository.
func DefaultFormat() Format {
	return Format{
		Version: FormatVersion,
		Storage: StorageFormat{Backend: BackendFile, Compression: object.CompressionZstd.String()},
		Tree:    tree.DefaultParams(),
	}
}

// Validate checks f.
func (f Format) Validate() error {
	if f.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadFormat, f.Version)
	}
	if !slices.Contains([]string{BackendFile, BackendBolt, BackendBadger}, f.Storage.Backend) {
		return fmt.Errorf("%w: unknown storage backend %q", ErrBadFormat, f.Storage.Backend)
	}
	if _, err := object.ParseCompression(f.Storage.Compression); err != nil {
		return fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if err := f.Tree.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return nil
}

func (f Format) compression() object.Compression {
	c, _ := object.ParseCompression(f.Storage.Compression)
	return c
}

func readFormat(dir string) (Format, error) {
	var f Format
	md, err := toml.DecodeFile(filepath.Join(dir, formatFile), &f)
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return f, fmt.Errorf("%w: unknown keys %s", ErrBadFormat, strings.Join(keys, ", "))
	}
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

func writeFormat(dir string, f Format) error {
	tmp, err := os.CreateTemp(dir, ".format-tmp-*")
	if err != nil {
		return fmt.Errorf("write format: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if err := toml.NewEncoder(tmp).Encode(f); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write format: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write format: close: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, formatFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write format: rename: %w", err)
	}
	return nil
}
