package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/strata/pkg/config"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
	"github.com/odvcencio/strata/pkg/staging"
	"github.com/odvcencio/strata/pkg/storage/badgerdb"
	"github.com/odvcencio/strata/pkg/storage/boltdb"
)

var (
	ErrRepoExists    = errors.New("repository already exists")
	ErrNotRepository = errors.New("not a strata repository")
)

const (
	objectsDir = "objects"
	pendingDir = "pending"
	indexFile  = "index"
	configFile = "config"
)

// Init creates a repository at path. It creates the DirName directory with
// format.toml, objects/, refs/heads/, refs/tags/ and a HEAD symbolic ref
// pointing at refs/heads/master. It fails if DirName already exists.
func Init(path string, opts Options) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	dir := filepath.Join(abs, DirName)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("init: %w at %s", ErrRepoExists, dir)
	}

	format := DefaultFormat()
	if opts.Format != nil {
		format = *opts.Format
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	for _, d := range []string{
		filepath.Join(dir, objectsDir),
		filepath.Join(dir, pendingDir),
		filepath.Join(dir, "refs", "heads"),
		filepath.Join(dir, "refs", "tags"),
		filepath.Join(dir, "logs"),
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}
	if err := writeFormat(dir, format); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	r, err := open(abs, dir, opts)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if _, err := r.refs.PutSymRef(refs.Head, refs.Master, ""); err != nil {
		r.Close()
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	r.logger.Info("initialized repository", "dir", dir, "backend", format.Storage.Backend)
	return r, nil
}

// Open searches upward from path for a DirName directory and opens the
// repository. An empty path starts at the platform working directory.
func Open(path string, opts Options) (*Repo, error) {
	if path == "" {
		path = platformOf(opts).WorkingDir
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		dir := filepath.Join(cur, DirName)
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			r, err := open(cur, dir, opts)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return r, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: %w (or any parent up to /): %s", ErrNotRepository, abs)
		}
		cur = parent
	}
}

func platformOf(opts Options) Platform {
	if opts.Platform != nil {
		return *opts.Platform
	}
	return DefaultPlatform()
}

func open(root, dir string, opts Options) (*Repo, error) {
	format, err := readFormat(dir)
	if err != nil {
		return nil, err
	}

	r := &Repo{
		RootDir:  root,
		Dir:      dir,
		format:   format,
		platform: platformOf(opts),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if r.logger == nil {
		r.logger = discardLogger()
	}

	r.backend, err = openBackend(filepath.Join(dir, objectsDir), format)
	if err != nil {
		return nil, err
	}
	front := object.NewFileBackend(filepath.Join(dir, pendingDir), format.compression())
	r.overlay = object.NewOverlay(front, r.backend)
	r.objects = object.NewStore(r.backend, r.metrics)
	r.store = object.NewStore(r.overlay, r.metrics)

	r.refs = refs.NewFileDatabase(dir, r.metrics)
	r.config = config.New(filepath.Join(dir, configFile), config.ForHome(r.platform.UserHome))

	r.staging, err = staging.Open(r.store, format.Tree, filepath.Join(dir, indexFile))
	if err != nil {
		r.Close()
		return nil, err
	}

	r.resolver = opts.StateResolver
	if r.resolver == nil {
		r.resolver = NewConfigResolver(r.config, r.platform)
	}
	return r, nil
}

func openBackend(dir string, f Format) (object.Backend, error) {
	switch f.Storage.Backend {
	case BackendBolt:
		return boltdb.Open(filepath.Join(dir, boltdb.FileName), f.compression())
	case BackendBadger:
		return badgerdb.Open(filepath.Join(dir, badgerdb.DirName), badgerdb.Options{Compression: f.compression()})
	default:
		return object.NewFileBackend(dir, f.compression()), nil
	}
}
