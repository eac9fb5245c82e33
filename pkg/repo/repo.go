// Package repo ties the object store, hash trees, refs, staging area and
// config together into a repository on disk.
package repo

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/user"

	"github.com/odvcencio/strata/pkg/config"
	"github.com/odvcencio/strata/pkg/metrics"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
	"github.com/odvcencio/strata/pkg/staging"
	"github.com/odvcencio/strata/pkg/tree"
)

// DirName is the repository metadata directory inside the root.
const DirName = ".strata"

// Platform describes the process environment a repository is used from.
type Platform struct {
	WorkingDir string
	UserHome   string
	// UserName is the last-resort commit identity.
	UserName string
}

// DefaultPlatform reads the platform from the running process. Fields that
// cannot be determined are left empty.
func DefaultPlatform() Platform {
	var p Platform
	p.WorkingDir, _ = os.Getwd()
	p.UserHome, _ = os.UserHomeDir()
	if u, err := user.Current(); err == nil {
		p.UserName = u.Username
	}
	return p
}

// Options configure Init and Open. The zero value is usable.
type Options struct {
	// Platform defaults to DefaultPlatform().
	Platform *Platform
	// Format is used by Init only; nil means DefaultFormat().
	Format *Format
	Logger  *slog.Logger
	Metrics *metrics.Collector
	// StateResolver overrides how missing commit identity and time are
	// filled in. nil uses config user.name/user.email and the platform.
	StateResolver StateResolver
}

// Repo is an opened repository.
type Repo struct {
	RootDir string // directory containing DirName
	Dir     string // the DirName directory

	format   Format
	platform Platform
	logger   *slog.Logger
	metrics  *metrics.Collector
	resolver StateResolver

	backend object.Backend  // committed objects
	overlay *object.Overlay // pending objects over backend
	objects *object.Store   // reads and writes backend directly
	store   *object.Store   // reads everything, writes pending

	refs    *refs.FileDatabase
	staging *staging.Area
	config  *config.Store
}

// Store returns the object store seen by in-progress work: committed
// objects plus pending ones. New objects written through it stay pending
// until the next commit.
func (r *Repo) Store() *object.Store { return r.store }

// Objects returns the store of committed objects.
func (r *Repo) Objects() *object.Store { return r.objects }

// Refs returns the ref database.
func (r *Repo) Refs() refs.Database { return r.refs }

// Staging returns the staging area.
func (r *Repo) Staging() *staging.Area { return r.staging }

// Config returns the local/global config store.
func (r *Repo) Config() *config.Store { return r.config }

// Format returns the repository format read at open.
func (r *Repo) Format() Format { return r.format }

// Params returns the tree thresholds of this repository.
func (r *Repo) Params() tree.Params { return r.format.Tree }

// Platform returns the platform the repository was opened with.
func (r *Repo) Platform() Platform { return r.platform }

// Logger returns the repository logger.
func (r *Repo) Logger() *slog.Logger { return r.logger }

// Close releases the object backends.
func (r *Repo) Close() error {
	return errors.Join(r.overlay.Close(), r.backend.Close())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
