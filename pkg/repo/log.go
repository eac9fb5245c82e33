package repo

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/odvcencio/strata/pkg/diff"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

// LogOptions filter a history walk. Zero values disable a filter.
type LogOptions struct {
	// Until is the newest commit to start from; NullID means HEAD.
	Until object.ID
	// Since stops the walk when reached; it is not reported.
	Since object.ID
	// MinTime and MaxTime bound commit timestamps, inclusive.
	MinTime time.Time
	MaxTime time.Time
	// Paths keeps commits that change at least one path under any prefix,
	// compared with their first parent.
	Paths []string
	// Limit caps the number of commits reported.
	Limit int
}

// LogEntry is one reported commit.
type LogEntry struct {
	ID     object.ID
	Commit *object.Commit
}

// Log walks first-parent history newest-first. Filters apply in order:
// the Since boundary, the time range, the path prefixes, then the limit.
// An empty history yields nothing. Errors and cancellation end the
// sequence with a final error.
func (r *Repo) Log(ctx context.Context, opts LogOptions) iter.Seq2[LogEntry, error] {
	return func(yield func(LogEntry, error) bool) {
		current := opts.Until
		if current.IsNull() {
			id, _, found, err := refs.Resolve(r.refs, refs.Head)
			if err != nil {
				yield(LogEntry{}, fmt.Errorf("log: resolve HEAD: %w", err))
				return
			}
			if !found {
				return
			}
			current = id
		}

		reported := 0
		for !current.IsNull() {
			if err := ctx.Err(); err != nil {
				yield(LogEntry{}, fmt.Errorf("log: %w", err))
				return
			}
			if !opts.Since.IsNull() && current == opts.Since {
				return
			}
			c, err := r.peelCommit(current)
			if err != nil {
				yield(LogEntry{}, fmt.Errorf("log: read commit %s: %w", current.Short(), err))
				return
			}

			keep := inTimeRange(c.Timestamp, opts.MinTime, opts.MaxTime)
			if keep && len(opts.Paths) > 0 {
				keep, err = r.touchesPaths(ctx, c, opts.Paths)
				if err != nil {
					yield(LogEntry{}, fmt.Errorf("log: %w", err))
					return
				}
			}
			if keep {
				if !yield(LogEntry{ID: c.ID, Commit: c}, nil) {
					return
				}
				reported++
				if opts.Limit > 0 && reported >= opts.Limit {
					return
				}
			}
			current = c.FirstParent()
		}
	}
}

func inTimeRange(ms int64, lo, hi time.Time) bool {
	if !lo.IsZero() && ms < lo.UnixMilli() {
		return false
	}
	if !hi.IsZero() && ms > hi.UnixMilli() {
		return false
	}
	return true
}

// touchesPaths reports whether c changes anything under one of paths
// relative to its first parent, or to the empty tree for a root commit.
func (r *Repo) touchesPaths(ctx context.Context, c *object.Commit, paths []string) (bool, error) {
	parentTree := object.EmptyTreeID()
	if p := c.FirstParent(); !p.IsNull() {
		parent, err := r.peelCommit(p)
		if err != nil {
			return false, fmt.Errorf("read parent %s: %w", p.Short(), err)
		}
		parentTree = parent.TreeID
	}
	for _, path := range paths {
		for _, err := range diff.Trees(ctx, r.store, r.Params(), parentTree, c.TreeID, diff.Options{PathFilter: path}) {
			if err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}
