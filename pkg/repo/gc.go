package repo

import (
	"fmt"

	"github.com/odvcencio/strata/pkg/storage/badgerdb"
)

// GCSummary reports what GC reclaimed.
type GCSummary struct {
	// PendingDiscarded counts pending objects dropped because nothing in
	// the staging area refers to them any more.
	PendingDiscarded int
	// ValueLogCompacted is set when badger rewrote a value log file.
	ValueLogCompacted bool
}

// GC drops pending objects when the staging area is empty and compacts the
// badger value log when that backend is in use. Committed objects are
// never removed.
func (r *Repo) GC() (GCSummary, error) {
	var s GCSummary
	if r.staging.CountStaged("") == 0 && r.staging.CountUnstaged("") == 0 {
		n, err := r.overlay.Pending()
		if err != nil {
			return s, fmt.Errorf("gc: %w", err)
		}
		if n > 0 {
			if err := r.overlay.Discard(); err != nil {
				return s, fmt.Errorf("gc: %w", err)
			}
		}
		s.PendingDiscarded = n
	}
	if b, ok := r.backend.(*badgerdb.Backend); ok {
		rewrote, err := b.RunGC(0.5)
		if err != nil {
			return s, fmt.Errorf("gc: %w", err)
		}
		s.ValueLogCompacted = rewrote
	}
	r.logger.Info("gc finished", "pending_discarded", s.PendingDiscarded, "value_log_compacted", s.ValueLogCompacted)
	return s, nil
}
