package refs

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/strata/pkg/object"
)

// ReflogEntry records one change of a ref's value.
type ReflogEntry struct {
	Ref       string
	Old       object.ID
	New       object.ID
	Timestamp int64 // Unix seconds
	Reason    string
}

// Reflogger is implemented by databases that keep a reflog.
type Reflogger interface {
	// ReadReflog returns the entries of name newest first, at most limit
	// when limit > 0.
	ReadReflog(name string, limit int) ([]ReflogEntry, error)
}

// ReflogError indicates the ref update succeeded, but appending the
// corresponding reflog entry failed.
type ReflogError struct {
	Ref string
	Old object.ID
	New object.ID
	Err error
}

func (e *ReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("update ref %q: %s (old=%s new=%s): %v", e.Ref, ErrReflogAppend, e.Old.Short(), e.New.Short(), e.Err)
}

func (e *ReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ReflogError) Is(target error) bool {
	return target == ErrReflogAppend
}

func newReflogEntry(name string, old, next object.ID, reason string) ReflogEntry {
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}
	// Keep each entry on one line.
	reason = strings.ReplaceAll(strings.TrimSpace(reason), "\n", " ")
	return ReflogEntry{Ref: name, Old: old, New: next, Timestamp: time.Now().Unix(), Reason: reason}
}

func formatReflogLine(e ReflogEntry) string {
	return fmt.Sprintf("%s %s %d %s\n", e.Old, e.New, e.Timestamp, e.Reason)
}

// parseReflog reads "old new ts reason" lines, skipping malformed ones, and
// returns them newest first.
func parseReflog(name string, r io.Reader, limit int) ([]ReflogEntry, error) {
	var entries []ReflogEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 4 {
			continue
		}
		old, err := object.ParseID(parts[0])
		if err != nil {
			continue
		}
		next, err := object.ParseID(parts[1])
		if err != nil {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, ReflogEntry{Ref: name, Old: old, New: next, Timestamp: ts, Reason: parts[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	slices.Reverse(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
