package diff

import (
	"fmt"
	"strings"
)

// Marker returns the one-character status marker for c.
func (c ChangeType) Marker() string {
	switch c {
	case Added:
		return "+"
	case Removed:
		return "-"
	case Modified:
		return "~"
	default:
		return "?"
	}
}

// FormatEntries produces a human-readable summary of changes.
//
// Output format:
//
//	+ roads/F.1     (added)
//	~ roads/F.2     (modified)
//	- roads/F.3     (removed)
func FormatEntries(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s     (%s)\n", e.Change.Marker(), e.Path(), e.Change)
	}
	return b.String()
}

// FormatRaw produces one line per change with the abbreviated old and new
// object IDs, using "-" for the side that does not exist.
//
//	~ 1a2b3c4d 5e6f7a8b roads/F.2
func FormatRaw(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		oldID, newID := "-", "-"
		if e.Old != nil {
			oldID = e.Old.ObjectID.Short()
		}
		if e.New != nil {
			newID = e.New.ObjectID.Short()
		}
		fmt.Fprintf(&b, "%s %s %s %s\n", e.Change.Marker(), oldID, newID, e.Path())
	}
	return b.String()
}

// Stat counts changes by type.
type Stat struct {
	Added, Removed, Modified int
}

// Summarize counts the entries by change type.
func Summarize(entries []Entry) Stat {
	var s Stat
	for _, e := range entries {
		switch e.Change {
		case Added:
			s.Added++
		case Removed:
			s.Removed++
		case Modified:
			s.Modified++
		}
	}
	return s
}

func (s Stat) String() string {
	return fmt.Sprintf("%d added, %d modified, %d removed", s.Added, s.Modified, s.Removed)
}
