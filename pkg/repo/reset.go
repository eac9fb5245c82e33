package repo

import (
	"fmt"

	"github.com/odvcencio/strata/pkg/tree"
)

// Reset drops staged and unstaged changes under the given path prefixes.
// With no prefixes every change is dropped together with the pending
// objects written for them. Committed history is untouched.
func (r *Repo) Reset(prefixes ...string) (int, error) {
	if len(prefixes) == 0 {
		n := r.staging.CountStaged("") + r.staging.CountUnstaged("")
		if err := r.staging.Reset(); err != nil {
			return 0, fmt.Errorf("reset: %w", err)
		}
		if err := r.overlay.Discard(); err != nil {
			return 0, fmt.Errorf("reset: %w", err)
		}
		return n, nil
	}

	total := 0
	for _, prefix := range prefixes {
		if _, err := tree.SplitPath(prefix); err != nil {
			return total, fmt.Errorf("reset: %w", err)
		}
		n, err := r.staging.RemoveStaged(prefix)
		if err != nil {
			return total, fmt.Errorf("reset %s: %w", prefix, err)
		}
		total += n
		n, err = r.staging.RemoveUnstaged(prefix)
		if err != nil {
			return total, fmt.Errorf("reset %s: %w", prefix, err)
		}
		total += n
	}
	return total, nil
}
