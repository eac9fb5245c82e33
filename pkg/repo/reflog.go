package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/strata/pkg/refs"
)

// ReadReflog returns up to limit reflog entries for ref, newest first. An
// empty ref or "HEAD" reads the log of the branch HEAD points at; short
// names are taken as branches.
func (r *Repo) ReadReflog(ref string, limit int) ([]refs.ReflogEntry, error) {
	name, err := r.reflogRefName(ref)
	if err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	entries, err := r.refs.ReadReflog(name, limit)
	if err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	return entries, nil
}

func (r *Repo) reflogRefName(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == refs.Head {
		target, ok, err := r.refs.GetSymRef(refs.Head)
		if err != nil && !errors.Is(err, refs.ErrKindMismatch) {
			return "", err
		}
		if ok {
			return target, nil
		}
		return refs.Head, nil
	}
	if refs.ValidateName(ref) == nil {
		return ref, nil
	}
	name := refs.BranchName(ref)
	return name, refs.ValidateName(name)
}
