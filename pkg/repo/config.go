package repo

import (
	"fmt"

	"github.com/odvcencio/strata/pkg/config"
	"github.com/odvcencio/strata/pkg/object"
)

// SetIdentity stores user.name and user.email in scope.
func (r *Repo) SetIdentity(scope config.Scope, p object.Person) error {
	if err := r.config.Put(scope, "user.name", p.Name); err != nil {
		return fmt.Errorf("set identity: %w", err)
	}
	if err := r.config.Put(scope, "user.email", p.Email); err != nil {
		return fmt.Errorf("set identity: %w", err)
	}
	return nil
}

// Identity returns the author identity new commits get by default.
func (r *Repo) Identity() (object.Person, error) {
	return r.resolver.Author()
}
