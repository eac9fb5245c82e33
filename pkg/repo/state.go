package repo

import (
	"fmt"
	"time"

	"github.com/odvcencio/strata/pkg/config"
	"github.com/odvcencio/strata/pkg/object"
)

// StateResolver supplies commit fields the caller did not set.
type StateResolver interface {
	Author() (object.Person, error)
	Committer() (object.Person, error)
	// Now returns the commit time in Unix milliseconds.
	Now() int64
}

// ConfigResolver reads identity from config keys user.name and user.email
// (local, then global) and falls back to the platform user name.
type ConfigResolver struct {
	config   *config.Store
	platform Platform
	clock    func() time.Time
}

// NewConfigResolver returns the default resolver.
func NewConfigResolver(cfg *config.Store, platform Platform) *ConfigResolver {
	return &ConfigResolver{config: cfg, platform: platform, clock: time.Now}
}

func (c *ConfigResolver) Author() (object.Person, error) {
	return c.identity("user")
}

// Committer uses committer.name/committer.email when set, and the author
// identity otherwise.
func (c *ConfigResolver) Committer() (object.Person, error) {
	p, err := c.identity("committer")
	if err != nil {
		return p, err
	}
	if p.Name == "" && p.Email == "" {
		return c.Author()
	}
	return p, nil
}

func (c *ConfigResolver) identity(section string) (object.Person, error) {
	var p object.Person
	var err error
	if p.Name, _, err = c.config.Lookup(section + ".name"); err != nil {
		return p, fmt.Errorf("resolve %s identity: %w", section, err)
	}
	if p.Email, _, err = c.config.Lookup(section + ".email"); err != nil {
		return p, fmt.Errorf("resolve %s identity: %w", section, err)
	}
	if section == "user" && p.Name == "" {
		p.Name = c.platform.UserName
	}
	return p, nil
}

func (c *ConfigResolver) Now() int64 {
	return c.clock().UnixMilli()
}
