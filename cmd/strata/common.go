package main

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/metrics"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/repo"
)

// globalOptions carries the root persistent flags.
type globalOptions struct {
	dir         string
	verbose     bool
	metricsFile string

	registry  *prometheus.Registry
	collector *metrics.Collector
}

func (g *globalOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (g *globalOptions) repoOptions(cmd *cobra.Command) repo.Options {
	platform := repo.DefaultPlatform()
	if g.dir != "" {
		platform.WorkingDir = g.dir
	}
	opts := repo.Options{Platform: &platform, Logger: g.logger(cmd)}
	if g.metricsFile != "" && g.registry == nil {
		g.registry = prometheus.NewRegistry()
		g.collector = metrics.New(g.registry)
	}
	opts.Metrics = g.collector
	return opts
}

// open discovers the repository from the working directory (or -C).
func (g *globalOptions) open(cmd *cobra.Command) (*repo.Repo, error) {
	return repo.Open("", g.repoOptions(cmd))
}

func (g *globalOptions) flushMetrics() error {
	if g.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(g.metricsFile, g.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

var personPattern = regexp.MustCompile(`^\s*([^<]*?)\s*<([^>]*)>\s*$`)

// parsePerson reads "Name <email>" or a bare name.
func parsePerson(s string) (object.Person, error) {
	if m := personPattern.FindStringSubmatch(s); m != nil {
		return object.Person{Name: m[1], Email: m[2]}, nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "<>") {
		return object.Person{}, fmt.Errorf("invalid identity %q; expected \"Name <email>\"", s)
	}
	return object.Person{Name: s}, nil
}

// decoration returns "(HEAD -> branch)" for the HEAD commit.
func decoration(id, head object.ID, branch string) string {
	if id != head {
		return ""
	}
	if branch != "" {
		return "(HEAD -> " + branch + ")"
	}
	return "(HEAD)"
}
