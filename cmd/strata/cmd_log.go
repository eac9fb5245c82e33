package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
	"github.com/odvcencio/strata/pkg/repo"
)

const dateLayout = "2006-01-02 15:04:05"

func newLogCmd(g *globalOptions) *cobra.Command {
	var (
		oneline bool
		limit   int
		since   string
		after   string
		before  string
	)

	cmd := &cobra.Command{
		Use:   "log [revision] [-- path...]",
		Short: "Show commit history",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			opts := repo.LogOptions{Limit: limit}
			revArgs, paths := args, []string(nil)
			if n := cmd.ArgsLenAtDash(); n >= 0 {
				revArgs, paths = args[:n], args[n:]
			}
			if len(revArgs) > 1 {
				return fmt.Errorf("log takes at most one revision")
			}
			opts.Paths = paths
			if len(revArgs) == 1 {
				if opts.Until, err = r.ResolveRevision(revArgs[0]); err != nil {
					return err
				}
			}
			if since != "" {
				if opts.Since, err = r.ResolveRevision(since); err != nil {
					return err
				}
			}
			if opts.MinTime, err = parseDate(after); err != nil {
				return err
			}
			if opts.MaxTime, err = parseDate(before); err != nil {
				return err
			}

			head, _, _, err := refs.Resolve(r.Refs(), refs.Head)
			if err != nil {
				return err
			}
			branch, _ := r.CurrentBranch()

			out := cmd.OutOrStdout()
			shown := 0
			for e, err := range r.Log(cmd.Context(), opts) {
				if err != nil {
					return err
				}
				shown++
				writeLogEntry(cmd, e.ID, e.Commit, decoration(e.ID, head, branch), oneline)
			}
			if shown == 0 && head.IsNull() {
				fmt.Fprintln(out, "no commits yet")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show (0 for all)")
	cmd.Flags().StringVar(&since, "since", "", "stop before this revision")
	cmd.Flags().StringVar(&after, "after", "", "only commits at or after this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&before, "before", "", "only commits at or before this date (YYYY-MM-DD or RFC 3339)")

	return cmd
}

func writeLogEntry(cmd *cobra.Command, id object.ID, c *object.Commit, deco string, oneline bool) {
	out := cmd.OutOrStdout()
	if oneline {
		if deco != "" {
			fmt.Fprintf(out, "%s %s %s\n", id.Short(), deco, c.Message)
		} else {
			fmt.Fprintf(out, "%s %s\n", id.Short(), c.Message)
		}
		return
	}
	if deco != "" {
		fmt.Fprintf(out, "commit %s %s\n", id, deco)
	} else {
		fmt.Fprintf(out, "commit %s\n", id)
	}
	fmt.Fprintf(out, "Author: %s\n", c.Author)
	fmt.Fprintf(out, "Date:   %s\n", time.UnixMilli(c.Timestamp).UTC().Format(dateLayout))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    %s\n", c.Message)
	fmt.Fprintln(out)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, dateLayout, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
