package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/diff"
)

func newDiffCmd(g *globalOptions) *cobra.Command {
	var (
		raw  bool
		stat bool
		path string
	)

	cmd := &cobra.Command{
		Use:   "diff [old [new]]",
		Short: "Show changed records between revisions",
		Long:  "Show changed records between two revisions. old defaults to HEAD; new defaults to the tree the staged changes would commit.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			var oldRev, newRev string
			if len(args) > 0 {
				oldRev = args[0]
			}
			if len(args) > 1 {
				newRev = args[1]
			}

			entries, err := r.Diff(cmd.Context(), oldRev, newRev, diff.Options{PathFilter: path})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case stat:
				fmt.Fprintln(out, diff.Summarize(entries))
			case raw:
				fmt.Fprint(out, diff.FormatRaw(entries))
			default:
				fmt.Fprint(out, diff.FormatEntries(entries))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "show abbreviated object IDs")
	cmd.Flags().BoolVar(&stat, "stat", false, "only count changes")
	cmd.Flags().StringVarP(&path, "path", "p", "", "only report records under this path")

	return cmd
}
