package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/diff"
)

func newStatusCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged and unstaged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			st, err := r.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			branch := st.Branch
			if branch == "" {
				branch = "detached HEAD"
			}
			if st.Head.IsNull() {
				fmt.Fprintf(out, "on %s (no commits yet)\n", branch)
			} else {
				fmt.Fprintf(out, "on %s\n", branch)
			}

			printSection(out, "staged:", st.Staged)
			printSection(out, "unstaged:", st.Unstaged)
			if st.Clean() {
				fmt.Fprintln(out, "nothing to commit")
			}
			return nil
		},
	}
}

func printSection(out io.Writer, title string, entries []diff.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, title)
	for _, e := range entries {
		fmt.Fprintf(out, "  %s %s\n", e.Change.Marker(), e.Path())
	}
}
