package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGcCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Drop unreferenced pending objects and compact storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			s, err := r.GC()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s.PendingDiscarded == 0 {
				fmt.Fprintln(out, "nothing to discard")
			} else {
				fmt.Fprintf(out, "discarded %d pending object(s)\n", s.PendingDiscarded)
			}
			if s.ValueLogCompacted {
				fmt.Fprintln(out, "compacted value log")
			}
			return nil
		},
	}
}
