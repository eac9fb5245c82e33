package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLsTreeCmd(g *globalOptions) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls-tree [revision] [prefix]",
		Short: "List the records of a revision",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			rev, prefix := "HEAD", ""
			if len(args) > 0 {
				rev = args[0]
			}
			if len(args) > 1 {
				prefix = args[1]
			}

			out := cmd.OutOrStdout()
			for ref, err := range r.ListTree(cmd.Context(), rev, prefix) {
				if err != nil {
					return err
				}
				if !long {
					fmt.Fprintln(out, ref.Path)
					continue
				}
				line := fmt.Sprintf("%s %s %s", ref.Type, ref.ObjectID, ref.Path)
				if b := ref.Bounds; b != nil {
					line += fmt.Sprintf("  [%g %g %g %g]", b.MinX, b.MinY, b.MaxX, b.MaxY)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "show object IDs and bounds")
	return cmd
}
