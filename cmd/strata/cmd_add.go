package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add [pattern...]",
		Short: "Stage changes matching path prefixes or globs",
		Long:  "Stage unstaged changes whose path lies under one of the given prefixes or matches one of the given ** globs. Without arguments every change is staged.",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			n, err := r.Add(args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "staged %d change(s)\n", n)
			return nil
		},
	}
}
