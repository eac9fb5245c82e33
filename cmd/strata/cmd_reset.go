package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [prefix...]",
		Short: "Drop staged and unstaged changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			n, err := r.Reset(args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %d change(s)\n", n)
			return nil
		},
	}
}
