package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRmCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>...",
		Short: "Record the removal of records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			for _, path := range args {
				if err := r.Delete(cmd.Context(), path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rm %s\n", path)
			}
			return nil
		},
	}
}
