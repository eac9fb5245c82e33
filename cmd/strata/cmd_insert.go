package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newInsertCmd(g *globalOptions) *cobra.Command {
	var stage bool

	cmd := &cobra.Command{
		Use:   "insert <path> [file]",
		Short: "Store a YAML or JSON record at path",
		Long:  "Store a YAML or JSON record at path. The record is read from file, or from stdin when file is omitted or \"-\".",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 1 || args[1] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[1])
			}
			if err != nil {
				return fmt.Errorf("read record: %w", err)
			}

			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			ref, err := r.Insert(args[0], data)
			if err != nil {
				return err
			}
			if stage {
				if _, err := r.Add(args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ref.ObjectID.Short(), ref.Path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&stage, "stage", "s", false, "stage the record right away")
	return cmd
}
