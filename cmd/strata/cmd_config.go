package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/config"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	var (
		global bool
		list   bool
		unset  bool
	)

	cmd := &cobra.Command{
		Use:   "config [--global] <key> [value]",
		Short: "Get and set repository or global options",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()
			cfg := r.Config()
			out := cmd.OutOrStdout()

			scope := config.Local
			if global {
				scope = config.Global
			}

			switch {
			case list:
				entries, err := cfg.List(scope)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(out, "%s=%s\n", e.Key, e.Value)
				}
				return nil
			case len(args) == 0:
				return fmt.Errorf("config needs a key")
			case unset:
				removed, err := cfg.Unset(scope, args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("key %s is not set in %s config", args[0], scope)
				}
				return nil
			case len(args) == 2:
				return cfg.Put(scope, args[0], args[1])
			}

			var (
				value string
				found bool
			)
			if cmd.Flags().Changed("global") {
				value, found, err = cfg.Get(scope, args[0])
			} else {
				value, found, err = cfg.Lookup(args[0])
			}
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %s is not set", args[0])
			}
			fmt.Fprintln(out, value)
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "use the global config file")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list every key in the chosen scope")
	cmd.Flags().BoolVar(&unset, "unset", false, "remove the key")

	return cmd
}
