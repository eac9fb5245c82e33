package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "strata",
		Short:         "Version control for structured records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return g.flushMetrics()
		},
	}
	root.PersistentFlags().StringVarP(&g.dir, "dir", "C", "", "run as if started in this directory")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")
	root.PersistentFlags().StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(g))
	root.AddCommand(newInsertCmd(g))
	root.AddCommand(newRmCmd(g))
	root.AddCommand(newAddCmd(g))
	root.AddCommand(newResetCmd(g))
	root.AddCommand(newStatusCmd(g))
	root.AddCommand(newCommitCmd(g))
	root.AddCommand(newLogCmd(g))
	root.AddCommand(newDiffCmd(g))
	root.AddCommand(newShowCmd(g))
	root.AddCommand(newLsTreeCmd(g))
	root.AddCommand(newBranchCmd(g))
	root.AddCommand(newSwitchCmd(g))
	root.AddCommand(newTagCmd(g))
	root.AddCommand(newUpdateRefCmd(g))
	root.AddCommand(newSymbolicRefCmd(g))
	root.AddCommand(newReflogCmd(g))
	root.AddCommand(newConfigCmd(g))
	root.AddCommand(newGcCmd(g))
	root.AddCommand(newVerifyCmd(g))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "strata %s\n", version)
		},
	}
}
