package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

func newVerifyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [revision]",
		Short: "Check the SSH signature of a commit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			c, err := r.ResolveCommit(rev)
			if err != nil {
				return err
			}
			pub, err := verifyCommitSignature(c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: commit %s signed by %s key %s\n", c.ID.Short(), pub.Type(), ssh.FingerprintSHA256(pub))
			return nil
		},
	}
}
