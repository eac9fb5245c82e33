package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/repo"
)

func newCommitCmd(g *globalOptions) *cobra.Command {
	var (
		message string
		author  string
		all     bool
		sign    bool
		signKey string
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record staged changes as a new commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			opts := repo.CommitOptions{Message: message, All: all}
			if author != "" {
				p, err := parsePerson(author)
				if err != nil {
					return err
				}
				opts.Author = &p
			}
			if sign || signKey != "" {
				signer, keyPath, err := newSSHCommitSigner(signKey)
				if err != nil {
					return err
				}
				opts.Signer = signer
				r.Logger().Debug("signing commit", "key", keyPath)
			}
			logger := r.Logger()
			opts.Progress = func(p repo.CommitPhase) {
				logger.Debug("commit phase", "phase", p.String())
			}

			c, err := r.Commit(cmd.Context(), opts)
			if err != nil {
				return err
			}

			branch, err := r.CurrentBranch()
			if err != nil || branch == "" {
				branch = "HEAD"
			}
			summary, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, c.ID.Short(), summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "override author (\"Name <email>\")")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "stage every unstaged change first")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with the default SSH key")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "SSH private key used to sign the commit")

	return cmd
}
