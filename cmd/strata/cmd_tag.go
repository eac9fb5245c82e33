package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/refs"
)

func newTagCmd(g *globalOptions) *cobra.Command {
	var (
		annotate  bool
		message   string
		deleteTag bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "tag [name [revision]]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				tags, err := r.ListTags()
				if err != nil {
					return err
				}
				for _, t := range tags {
					fmt.Fprintln(out, refs.ShortName(t.Name))
				}
				return nil
			}

			name := args[0]
			if deleteTag {
				if err := r.DeleteTag(name); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted tag '%s'\n", name)
				return nil
			}

			rev := "HEAD"
			if len(args) == 2 {
				rev = args[1]
			}
			target, err := r.ResolveRevision(rev)
			if err != nil {
				return fmt.Errorf("cannot resolve %s: %w", rev, err)
			}
			if annotate || message != "" {
				t, err := r.CreateAnnotatedTag(name, target, nil, message, nil, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "tagged %s as %s (%s)\n", target.Short(), name, t.ID.Short())
				return nil
			}
			if err := r.CreateTag(name, target, force); err != nil {
				return err
			}
			fmt.Fprintf(out, "tagged %s as %s\n", target.Short(), name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&annotate, "annotate", "a", false, "create an annotated tag object")
	cmd.Flags().StringVarP(&message, "message", "m", "", "annotated tag message (implies -a)")
	cmd.Flags().BoolVarP(&deleteTag, "delete", "d", false, "delete the tag")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")

	return cmd
}
