package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/refs"
)

func newUpdateRefCmd(g *globalOptions) *cobra.Command {
	var (
		deleteRef bool
		reason    string
	)

	cmd := &cobra.Command{
		Use:   "update-ref <ref> [<new> [<old>]]",
		Short: "Set or delete a ref, optionally only if it holds <old>",
		Long:  "Set ref to the object named by <new>. When <old> is given the update only happens if the ref currently holds it; an all-zero <old> requires the ref not to exist.",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			name := args[0]
			if deleteRef {
				if len(args) > 2 {
					return fmt.Errorf("update-ref -d takes <ref> [<old>]")
				}
				var expected []object.ID
				if len(args) == 2 {
					old, err := parseExpected(r.ResolveRevision, args[1])
					if err != nil {
						return err
					}
					expected = append(expected, old)
				}
				_, err := r.Refs().RemoveRef(name, expected...)
				return err
			}

			if len(args) < 2 {
				return fmt.Errorf("update-ref needs a new value")
			}
			next, err := r.ResolveRevision(args[1])
			if err != nil {
				return err
			}
			var expected []object.ID
			if len(args) == 3 {
				old, err := parseExpected(r.ResolveRevision, args[2])
				if err != nil {
					return err
				}
				expected = append(expected, old)
			}
			if reason == "" {
				reason = "update-ref"
			}
			_, err = refs.Update(r.Refs(), name, next, reason, expected...)
			if errors.Is(err, refs.ErrReflogAppend) {
				r.Logger().Warn("reflog append failed", "ref", name, "err", err)
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&deleteRef, "delete", "d", false, "delete the ref")
	cmd.Flags().StringVarP(&reason, "message", "m", "", "reflog reason")
	return cmd
}

// parseExpected reads an expected old value; all zeros means absent.
func parseExpected(resolve func(string) (object.ID, error), s string) (object.ID, error) {
	if id, err := object.ParseID(s); err == nil {
		return id, nil
	}
	return resolve(s)
}

func newSymbolicRefCmd(g *globalOptions) *cobra.Command {
	var deleteRef bool

	cmd := &cobra.Command{
		Use:   "symbolic-ref <name> [<target>]",
		Short: "Read, set or delete a symbolic ref",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			name := args[0]
			switch {
			case deleteRef:
				_, err := r.Refs().RemoveSymRef(name)
				return err
			case len(args) == 2:
				if err := refs.ValidateName(args[1]); err != nil {
					return err
				}
				if _, _, err := r.Refs().GetSymRef(name); errors.Is(err, refs.ErrKindMismatch) {
					cur, _, _ := r.Refs().GetRef(name)
					if _, err := r.Refs().RemoveRef(name, cur); err != nil {
						return err
					}
				}
				_, err := r.Refs().PutSymRef(name, args[1])
				return err
			default:
				target, ok, err := r.Refs().GetSymRef(name)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("ref %s is not a symbolic ref", name)
				}
				fmt.Fprintln(cmd.OutOrStdout(), target)
				return nil
			}
		},
	}

	cmd.Flags().BoolVarP(&deleteRef, "delete", "d", false, "delete the symbolic ref")
	return cmd
}
