package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/diff"
	"github.com/odvcencio/strata/pkg/object"
	"github.com/odvcencio/strata/pkg/record"
	"github.com/odvcencio/strata/pkg/repo"
)

func newShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [revision][:path]",
		Short: "Show a commit, tag, tree or record",
		Long:  "Show an object. \"rev:path\" prints the record at path in rev as YAML; \":path\" reads the current staged or unstaged state.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			arg := "HEAD"
			if len(args) == 1 {
				arg = args[0]
			}
			out := cmd.OutOrStdout()

			if rev, path, ok := strings.Cut(arg, ":"); ok {
				rec, _, err := r.ReadRecord(cmd.Context(), rev, path)
				if err != nil {
					return err
				}
				return writeRecord(out, rec)
			}

			id, err := r.ResolveRevision(arg)
			if err != nil {
				return err
			}
			obj, err := r.Store().Get(id)
			if err != nil {
				return err
			}
			switch o := obj.(type) {
			case *object.Commit:
				return showCommit(cmd, r, o)
			case *object.Tag:
				fmt.Fprintf(out, "tag %s\n", o.Name)
				fmt.Fprintf(out, "Tagger: %s\n", o.Tagger)
				fmt.Fprintf(out, "Date:   %s\n", time.UnixMilli(o.Timestamp).UTC().Format(dateLayout))
				fmt.Fprintf(out, "\n%s\n\n", o.Message)
				fmt.Fprintf(out, "%s %s\n", o.TargetType, o.Target)
			case *object.TreeObj:
				for ref, err := range r.ListTree(cmd.Context(), o.ID.String(), "") {
					if err != nil {
						return err
					}
					fmt.Fprintln(out, ref)
				}
			case *object.Blob:
				rec, err := record.Decode(o.Data)
				if err != nil {
					return err
				}
				return writeRecord(out, rec)
			}
			return nil
		},
	}
}

func showCommit(cmd *cobra.Command, r *repo.Repo, c *object.Commit) error {
	writeLogEntry(cmd, c.ID, c, "", false)
	parentRev := object.EmptyTreeID().String()
	if p := c.FirstParent(); !p.IsNull() {
		parentRev = p.String()
	}
	entries, err := r.Diff(cmd.Context(), parentRev, c.ID.String(), diff.Options{})
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), diff.FormatEntries(entries))
	return nil
}

func writeRecord(out io.Writer, rec *record.Record) error {
	data, err := rec.YAML()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
