package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/strata/pkg/repo"
)

func newInitCmd(g *globalOptions) *cobra.Command {
	format := repo.DefaultFormat()

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty strata repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.dir
			if path == "" {
				path = "."
			}
			if len(args) > 0 {
				path = args[0]
				if g.dir != "" && !filepath.IsAbs(path) {
					path = filepath.Join(g.dir, path)
				}
			}
			if err := os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			opts := g.repoOptions(cmd)
			opts.Format = &format
			r, err := repo.Init(path, opts)
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty strata repository in %s%c\n", r.Dir, filepath.Separator)
			return nil
		},
	}

	cmd.Flags().StringVar(&format.Storage.Backend, "backend", format.Storage.Backend, "object storage backend: file, bolt or badger")
	cmd.Flags().StringVar(&format.Storage.Compression, "compression", format.Storage.Compression, "object compression: none, zstd or lz4")
	cmd.Flags().IntVar(&format.Tree.NormalizedSizeLimit, "leaf-size", format.Tree.NormalizedSizeLimit, "largest tree node kept as a leaf")
	cmd.Flags().IntVar(&format.Tree.SplitFactor, "split-factor", format.Tree.SplitFactor, "pending entries held before a tree normalizes")
	cmd.Flags().IntVar(&format.Tree.Buckets, "buckets", format.Tree.Buckets, "fan-out of bucketed tree nodes")
	cmd.Flags().IntVar(&format.Tree.MaxDepth, "max-depth", format.Tree.MaxDepth, "deepest level a tree splits to")

	return cmd
}
