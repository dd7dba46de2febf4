package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/seed"
)

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <seed-file>",
		Short: "Load nodes, edges and assignments from a seed file",
		Long: `Load a catalog from a YAML, JSON or CUE seed file.

Loading is idempotent: existing nodes are updated, existing edges and
assignments keep their ids. CUE files are checked against the seed schema
before anything is written.

Examples:
  taxon load catalog.yaml
  taxon load catalog.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runLoad(opts *RootOptions, path string, cmd *cobra.Command) error {
	f, err := seed.LoadFile(path)
	if err != nil {
		out := newFormatter(opts, cmd)
		_ = out.Error(ErrCodeSeed, err.Error(), map[string]string{"file": path})
		return WrapExitError(ExitCommandError, "failed to load seed file", err)
	}

	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	s.logger.Info("loading seed", "file", path,
		"nodes", len(f.Nodes),
		"edges", len(f.Edges),
		"assignments", len(f.Assignments),
	)
	summary, err := seed.Apply(cmd.Context(), s.catalog, f)
	if err != nil {
		return s.out.Fail("failed to apply seed file", err)
	}
	return s.out.Print(summary, func(w io.Writer) {
		fmt.Fprintf(w, "Loaded %s: %d nodes created, %d updated, %d edges, %d assignments\n",
			path, summary.NodesCreated, summary.NodesUpdated, summary.Edges, summary.Assignments)
	})
}

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute every cached item list",
		Long: `Recompute the item list of every node, children before parents, and
write each one that differs from its cache record. This also repairs
ancestors whose order went stale after a reorder.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			inv, err := s.catalog.Rebuild(cmd.Context())
			if err != nil {
				return s.out.Fail("failed to rebuild cache", err)
			}
			return s.out.Print(inv, func(w io.Writer) {
				writeInvalidation(w, inv)
			})
		},
	}
}

// NewInvalidateCommand creates the invalidate command.
func NewInvalidateCommand(rootOpts *RootOptions) *cobra.Command {
	var skipUpstream bool

	cmd := &cobra.Command{
		Use:           "invalidate <node>",
		Short:         "Recompute a node's item list and propagate changes upward",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			inv, err := s.catalog.Invalidate(cmd.Context(), args[0], graph.InvalidateOptions{
				SkipUpstreamTraversal: skipUpstream,
			})
			if err != nil {
				return s.out.Fail("failed to invalidate node", err)
			}
			return s.out.Print(inv, func(w io.Writer) {
				writeInvalidation(w, inv)
			})
		},
	}
	cmd.Flags().BoolVar(&skipUpstream, "skip-upstream", false, "recompute only this node")
	return cmd
}

func writeInvalidation(w io.Writer, inv graph.Invalidation) {
	fmt.Fprintf(w, "Recomputed %d nodes, wrote %d\n", inv.Recomputed, len(inv.Written))
	if len(inv.Written) > 0 {
		fmt.Fprintf(w, "  written: %s\n", strings.Join(inv.Written, ", "))
	}
}
