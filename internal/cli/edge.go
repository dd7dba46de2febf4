package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/model"
)

// EdgeOptions holds flags for the edge subcommands.
type EdgeOptions struct {
	*RootOptions
	SortKey int64
	Tags    []string
	Parents bool
}

// NewEdgeCommand creates the edge command and its subcommands.
func NewEdgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EdgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Link nodes into the taxonomy graph",
	}

	create := &cobra.Command{
		Use:   "create <parent> <child>",
		Short: "Link parent to child",
		Long: `Link parent to child. Linking an existing pair updates its tags and,
if --sort-key is given, its position.

The link is rejected with CYCLIC_GRAPH when child is already an ancestor
of parent.

Examples:
  taxon edge create shoes sneakers
  taxon edge create shoes boots --sort-key 10`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sortKey *int64
			if cmd.Flags().Changed("sort-key") {
				sortKey = &opts.SortKey
			}
			return runEdgeCreate(opts, args[0], args[1], sortKey, cmd)
		},
	}
	create.Flags().Int64Var(&opts.SortKey, "sort-key", 0, "position among the parent's children (default: last)")
	create.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tag (repeatable)")

	del := &cobra.Command{
		Use:           "delete <parent> <child>",
		Short:         "Remove the link between parent and child",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdgeDelete(opts, args[0], args[1], cmd)
		},
	}

	reorder := &cobra.Command{
		Use:   "reorder <parent> <child>...",
		Short: "Move the listed children first, in order",
		Long: `Move the listed children of parent to the front, in the given order.
Children not listed follow in their current order.

Example:
  taxon edge reorder shoes boots sneakers`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdgeReorder(opts, args[0], args[1:], cmd)
		},
	}

	list := &cobra.Command{
		Use:           "list <node>",
		Short:         "List the child edges of a node",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdgeList(opts, args[0], cmd)
		},
	}
	list.Flags().BoolVar(&opts.Parents, "parents", false, "list parent edges instead")

	cmd.AddCommand(create, del, reorder, list)
	return cmd
}

func runEdgeCreate(opts *EdgeOptions, parentID, childID string, sortKey *int64, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	edge, err := s.catalog.CreateEdge(cmd.Context(), graph.EdgeInput{
		ParentID: parentID,
		ChildID:  childID,
		SortKey:  sortKey,
		Tags:     opts.Tags,
	})
	if err != nil {
		return s.out.Fail("failed to create edge", err)
	}
	return s.out.Print(edge, func(w io.Writer) {
		fmt.Fprintf(w, "Linked %s -> %s (sort key %d)\n", edge.ParentID, edge.ChildID, edge.SortKey)
	})
}

func runEdgeDelete(opts *EdgeOptions, parentID, childID string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	edge, err := s.catalog.EdgeBetween(ctx, parentID, childID)
	if err != nil {
		return s.out.Fail("failed to delete edge", err)
	}
	if err := s.catalog.DeleteEdge(ctx, edge.ID); err != nil {
		return s.out.Fail("failed to delete edge", err)
	}
	return s.out.Print(edge, func(w io.Writer) {
		fmt.Fprintf(w, "Unlinked %s -> %s\n", parentID, childID)
	})
}

func runEdgeReorder(opts *EdgeOptions, parentID string, childIDs []string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	edges, err := s.catalog.ReorderChildren(cmd.Context(), parentID, childIDs)
	if err != nil {
		return s.out.Fail("failed to reorder edges", err)
	}
	return s.out.Print(edges, func(w io.Writer) {
		writeEdges(w, edges)
	})
}

func runEdgeList(opts *EdgeOptions, nodeID string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if _, err := s.catalog.Node(ctx, nodeID); err != nil {
		return s.out.Fail("failed to list edges", err)
	}

	var edges []model.Edge
	if opts.Parents {
		edges, err = s.catalog.ParentEdges(ctx, nodeID)
	} else {
		edges, err = s.catalog.ChildEdges(ctx, nodeID)
	}
	if err != nil {
		return s.out.Fail("failed to list edges", err)
	}
	return s.out.Print(edges, func(w io.Writer) {
		if len(edges) == 0 {
			fmt.Fprintln(w, "No edges.")
			return
		}
		writeEdges(w, edges)
	})
}

func writeEdges(w io.Writer, edges []model.Edge) {
	for _, e := range edges {
		fmt.Fprintf(w, "%4d  %s -> %s\n", e.SortKey, e.ParentID, e.ChildID)
	}
}
