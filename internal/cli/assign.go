package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/model"
)

// AssignOptions holds flags for the assign subcommands.
type AssignOptions struct {
	*RootOptions
	SortKey int64
	Tags    []string
}

// NewAssignCommand creates the assign command and its subcommands.
func NewAssignCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AssignOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Place items in nodes",
	}

	create := &cobra.Command{
		Use:   "create <node> <item>",
		Short: "Place an item in a node",
		Long: `Place an item in a node. The item joins the item list of the node and
of every ancestor. Assigning an existing pair updates its tags and, if
--sort-key is given, its position.

Example:
  taxon assign create sneakers sku-1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sortKey *int64
			if cmd.Flags().Changed("sort-key") {
				sortKey = &opts.SortKey
			}
			return runAssignCreate(opts, args[0], args[1], sortKey, cmd)
		},
	}
	create.Flags().Int64Var(&opts.SortKey, "sort-key", 0, "position among the node's items (default: last)")
	create.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tag (repeatable)")

	del := &cobra.Command{
		Use:           "delete <node> <item>",
		Short:         "Remove an item from a node",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssignDelete(opts, args[0], args[1], cmd)
		},
	}

	reorder := &cobra.Command{
		Use:           "reorder <node> <item>...",
		Short:         "Move the listed items first, in order",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssignReorder(opts, args[0], args[1:], cmd)
		},
	}

	list := &cobra.Command{
		Use:           "list <node>",
		Short:         "List the items assigned directly to a node",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssignList(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(create, del, reorder, list)
	return cmd
}

func runAssignCreate(opts *AssignOptions, nodeID, itemID string, sortKey *int64, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := s.catalog.CreateAssignment(cmd.Context(), graph.AssignmentInput{
		NodeID:  nodeID,
		ItemID:  itemID,
		SortKey: sortKey,
		Tags:    opts.Tags,
	})
	if err != nil {
		return s.out.Fail("failed to assign item", err)
	}
	return s.out.Print(a, func(w io.Writer) {
		fmt.Fprintf(w, "Assigned %s to %s (sort key %d)\n", a.ItemID, a.NodeID, a.SortKey)
	})
}

func runAssignDelete(opts *AssignOptions, nodeID, itemID string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	a, err := s.catalog.AssignmentOf(ctx, nodeID, itemID)
	if err != nil {
		return s.out.Fail("failed to unassign item", err)
	}
	if err := s.catalog.DeleteAssignment(ctx, a.ID); err != nil {
		return s.out.Fail("failed to unassign item", err)
	}
	return s.out.Print(a, func(w io.Writer) {
		fmt.Fprintf(w, "Removed %s from %s\n", itemID, nodeID)
	})
}

func runAssignReorder(opts *AssignOptions, nodeID string, itemIDs []string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.catalog.ReorderItems(cmd.Context(), nodeID, itemIDs)
	if err != nil {
		return s.out.Fail("failed to reorder items", err)
	}
	return s.out.Print(list, func(w io.Writer) {
		writeAssignments(w, list)
	})
}

func runAssignList(opts *AssignOptions, nodeID string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if _, err := s.catalog.Node(ctx, nodeID); err != nil {
		return s.out.Fail("failed to list assignments", err)
	}
	list, err := s.catalog.Assignments(ctx, nodeID)
	if err != nil {
		return s.out.Fail("failed to list assignments", err)
	}
	return s.out.Print(list, func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "No items.")
			return
		}
		writeAssignments(w, list)
	})
}

func writeAssignments(w io.Writer, list []model.Assignment) {
	for _, a := range list {
		fmt.Fprintf(w, "%4d  %s\n", a.SortKey, a.ItemID)
	}
}
