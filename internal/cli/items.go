package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/model"
)

// ItemsOptions holds flags for the items command.
type ItemsOptions struct {
	*RootOptions
	Live bool
	Own  bool
}

// ItemsOutput is the JSON payload of the items command.
type ItemsOutput struct {
	Node  string   `json:"node"`
	Items []string `json:"items"`
}

// NewItemsCommand creates the items command.
func NewItemsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "items <node>",
		Short: "Print the item list of a node",
		Long: `Print the materialized item list of a node: its own items followed by
the items of its active descendants, interleaved by depth, without
duplicates.

Examples:
  taxon items shoes
  taxon items shoes --live
  taxon items shoes --own --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItems(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Live, "live", false, "compute from assignments and edges instead of the cache")
	cmd.Flags().BoolVar(&opts.Own, "own", false, "only items assigned directly to the node")

	return cmd
}

func runItems(opts *ItemsOptions, nodeID string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := s.catalog.ItemIDs(cmd.Context(), nodeID, graph.ItemQuery{
		ForceLive:      opts.Live,
		IgnoreChildren: opts.Own,
	})
	if err != nil {
		return s.out.Fail("failed to list items", err)
	}
	if items == nil {
		items = []string{}
	}
	return s.out.Print(ItemsOutput{Node: nodeID, Items: items}, func(w io.Writer) {
		for _, id := range items {
			fmt.Fprintln(w, id)
		}
	})
}

// BreadcrumbsOptions holds flags for the breadcrumbs command.
type BreadcrumbsOptions struct {
	*RootOptions
	Node string
	Item string
}

// NewBreadcrumbsCommand creates the breadcrumbs command.
func NewBreadcrumbsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BreadcrumbsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "breadcrumbs",
		Short: "Print every route to a node or an item",
		Long: `Print every route from a parentless node down to a node, or to every
node an item is assigned to. Routes are listed root first.

Examples:
  taxon breadcrumbs --node boots
  taxon breadcrumbs --item sku-3`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.Node == "") == (opts.Item == "") {
				return newFormatter(opts.RootOptions, cmd).Fail("invalid flags",
					NewExitError(ExitCommandError, "exactly one of --node or --item is required"))
			}
			return runBreadcrumbs(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Node, "node", "", "node to resolve")
	cmd.Flags().StringVar(&opts.Item, "item", "", "item to resolve")

	return cmd
}

func runBreadcrumbs(opts *BreadcrumbsOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var crumbs []model.Breadcrumb
	if opts.Item != "" {
		crumbs, err = s.catalog.ItemBreadcrumbs(cmd.Context(), opts.Item)
	} else {
		crumbs, err = s.catalog.NodeBreadcrumbs(cmd.Context(), opts.Node)
	}
	if err != nil {
		return s.out.Fail("failed to resolve breadcrumbs", err)
	}

	return s.out.Print(crumbs, func(w io.Writer) {
		if len(crumbs) == 0 {
			fmt.Fprintln(w, "No breadcrumbs.")
			return
		}
		for _, b := range crumbs {
			fmt.Fprintln(w, formatBreadcrumb(b, opts.Node))
		}
	})
}

// formatBreadcrumb renders a route as "a > b > c". A parentless node has
// no edges and renders as nodeID.
func formatBreadcrumb(b model.Breadcrumb, nodeID string) string {
	ids := b.NodeIDs()
	if len(ids) == 0 {
		ids = []string{nodeID}
	}
	line := strings.Join(ids, " > ")
	if b.Assignment != nil {
		line += "  (" + b.Assignment.ItemID + ")"
	}
	return line
}
