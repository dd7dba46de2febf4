package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/model"
)

// NodeOptions holds flags for the node subcommands.
type NodeOptions struct {
	*RootOptions

	// create
	Root     bool
	Inactive bool
	Sequence int64
	Tags     []string
	Slugs    []string

	// list
	OnlyRoots      bool
	OnlyActive     bool
	IncludeDeleted bool
}

// NodeDetail is the output of node show.
type NodeDetail struct {
	Node     model.Node `json:"node"`
	Parents  []string   `json:"parents"`
	Children []string   `json:"children"`
	Items    int        `json:"items"`
}

// NewNodeCommand creates the node command and its subcommands.
func NewNodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage taxonomy nodes",
	}

	create := &cobra.Command{
		Use:   "create [id]",
		Short: "Create a node",
		Long: `Create a node. Without an id one is generated.

Examples:
  taxon node create shoes --root
  taxon node create sneakers --sequence 2 --tag footwear --slug sneakers`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runNodeCreate(opts, id, cmd)
		},
	}
	create.Flags().BoolVar(&opts.Root, "root", false, "mark the node as a catalog root")
	create.Flags().BoolVar(&opts.Inactive, "inactive", false, "create the node inactive")
	create.Flags().Int64Var(&opts.Sequence, "sequence", 0, "listing position among nodes")
	create.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tag (repeatable)")
	create.Flags().StringSliceVar(&opts.Slugs, "slug", nil, "slug (repeatable)")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List nodes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeList(opts, cmd)
		},
	}
	list.Flags().BoolVar(&opts.OnlyRoots, "roots", false, "only root nodes")
	list.Flags().BoolVar(&opts.OnlyActive, "active", false, "only active nodes")
	list.Flags().BoolVar(&opts.IncludeDeleted, "deleted", false, "include deleted nodes")
	list.Flags().StringSliceVar(&opts.Tags, "tag", nil, "only nodes carrying every tag")

	show := &cobra.Command{
		Use:           "show <id>",
		Short:         "Show a node with its parents and children",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeShow(opts, args[0], cmd)
		},
	}

	activate := &cobra.Command{
		Use:           "activate <id>",
		Short:         "Activate a node",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeSetActive(opts, args[0], true, cmd)
		},
	}

	deactivate := &cobra.Command{
		Use:           "deactivate <id>",
		Short:         "Deactivate a node; its items leave every ancestor",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeSetActive(opts, args[0], false, cmd)
		},
	}

	del := &cobra.Command{
		Use:           "delete <id>",
		Short:         "Soft-delete a node and remove its edges and assignments",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeDelete(opts, args[0], cmd)
		},
	}

	base := &cobra.Command{
		Use:   "base [id]",
		Short: "Show the base node, or make id the base node",
		Long: `Show the base node, or make id the base node.

At most one node is the base node; setting a new one clears the old one.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runNodeBase(opts, id, cmd)
		},
	}

	cmd.AddCommand(create, list, show, activate, deactivate, del, base)
	return cmd
}

func runNodeCreate(opts *NodeOptions, id string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	node, err := s.catalog.CreateNode(cmd.Context(), graph.NodeInput{
		ID:       id,
		IsActive: !opts.Inactive,
		IsRoot:   opts.Root,
		Sequence: opts.Sequence,
		Tags:     opts.Tags,
		Slugs:    opts.Slugs,
	})
	if err != nil {
		return s.out.Fail("failed to create node", err)
	}
	return s.out.Print(node, func(w io.Writer) {
		fmt.Fprintf(w, "Created node %s\n", node.ID)
	})
}

func runNodeList(opts *NodeOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	nodes, err := s.catalog.Nodes(cmd.Context(), model.NodeFilter{
		OnlyRoots:      opts.OnlyRoots,
		OnlyActive:     opts.OnlyActive,
		IncludeDeleted: opts.IncludeDeleted,
		Tags:           opts.Tags,
	})
	if err != nil {
		return s.out.Fail("failed to list nodes", err)
	}
	return s.out.Print(nodes, func(w io.Writer) {
		if len(nodes) == 0 {
			fmt.Fprintln(w, "No nodes found.")
			return
		}
		for _, n := range nodes {
			writeNodeLine(w, n)
		}
	})
}

func runNodeShow(opts *NodeOptions, id string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	node, err := s.catalog.Node(ctx, id)
	if err != nil {
		return s.out.Fail("failed to show node", err)
	}
	detail := NodeDetail{Node: node, Parents: []string{}, Children: []string{}}

	parents, err := s.catalog.ParentEdges(ctx, id)
	if err != nil {
		return s.out.Fail("failed to show node", err)
	}
	for _, e := range parents {
		detail.Parents = append(detail.Parents, e.ParentID)
	}
	children, err := s.catalog.ChildEdges(ctx, id)
	if err != nil {
		return s.out.Fail("failed to show node", err)
	}
	for _, e := range children {
		detail.Children = append(detail.Children, e.ChildID)
	}
	items, err := s.catalog.ItemIDs(ctx, id, graph.ItemQuery{})
	if err != nil {
		return s.out.Fail("failed to show node", err)
	}
	detail.Items = len(items)

	return s.out.Print(detail, func(w io.Writer) {
		writeNodeLine(w, node)
		fmt.Fprintf(w, "  parents:  %s\n", joinOrDash(detail.Parents))
		fmt.Fprintf(w, "  children: %s\n", joinOrDash(detail.Children))
		fmt.Fprintf(w, "  items:    %d\n", detail.Items)
		if len(node.Slugs) > 0 {
			fmt.Fprintf(w, "  slugs:    %s\n", strings.Join(node.Slugs, ", "))
		}
	})
}

func runNodeSetActive(opts *NodeOptions, id string, active bool, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	node, err := s.catalog.SetActive(cmd.Context(), id, active)
	if err != nil {
		return s.out.Fail("failed to update node", err)
	}
	return s.out.Print(node, func(w io.Writer) {
		state := "inactive"
		if node.IsActive {
			state = "active"
		}
		fmt.Fprintf(w, "Node %s is %s\n", node.ID, state)
	})
}

func runNodeDelete(opts *NodeOptions, id string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.catalog.DeleteNode(cmd.Context(), id); err != nil {
		return s.out.Fail("failed to delete node", err)
	}
	return s.out.Print(map[string]string{"deleted": id}, func(w io.Writer) {
		fmt.Fprintf(w, "Deleted node %s\n", id)
	})
}

func runNodeBase(opts *NodeOptions, id string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if id != "" {
		if err := s.catalog.SetBase(ctx, id); err != nil {
			return s.out.Fail("failed to set base node", err)
		}
	}

	node, err := s.catalog.BaseNode(ctx)
	if errors.Is(err, graph.ErrNotFound) {
		return s.out.Print(map[string]any{"base": nil}, func(w io.Writer) {
			fmt.Fprintln(w, "No base node.")
		})
	}
	if err != nil {
		return s.out.Fail("failed to read base node", err)
	}
	return s.out.Print(node, func(w io.Writer) {
		fmt.Fprintf(w, "Base node: %s\n", node.ID)
	})
}

// writeNodeLine renders a node as "id [flags] #tags".
func writeNodeLine(w io.Writer, n model.Node) {
	var flags []string
	if n.IsRoot {
		flags = append(flags, "root")
	}
	if n.IsBase {
		flags = append(flags, "base")
	}
	if !n.IsActive {
		flags = append(flags, "inactive")
	}
	if n.IsDeleted() {
		flags = append(flags, "deleted")
	}

	line := n.ID
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, ",") + "]"
	}
	for _, tag := range n.Tags {
		line += " #" + tag
	}
	fmt.Fprintln(w, line)
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
