package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/model"
	"github.com/roach88/taxon/internal/zipper"
)

// Stats summarizes the catalog and the health of its cache.
type Stats struct {
	Nodes       int                `json:"nodes"`
	Roots       int                `json:"roots"`
	Inactive    int                `json:"inactive"`
	Edges       int                `json:"edges"`
	Assignments int                `json:"assignments"`
	Stale       []string           `json:"stale"`
	Metrics     map[string]float64 `json:"metrics"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count records and check every cache record",
		Long: `Count nodes, edges and assignments, then compare every node's cache
record with a live computation. Nodes whose cached set of items differs
are reported as stale; run "taxon rebuild" to repair them.

The cache counters gathered during the check are printed as well.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := collectStats(cmd, s)
	if err != nil {
		return s.out.Fail("failed to collect stats", err)
	}

	return s.out.Print(stats, func(w io.Writer) {
		fmt.Fprintf(w, "Nodes:       %d (%d roots, %d inactive)\n", stats.Nodes, stats.Roots, stats.Inactive)
		fmt.Fprintf(w, "Edges:       %d\n", stats.Edges)
		fmt.Fprintf(w, "Assignments: %d\n", stats.Assignments)
		if len(stats.Stale) == 0 {
			fmt.Fprintln(w, "Cache:       consistent")
		} else {
			fmt.Fprintf(w, "Cache:       %d stale %v\n", len(stats.Stale), stats.Stale)
		}

		names := make([]string, 0, len(stats.Metrics))
		for name := range stats.Metrics {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s %g\n", name, stats.Metrics[name])
		}
	})
}

func collectStats(cmd *cobra.Command, s *session) (Stats, error) {
	ctx := cmd.Context()
	stats := Stats{Stale: []string{}, Metrics: map[string]float64{}}

	nodes, err := s.catalog.Nodes(ctx, model.NodeFilter{})
	if err != nil {
		return stats, err
	}
	edges, err := s.store.AllEdges(ctx)
	if err != nil {
		return stats, err
	}
	stats.Nodes = len(nodes)
	stats.Edges = len(edges)

	for _, n := range nodes {
		if n.IsRoot {
			stats.Roots++
		}
		if !n.IsActive {
			stats.Inactive++
		}

		own, err := s.catalog.ItemIDs(ctx, n.ID, graph.ItemQuery{IgnoreChildren: true})
		if err != nil {
			return stats, err
		}
		stats.Assignments += len(own)

		cached, err := s.catalog.ItemIDs(ctx, n.ID, graph.ItemQuery{})
		if err != nil {
			return stats, err
		}
		live, err := s.catalog.ItemIDs(ctx, n.ID, graph.ItemQuery{ForceLive: true})
		if err != nil {
			return stats, err
		}
		if len(cached) != len(live) || !zipper.SameSet(cached, live) {
			stats.Stale = append(stats.Stale, n.ID)
		}
	}

	families, err := s.registry.Gather()
	if err != nil {
		return stats, fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			stats.Metrics[mf.GetName()] += m.GetCounter().GetValue()
		}
	}
	return stats, nil
}
