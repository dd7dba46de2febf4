package graph

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/taxon/internal/model"
	"github.com/roach88/taxon/internal/store"
)

// PathResolver answers upward queries: ancestors and breadcrumbs.
//
// All methods only read the store and are safe for concurrent use.
type PathResolver struct {
	store Store
}

// NewPathResolver creates a resolver over the given store.
func NewPathResolver(st Store) *PathResolver {
	return &PathResolver{store: st}
}

// Ancestors returns every node reachable from nodeID by following edges
// towards parents. nodeID itself is not included.
func (p *PathResolver) Ancestors(ctx context.Context, nodeID string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	queue := []string{nodeID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges, err := p.store.FindEdgesByChild(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("ancestors of %s: %w", nodeID, err)
		}
		for _, e := range edges {
			if _, ok := seen[e.ParentID]; ok {
				continue
			}
			seen[e.ParentID] = struct{}{}
			queue = append(queue, e.ParentID)
		}
	}
	return seen, nil
}

// NodeBreadcrumbs returns one breadcrumb per distinct route from a node
// without parents down to nodeID. Edges in each breadcrumb are root first.
// A node without parents yields a single empty breadcrumb.
func (p *PathResolver) NodeBreadcrumbs(ctx context.Context, nodeID string) ([]model.Breadcrumb, error) {
	node, err := p.store.FindNode(ctx, nodeID)
	if err != nil {
		return nil, translate(err, "node", nodeID, "find node")
	}
	if node.IsDeleted() {
		return nil, NewNotFoundError("node", nodeID)
	}

	routes, err := p.routes(ctx, nodeID, make(map[string][][]model.Edge), make(map[string]bool))
	if err != nil {
		return nil, err
	}

	crumbs := make([]model.Breadcrumb, 0, len(routes))
	for _, r := range routes {
		crumbs = append(crumbs, model.Breadcrumb{Edges: r})
	}
	return crumbs, nil
}

// ItemBreadcrumbs returns the breadcrumbs of every node the item is
// assigned to, each carrying the assignment that ends it. Nodes are
// resolved concurrently; results keep assignment order.
// An item without assignments has no breadcrumbs.
func (p *PathResolver) ItemBreadcrumbs(ctx context.Context, itemID string) ([]model.Breadcrumb, error) {
	assignments, err := p.store.FindAssignmentsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("item breadcrumbs of %s: %w", itemID, err)
	}

	results := make([][]model.Breadcrumb, len(assignments))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range assignments {
		i, a := i, a
		g.Go(func() error {
			crumbs, err := p.NodeBreadcrumbs(gctx, a.NodeID)
			if IsNotFoundError(err) {
				return nil
			}
			if err != nil {
				return err
			}
			for j := range crumbs {
				crumbs[j].Assignment = &a
			}
			results[i] = crumbs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.Breadcrumb, 0, len(assignments))
	for _, crumbs := range results {
		out = append(out, crumbs...)
	}
	return out, nil
}

// routes returns the edge chains from every parentless ancestor down to
// nodeID. memo holds chains already resolved in this call; visiting guards
// against corrupt cyclic data.
func (p *PathResolver) routes(ctx context.Context, nodeID string, memo map[string][][]model.Edge, visiting map[string]bool) ([][]model.Edge, error) {
	if r, ok := memo[nodeID]; ok {
		return r, nil
	}
	if visiting[nodeID] {
		return nil, fmt.Errorf("breadcrumbs of %s: %w", nodeID, ErrCyclicGraph)
	}
	visiting[nodeID] = true
	defer delete(visiting, nodeID)

	edges, err := p.store.FindEdgesByChild(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list parents of %s: %w", nodeID, err)
	}

	var out [][]model.Edge
	for _, e := range edges {
		parent, err := p.store.FindNode(ctx, e.ParentID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load parent %s: %w", e.ParentID, err)
		}
		if parent.IsDeleted() {
			continue
		}

		upper, err := p.routes(ctx, e.ParentID, memo, visiting)
		if err != nil {
			return nil, err
		}
		for _, u := range upper {
			route := make([]model.Edge, 0, len(u)+1)
			route = append(route, u...)
			route = append(route, e)
			out = append(out, route)
		}
	}

	if len(out) == 0 {
		out = [][]model.Edge{{}}
	}
	memo[nodeID] = out
	return out, nil
}
