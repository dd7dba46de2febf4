package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/taxon/internal/model"
	"github.com/roach88/taxon/internal/store"
	"github.com/roach88/taxon/internal/zipper"
)

// ItemQuery selects how ItemIDs answers.
type ItemQuery struct {
	// ForceLive recomputes the full list from assignments and edges
	// instead of reading cache records. Nothing is persisted.
	ForceLive bool

	// IgnoreChildren returns only the node's own assignments.
	IgnoreChildren bool
}

// InvalidateOptions controls a single invalidation pass.
type InvalidateOptions struct {
	// SkipUpstreamTraversal recomputes the starting node only and does
	// not enqueue its parents.
	SkipUpstreamTraversal bool
}

// Invalidation summarizes one invalidation pass.
type Invalidation struct {
	// Recomputed counts nodes whose item list was recomputed.
	Recomputed int `json:"recomputed"`

	// Written lists nodes whose cache record was persisted, in write order.
	Written []string `json:"written"`
}

// CacheCoordinator computes, persists and propagates materialized item
// lists.
//
// Invalidate and Rebuild write cache records and must be serialized by the
// caller; Catalog does this with its graph-wide lock. ItemIDs is safe for
// concurrent use.
type CacheCoordinator struct {
	store   Store
	clock   model.Clock
	logger  *slog.Logger
	metrics *Metrics

	// live deduplicates concurrent fallback computations for the same node.
	live singleflight.Group
}

// NewCacheCoordinator creates a coordinator over the given store.
func NewCacheCoordinator(st Store, clock model.Clock, logger *slog.Logger, metrics *Metrics) *CacheCoordinator {
	return &CacheCoordinator{
		store:   st,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// ItemIDs returns the item list of a live node.
//
// Without flags the stored cache record is returned. A node that has never
// been materialized is computed live as a fallback and the result is not
// persisted.
func (c *CacheCoordinator) ItemIDs(ctx context.Context, nodeID string, q ItemQuery) ([]string, error) {
	if _, err := findLiveNode(ctx, c.store, nodeID); err != nil {
		return nil, err
	}

	if q.IgnoreChildren {
		return c.ownItemIDs(ctx, nodeID)
	}

	if q.ForceLive {
		c.metrics.LiveComputes.Inc()
		return c.computeLive(ctx, nodeID, make(map[string][]string), make(map[string]bool))
	}

	rec, err := c.store.GetCacheRecord(ctx, nodeID)
	if err == nil {
		return rec.ItemIDs, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get item ids: %w", err)
	}

	// The flight is shared; one caller cancelling must not fail the others.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := c.live.Do(nodeID, func() (any, error) {
		c.metrics.LiveComputes.Inc()
		return c.computeLive(flightCtx, nodeID, make(map[string][]string), make(map[string]bool))
	})
	if err != nil {
		return nil, err
	}
	items, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("get item ids: unexpected type from singleflight: %T", v)
	}
	// Callers sharing a flight must not alias each other's slice.
	return append(make([]string, 0, len(items)), items...), nil
}

// Invalidate recomputes nodeID and propagates changes to its ancestors.
//
// When a recomputed list has the same set of ids as the stored one the
// node is left untouched: no write and no propagation, even if the order
// differs. Otherwise the record is written and the live ancestors are
// revisited children first, each at most once per pass, recomputing only
// those with a child whose set changed.
func (c *CacheCoordinator) Invalidate(ctx context.Context, nodeID string, opts InvalidateOptions) (Invalidation, error) {
	if _, err := findLiveNode(ctx, c.store, nodeID); err != nil {
		return Invalidation{}, err
	}

	var result Invalidation
	changed, written, err := c.refresh(ctx, nodeID, false)
	if err != nil {
		return result, err
	}
	result.Recomputed++
	if written {
		result.Written = append(result.Written, nodeID)
	}

	if changed && !opts.SkipUpstreamTraversal {
		if err := c.propagate(ctx, nodeID, &result); err != nil {
			return result, err
		}
	}

	c.logger.Debug("cache invalidated",
		"node", nodeID,
		"recomputed", result.Recomputed,
		"written", len(result.Written),
	)
	return result, nil
}

// propagate recomputes the ancestors of a node whose set just changed.
func (c *CacheCoordinator) propagate(ctx context.Context, nodeID string, result *Invalidation) error {
	nodes, edges, err := c.upstream(ctx, nodeID)
	if err != nil {
		return err
	}
	order, err := childrenFirst(nodes, edges)
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", nodeID, err)
	}

	children := make(map[string][]string, len(nodes))
	for _, e := range edges {
		children[e.ParentID] = append(children[e.ParentID], e.ChildID)
	}

	dirty := map[string]bool{nodeID: true}
	for _, id := range order {
		if id == nodeID || !slices.ContainsFunc(children[id], func(child string) bool { return dirty[child] }) {
			continue
		}
		changed, written, err := c.refresh(ctx, id, false)
		if err != nil {
			return err
		}
		result.Recomputed++
		if written {
			result.Written = append(result.Written, id)
		}
		if changed {
			dirty[id] = true
		}
	}
	return nil
}

// upstream collects nodeID and all its live ancestors, in breadth-first
// order, together with the edges between them.
func (c *CacheCoordinator) upstream(ctx context.Context, nodeID string) ([]model.Node, []model.Edge, error) {
	nodes := []model.Node{{ID: nodeID}}
	var edges []model.Edge
	seen := map[string]bool{nodeID: true}

	for i := 0; i < len(nodes); i++ {
		incoming, err := c.store.FindEdgesByChild(ctx, nodes[i].ID)
		if err != nil {
			return nil, nil, fmt.Errorf("list parents of %s: %w", nodes[i].ID, err)
		}
		for _, e := range incoming {
			parent, err := c.store.FindNode(ctx, e.ParentID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, nil, fmt.Errorf("load parent %s: %w", e.ParentID, err)
			}
			if parent.IsDeleted() {
				continue
			}
			edges = append(edges, e)
			if !seen[parent.ID] {
				seen[parent.ID] = true
				nodes = append(nodes, parent)
			}
		}
	}
	return nodes, edges, nil
}

// Rebuild recomputes every live node, children before parents, and
// persists each list whose membership or order differs from its record.
// Unlike Invalidate it also writes records whose order alone went stale.
func (c *CacheCoordinator) Rebuild(ctx context.Context) (Invalidation, error) {
	nodes, err := c.store.ListNodes(ctx, model.NodeFilter{})
	if err != nil {
		return Invalidation{}, fmt.Errorf("rebuild: %w", err)
	}
	edges, err := c.store.AllEdges(ctx)
	if err != nil {
		return Invalidation{}, fmt.Errorf("rebuild: %w", err)
	}
	order, err := childrenFirst(nodes, edges)
	if err != nil {
		return Invalidation{}, fmt.Errorf("rebuild: %w", err)
	}

	var result Invalidation
	for _, id := range order {
		_, written, err := c.refresh(ctx, id, true)
		if err != nil {
			return result, err
		}
		result.Recomputed++
		if written {
			result.Written = append(result.Written, id)
		}
	}

	c.logger.Info("cache rebuilt",
		"nodes", result.Recomputed,
		"written", len(result.Written),
	)
	return result, nil
}

// refresh recomputes one node and persists the result when it differs from
// the stored record. changed reports a difference in the set of ids, which
// is what drives upstream propagation. A list that differs only in order
// is written when orderSensitive is set and left alone otherwise.
func (c *CacheCoordinator) refresh(ctx context.Context, nodeID string, orderSensitive bool) (changed, written bool, err error) {
	c.metrics.Recomputes.Inc()
	items, err := c.assemble(ctx, nodeID, func(childID string) ([]string, error) {
		return c.materialized(ctx, childID)
	})
	if err != nil {
		return false, false, err
	}

	rec, err := c.store.GetCacheRecord(ctx, nodeID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		changed = true
	case err != nil:
		return false, false, fmt.Errorf("invalidate %s: %w", nodeID, err)
	case zipper.SameOrder(rec.ItemIDs, items):
		c.metrics.ShortCircuits.Inc()
		return false, false, nil
	case zipper.SameSet(rec.ItemIDs, items):
		c.metrics.ShortCircuits.Inc()
		if !orderSensitive {
			return false, false, nil
		}
	default:
		changed = true
	}

	now := c.clock.Now()
	if err := c.store.SetCacheRecord(ctx, model.CacheRecord{
		NodeID:  nodeID,
		ItemIDs: items,
		Created: now,
		Updated: now,
	}); err != nil {
		return false, false, fmt.Errorf("invalidate %s: %w", nodeID, err)
	}
	c.metrics.Writes.Inc()
	return changed, true, nil
}

// materialized returns the stored list of a child, computing it live if the
// child has never been materialized.
func (c *CacheCoordinator) materialized(ctx context.Context, nodeID string) ([]string, error) {
	rec, err := c.store.GetCacheRecord(ctx, nodeID)
	if err == nil {
		return rec.ItemIDs, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("read cache of %s: %w", nodeID, err)
	}
	c.metrics.LiveComputes.Inc()
	return c.computeLive(ctx, nodeID, make(map[string][]string), make(map[string]bool))
}

// computeLive recomputes a node and all its descendants without reading or
// writing cache records. memo holds lists already computed in this call.
func (c *CacheCoordinator) computeLive(ctx context.Context, nodeID string, memo map[string][]string, visiting map[string]bool) ([]string, error) {
	if items, ok := memo[nodeID]; ok {
		return items, nil
	}
	if visiting[nodeID] {
		return nil, fmt.Errorf("compute items of %s: %w", nodeID, ErrCyclicGraph)
	}
	visiting[nodeID] = true
	defer delete(visiting, nodeID)

	items, err := c.assemble(ctx, nodeID, func(childID string) ([]string, error) {
		return c.computeLive(ctx, childID, memo, visiting)
	})
	if err != nil {
		return nil, err
	}
	memo[nodeID] = items
	return items, nil
}

// assemble zips a node's own items with the lists of its traversable
// children, obtained from childItems.
func (c *CacheCoordinator) assemble(ctx context.Context, nodeID string, childItems func(string) ([]string, error)) ([]string, error) {
	own, err := c.ownItemIDs(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	children, err := c.traversableChildren(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	tree := zipper.Tree{Items: own}
	for _, childID := range children {
		items, err := childItems(childID)
		if err != nil {
			return nil, err
		}
		tree.Children = append(tree.Children, zipper.Leaf(items...))
	}
	return zipper.Flatten(tree), nil
}

func (c *CacheCoordinator) ownItemIDs(ctx context.Context, nodeID string) ([]string, error) {
	assignments, err := c.store.FindAssignmentsByNode(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list assignments of %s: %w", nodeID, err)
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ItemID)
	}
	return ids, nil
}

// traversableChildren returns the active, non-deleted children of a node in
// edge order.
func (c *CacheCoordinator) traversableChildren(ctx context.Context, nodeID string) ([]string, error) {
	edges, err := c.store.FindEdgesByParent(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", nodeID, err)
	}
	var ids []string
	for _, e := range edges {
		child, err := c.store.FindNode(ctx, e.ChildID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load child %s: %w", e.ChildID, err)
		}
		if child.Traversable() {
			ids = append(ids, e.ChildID)
		}
	}
	return ids, nil
}

// parentIDs returns the distinct parents of a node in edge order.
func (c *CacheCoordinator) parentIDs(ctx context.Context, nodeID string) ([]string, error) {
	edges, err := c.store.FindEdgesByChild(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list parents of %s: %w", nodeID, err)
	}
	seen := make(map[string]bool, len(edges))
	var ids []string
	for _, e := range edges {
		if seen[e.ParentID] {
			continue
		}
		seen[e.ParentID] = true
		ids = append(ids, e.ParentID)
	}
	return ids, nil
}
