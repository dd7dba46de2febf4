package graph

import (
	"context"
	"log/slog"

	"github.com/roach88/taxon/internal/model"
)

// EdgeInput describes an edge to create.
type EdgeInput struct {
	ParentID string         `json:"parent_id"`
	ChildID  string         `json:"child_id"`
	SortKey  *int64         `json:"sort_key,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// LinkManager maintains parent-child edges.
//
// Mutating methods must be serialized by the caller so that the ancestor
// check and the insert in Create observe the same graph.
type LinkManager struct {
	store   Store
	ids     model.IDGenerator
	clock   model.Clock
	paths   *PathResolver
	cache   *CacheCoordinator
	metrics *Metrics
	logger  *slog.Logger
}

// NewLinkManager creates a link manager.
func NewLinkManager(st Store, ids model.IDGenerator, clock model.Clock, paths *PathResolver, cache *CacheCoordinator, metrics *Metrics, logger *slog.Logger) *LinkManager {
	return &LinkManager{
		store:   st,
		ids:     ids,
		clock:   clock,
		paths:   paths,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Create links parent to child and invalidates the parent.
//
// Fails with a cyclic error, writing nothing, if the child is the parent
// or already one of its ancestors. Creating an existing pair is an upsert:
// the stored edge keeps its id, and its sort key changes only when one is
// given. Without a sort key a new edge is placed after its last sibling.
func (l *LinkManager) Create(ctx context.Context, in EdgeInput) (model.Edge, error) {
	if in.ParentID == "" || in.ChildID == "" {
		return model.Edge{}, newInvalidInputError("edge needs both parent and child")
	}
	if _, err := findLiveNode(ctx, l.store, in.ParentID); err != nil {
		return model.Edge{}, err
	}
	if _, err := findLiveNode(ctx, l.store, in.ChildID); err != nil {
		return model.Edge{}, err
	}

	if err := l.checkAcyclic(ctx, in.ParentID, in.ChildID); err != nil {
		l.metrics.CycleRejections.Inc()
		l.logger.Warn("edge rejected",
			"parent", in.ParentID,
			"child", in.ChildID,
			"error", err,
		)
		return model.Edge{}, err
	}

	sortKey, err := l.sortKey(ctx, in)
	if err != nil {
		return model.Edge{}, err
	}

	now := l.clock.Now()
	edge, err := l.store.UpsertEdge(ctx, model.Edge{
		ID:       l.ids.NewID(),
		ParentID: in.ParentID,
		ChildID:  in.ChildID,
		SortKey:  sortKey,
		Tags:     model.NormalizeTags(in.Tags),
		Meta:     in.Meta,
		Created:  now,
		Updated:  now,
	}, in.SortKey != nil)
	if err != nil {
		return model.Edge{}, translate(err, "edge", in.ParentID+"->"+in.ChildID, "create edge")
	}

	l.logger.Info("edge created",
		"edge", edge.ID,
		"parent", edge.ParentID,
		"child", edge.ChildID,
		"sort_key", edge.SortKey,
	)

	if _, err := l.cache.Invalidate(ctx, edge.ParentID, InvalidateOptions{}); err != nil {
		return edge, err
	}
	return edge, nil
}

// Delete removes an edge and invalidates both of its former endpoints.
func (l *LinkManager) Delete(ctx context.Context, edgeID string) (model.Edge, error) {
	edge, err := l.store.DeleteEdge(ctx, edgeID)
	if err != nil {
		return model.Edge{}, translate(err, "edge", edgeID, "delete edge")
	}

	l.logger.Info("edge deleted",
		"edge", edge.ID,
		"parent", edge.ParentID,
		"child", edge.ChildID,
	)

	if _, err := l.cache.Invalidate(ctx, edge.ParentID, InvalidateOptions{}); err != nil {
		return edge, err
	}
	if _, err := l.cache.Invalidate(ctx, edge.ChildID, InvalidateOptions{}); err != nil {
		return edge, err
	}
	return edge, nil
}

// Reorder applies new sort keys to a batch of edges atomically and runs
// one invalidation per distinct parent. Returns the updated edges in input
// order.
func (l *LinkManager) Reorder(ctx context.Context, updates []model.SortKeyUpdate) ([]model.Edge, error) {
	if len(updates) == 0 {
		return []model.Edge{}, nil
	}
	for _, u := range updates {
		if u.ID == "" {
			return nil, newInvalidInputError("sort key update without edge id")
		}
	}

	edges, err := l.store.UpdateEdgeSortKeys(ctx, updates, l.clock.Now())
	if err != nil {
		return nil, translate(err, "edge", "", "reorder edges")
	}

	parents := make([]string, 0, len(edges))
	seen := make(map[string]bool)
	for _, e := range edges {
		if seen[e.ParentID] {
			continue
		}
		seen[e.ParentID] = true
		parents = append(parents, e.ParentID)
	}

	l.logger.Info("edges reordered",
		"edges", len(edges),
		"parents", len(parents),
	)

	for _, parentID := range parents {
		if _, err := l.cache.Invalidate(ctx, parentID, InvalidateOptions{}); err != nil {
			return edges, err
		}
	}
	return edges, nil
}

// checkAcyclic fails if child is parent or one of parent's ancestors.
func (l *LinkManager) checkAcyclic(ctx context.Context, parentID, childID string) error {
	if parentID == childID {
		return NewCyclicError(parentID, childID)
	}
	ancestors, err := l.paths.Ancestors(ctx, parentID)
	if err != nil {
		return err
	}
	if _, ok := ancestors[childID]; ok {
		return NewCyclicError(parentID, childID)
	}
	return nil
}

func (l *LinkManager) sortKey(ctx context.Context, in EdgeInput) (int64, error) {
	if in.SortKey != nil {
		return *in.SortKey, nil
	}
	last, err := l.store.MaxEdgeSortKey(ctx, in.ParentID)
	if err != nil {
		return 0, translate(err, "node", in.ParentID, "create edge")
	}
	return last + 1, nil
}
