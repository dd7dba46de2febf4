package graph

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/taxon/internal/model"
)

// Options configures a Catalog. Zero values select defaults.
type Options struct {
	// Logger receives mutation and invalidation logs. Defaults to a
	// discarding logger.
	Logger *slog.Logger

	// IDs generates record ids. Defaults to UUIDv7.
	IDs model.IDGenerator

	// Clock stamps created and updated times. Defaults to the system clock.
	Clock model.Clock

	// Registerer receives the catalog metrics. Nil leaves them
	// unregistered.
	Registerer prometheus.Registerer
}

// NodeInput describes a node to create.
type NodeInput struct {
	ID       string         `json:"id,omitempty"`
	IsActive bool           `json:"is_active"`
	IsRoot   bool           `json:"is_root"`
	Sequence int64          `json:"sequence"`
	Tags     []string       `json:"tags,omitempty"`
	Slugs    []string       `json:"slugs,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// NodePatch lists node fields to change. Nil fields are left as they are.
type NodePatch struct {
	IsActive *bool
	IsRoot   *bool
	Sequence *int64
	Tags     []string
	Slugs    []string
	Meta     map[string]any
}

// Catalog is the entry point to the taxonomy.
//
// Every mutation runs under one graph-wide lock, so the ancestor check of
// an edge and its insert cannot interleave with another mutation, and each
// mutating call returns only after cache invalidation has settled. Reads
// do not take the lock.
type Catalog struct {
	mu sync.Mutex

	store   Store
	ids     model.IDGenerator
	clock   model.Clock
	logger  *slog.Logger
	metrics *Metrics

	links       *LinkManager
	assignments *AssignmentManager
	paths       *PathResolver
	cache       *CacheCoordinator
}

// New wires a catalog over the given store.
func New(st Store, opts Options) *Catalog {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ids := opts.IDs
	if ids == nil {
		ids = model.UUIDv7Generator{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = model.SystemClock{}
	}
	metrics := NewMetrics(opts.Registerer)

	paths := NewPathResolver(st)
	cache := NewCacheCoordinator(st, clock, logger, metrics)
	return &Catalog{
		store:       st,
		ids:         ids,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		links:       NewLinkManager(st, ids, clock, paths, cache, metrics, logger),
		assignments: NewAssignmentManager(st, ids, clock, cache, logger),
		paths:       paths,
		cache:       cache,
	}
}

// Metrics returns the catalog counters.
func (c *Catalog) Metrics() *Metrics {
	return c.metrics
}

// CreateNode inserts a node. An empty id is generated. Tags and slugs are
// normalized before storage.
func (c *Catalog) CreateNode(ctx context.Context, in NodeInput) (model.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := in.ID
	if id == "" {
		id = c.ids.NewID()
	}
	now := c.clock.Now()
	node := model.Node{
		ID:       id,
		IsActive: in.IsActive,
		IsRoot:   in.IsRoot,
		Sequence: in.Sequence,
		Tags:     model.NormalizeTags(in.Tags),
		Slugs:    model.NormalizeSlugs(in.Slugs),
		Meta:     in.Meta,
		Created:  now,
		Updated:  now,
	}
	if err := c.store.InsertNode(ctx, node); err != nil {
		return model.Node{}, translate(err, "node", id, "create node")
	}

	c.logger.Info("node created", "node", id, "active", node.IsActive, "root", node.IsRoot)
	return findLiveNode(ctx, c.store, id)
}

// Node returns a live node.
func (c *Catalog) Node(ctx context.Context, id string) (model.Node, error) {
	return findLiveNode(ctx, c.store, id)
}

// Nodes lists nodes matching the filter, ordered by sequence then id.
func (c *Catalog) Nodes(ctx context.Context, filter model.NodeFilter) ([]model.Node, error) {
	filter.Tags = model.NormalizeTags(filter.Tags)
	nodes, err := c.store.ListNodes(ctx, filter)
	if err != nil {
		return nil, translate(err, "node", "", "list nodes")
	}
	return nodes, nil
}

// UpdateNode applies a patch to a live node. Changing IsActive invalidates
// every parent, since the node enters or leaves their item lists.
func (c *Catalog) UpdateNode(ctx context.Context, id string, patch NodePatch) (model.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, err := findLiveNode(ctx, c.store, id)
	if err != nil {
		return model.Node{}, err
	}

	activityChanged := patch.IsActive != nil && *patch.IsActive != node.IsActive
	if patch.IsActive != nil {
		node.IsActive = *patch.IsActive
	}
	if patch.IsRoot != nil {
		node.IsRoot = *patch.IsRoot
	}
	if patch.Sequence != nil {
		node.Sequence = *patch.Sequence
	}
	if patch.Tags != nil {
		node.Tags = model.NormalizeTags(patch.Tags)
	}
	if patch.Slugs != nil {
		node.Slugs = model.NormalizeSlugs(patch.Slugs)
	}
	if patch.Meta != nil {
		node.Meta = patch.Meta
	}
	node.Updated = c.clock.Now()

	if err := c.store.UpdateNode(ctx, node); err != nil {
		return model.Node{}, translate(err, "node", id, "update node")
	}
	c.logger.Info("node updated", "node", id, "active", node.IsActive)

	if activityChanged {
		parents, err := c.cache.parentIDs(ctx, id)
		if err != nil {
			return node, err
		}
		for _, parentID := range parents {
			if _, err := c.cache.Invalidate(ctx, parentID, InvalidateOptions{}); err != nil {
				return node, err
			}
		}
	}
	return findLiveNode(ctx, c.store, id)
}

// SetActive activates or deactivates a node.
func (c *Catalog) SetActive(ctx context.Context, id string, active bool) (model.Node, error) {
	return c.UpdateNode(ctx, id, NodePatch{IsActive: &active})
}

// SetBase makes id the single base node, clearing the flag on every other
// node in the same transaction.
func (c *Catalog) SetBase(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.SetBaseNode(ctx, id, c.clock.Now()); err != nil {
		return translate(err, "node", id, "set base node")
	}
	c.logger.Info("base node set", "node", id)
	return nil
}

// BaseNode returns the current base node.
func (c *Catalog) BaseNode(ctx context.Context) (model.Node, error) {
	node, err := c.store.BaseNode(ctx)
	if err != nil {
		return model.Node{}, translate(err, "node", "base", "find base node")
	}
	return node, nil
}

// DeleteNode soft-deletes a node, removing its edges, assignments and
// cache record, then invalidates its former parents.
func (c *Catalog) DeleteNode(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	parents, err := c.store.SoftDeleteNode(ctx, id, c.clock.Now())
	if err != nil {
		return translate(err, "node", id, "delete node")
	}
	c.logger.Info("node deleted", "node", id, "parents", len(parents))

	for _, parentID := range parents {
		if _, err := c.cache.Invalidate(ctx, parentID, InvalidateOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// CreateEdge links parent to child. See LinkManager.Create.
func (c *Catalog) CreateEdge(ctx context.Context, in EdgeInput) (model.Edge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.links.Create(ctx, in)
}

// DeleteEdge removes an edge by id.
func (c *Catalog) DeleteEdge(ctx context.Context, edgeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.links.Delete(ctx, edgeID)
	return err
}

// ReorderEdges applies new sort keys to edges.
func (c *Catalog) ReorderEdges(ctx context.Context, updates []model.SortKeyUpdate) ([]model.Edge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.links.Reorder(ctx, updates)
}

// ChildEdges lists the outgoing edges of a node in sort order.
func (c *Catalog) ChildEdges(ctx context.Context, nodeID string) ([]model.Edge, error) {
	edges, err := c.store.FindEdgesByParent(ctx, nodeID)
	if err != nil {
		return nil, translate(err, "node", nodeID, "list child edges")
	}
	return edges, nil
}

// EdgeBetween returns the edge linking parentID to childID.
func (c *Catalog) EdgeBetween(ctx context.Context, parentID, childID string) (model.Edge, error) {
	e, err := c.store.FindEdgeByPair(ctx, parentID, childID)
	if err != nil {
		return model.Edge{}, translate(err, "edge", parentID+"->"+childID, "find edge")
	}
	return e, nil
}

// ParentEdges lists the incoming edges of a node in sort order.
func (c *Catalog) ParentEdges(ctx context.Context, nodeID string) ([]model.Edge, error) {
	edges, err := c.store.FindEdgesByChild(ctx, nodeID)
	if err != nil {
		return nil, translate(err, "node", nodeID, "list parent edges")
	}
	return edges, nil
}

// CreateAssignment places an item in a node. See AssignmentManager.Create.
func (c *Catalog) CreateAssignment(ctx context.Context, in AssignmentInput) (model.Assignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assignments.Create(ctx, in)
}

// DeleteAssignment removes an assignment by id.
func (c *Catalog) DeleteAssignment(ctx context.Context, assignmentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.assignments.Delete(ctx, assignmentID)
	return err
}

// ReorderAssignments applies new sort keys to assignments.
func (c *Catalog) ReorderAssignments(ctx context.Context, updates []model.SortKeyUpdate) ([]model.Assignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assignments.Reorder(ctx, updates)
}

// Assignments lists the assignments of a node in sort order.
func (c *Catalog) Assignments(ctx context.Context, nodeID string) ([]model.Assignment, error) {
	list, err := c.store.FindAssignmentsByNode(ctx, nodeID)
	if err != nil {
		return nil, translate(err, "node", nodeID, "list assignments")
	}
	return list, nil
}

// AssignmentOf returns the assignment placing itemID in nodeID.
func (c *Catalog) AssignmentOf(ctx context.Context, nodeID, itemID string) (model.Assignment, error) {
	a, err := c.store.FindAssignmentByPair(ctx, nodeID, itemID)
	if err != nil {
		return model.Assignment{}, translate(err, "assignment", nodeID+"/"+itemID, "find assignment")
	}
	return a, nil
}

// ItemIDs returns the materialized item list of a node.
func (c *Catalog) ItemIDs(ctx context.Context, nodeID string, q ItemQuery) ([]string, error) {
	return c.cache.ItemIDs(ctx, nodeID, q)
}

// NodeBreadcrumbs returns every route from a parentless node to nodeID.
func (c *Catalog) NodeBreadcrumbs(ctx context.Context, nodeID string) ([]model.Breadcrumb, error) {
	return c.paths.NodeBreadcrumbs(ctx, nodeID)
}

// ItemBreadcrumbs returns every route to every node the item is assigned to.
func (c *Catalog) ItemBreadcrumbs(ctx context.Context, itemID string) ([]model.Breadcrumb, error) {
	return c.paths.ItemBreadcrumbs(ctx, itemID)
}

// Ancestors returns every node above nodeID.
func (c *Catalog) Ancestors(ctx context.Context, nodeID string) (map[string]struct{}, error) {
	return c.paths.Ancestors(ctx, nodeID)
}

// Invalidate recomputes a node's cache record and propagates changes.
func (c *Catalog) Invalidate(ctx context.Context, nodeID string, opts InvalidateOptions) (Invalidation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Invalidate(ctx, nodeID, opts)
}

// Rebuild recomputes the cache record of every live node.
func (c *Catalog) Rebuild(ctx context.Context) (Invalidation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Rebuild(ctx)
}
