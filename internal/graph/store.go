package graph

import (
	"context"
	"time"

	"github.com/roach88/taxon/internal/model"
	"github.com/roach88/taxon/internal/store"
)

// Store is the persistence contract the catalog depends on.
//
// Lookups of missing records return an error wrapping store.ErrNotFound.
// Listings return records in their deterministic order: edges and
// assignments by (sort_key, id), nodes by (sequence, id).
type Store interface {
	InsertNode(ctx context.Context, n model.Node) error
	UpdateNode(ctx context.Context, n model.Node) error
	FindNode(ctx context.Context, id string) (model.Node, error)
	ListNodes(ctx context.Context, filter model.NodeFilter) ([]model.Node, error)
	SetBaseNode(ctx context.Context, id string, now time.Time) error
	BaseNode(ctx context.Context) (model.Node, error)
	SoftDeleteNode(ctx context.Context, id string, now time.Time) ([]string, error)

	FindEdge(ctx context.Context, id string) (model.Edge, error)
	FindEdgeByPair(ctx context.Context, parentID, childID string) (model.Edge, error)
	FindEdgesByParent(ctx context.Context, parentID string) ([]model.Edge, error)
	FindEdgesByChild(ctx context.Context, childID string) ([]model.Edge, error)
	AllEdges(ctx context.Context) ([]model.Edge, error)
	MaxEdgeSortKey(ctx context.Context, parentID string) (int64, error)
	UpsertEdge(ctx context.Context, e model.Edge, replaceSortKey bool) (model.Edge, error)
	DeleteEdge(ctx context.Context, id string) (model.Edge, error)
	UpdateEdgeSortKeys(ctx context.Context, updates []model.SortKeyUpdate, now time.Time) ([]model.Edge, error)

	FindAssignment(ctx context.Context, id string) (model.Assignment, error)
	FindAssignmentByPair(ctx context.Context, nodeID, itemID string) (model.Assignment, error)
	FindAssignmentsByNode(ctx context.Context, nodeID string) ([]model.Assignment, error)
	FindAssignmentsByItem(ctx context.Context, itemID string) ([]model.Assignment, error)
	MaxAssignmentSortKey(ctx context.Context, nodeID string) (int64, error)
	UpsertAssignment(ctx context.Context, a model.Assignment, replaceSortKey bool) (model.Assignment, error)
	DeleteAssignment(ctx context.Context, id string) (model.Assignment, error)
	UpdateAssignmentSortKeys(ctx context.Context, updates []model.SortKeyUpdate, now time.Time) ([]model.Assignment, error)

	GetCacheRecord(ctx context.Context, nodeID string) (model.CacheRecord, error)
	SetCacheRecord(ctx context.Context, rec model.CacheRecord) error
	DeleteCacheRecord(ctx context.Context, nodeID string) error
}

var _ Store = (*store.Store)(nil)

// findLiveNode loads a node and reports deleted nodes as not found.
func findLiveNode(ctx context.Context, st Store, id string) (model.Node, error) {
	node, err := st.FindNode(ctx, id)
	if err != nil {
		return model.Node{}, translate(err, "node", id, "find node")
	}
	if node.IsDeleted() {
		return model.Node{}, NewNotFoundError("node", id)
	}
	return node, nil
}
