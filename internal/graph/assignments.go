package graph

import (
	"context"
	"log/slog"

	"github.com/roach88/taxon/internal/model"
)

// AssignmentInput describes an item placement to create.
type AssignmentInput struct {
	NodeID  string         `json:"node_id"`
	ItemID  string         `json:"item_id"`
	SortKey *int64         `json:"sort_key,omitempty"`
	Tags    []string       `json:"tags,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// AssignmentManager maintains node-item assignments. Items are leaves, so
// there is no cycle check. Every mutation invalidates the owning node.
type AssignmentManager struct {
	store  Store
	ids    model.IDGenerator
	clock  model.Clock
	cache  *CacheCoordinator
	logger *slog.Logger
}

// NewAssignmentManager creates an assignment manager.
func NewAssignmentManager(st Store, ids model.IDGenerator, clock model.Clock, cache *CacheCoordinator, logger *slog.Logger) *AssignmentManager {
	return &AssignmentManager{
		store:  st,
		ids:    ids,
		clock:  clock,
		cache:  cache,
		logger: logger,
	}
}

// Create assigns an item to a node. Creating an existing pair is an
// upsert that keeps the stored id; the sort key changes only when given.
func (m *AssignmentManager) Create(ctx context.Context, in AssignmentInput) (model.Assignment, error) {
	if in.NodeID == "" || in.ItemID == "" {
		return model.Assignment{}, newInvalidInputError("assignment needs both node and item")
	}
	if _, err := findLiveNode(ctx, m.store, in.NodeID); err != nil {
		return model.Assignment{}, err
	}

	sortKey := int64(0)
	if in.SortKey != nil {
		sortKey = *in.SortKey
	} else {
		last, err := m.store.MaxAssignmentSortKey(ctx, in.NodeID)
		if err != nil {
			return model.Assignment{}, translate(err, "node", in.NodeID, "create assignment")
		}
		sortKey = last + 1
	}

	now := m.clock.Now()
	a, err := m.store.UpsertAssignment(ctx, model.Assignment{
		ID:      m.ids.NewID(),
		NodeID:  in.NodeID,
		ItemID:  in.ItemID,
		SortKey: sortKey,
		Tags:    model.NormalizeTags(in.Tags),
		Meta:    in.Meta,
		Created: now,
		Updated: now,
	}, in.SortKey != nil)
	if err != nil {
		return model.Assignment{}, translate(err, "assignment", in.NodeID+"/"+in.ItemID, "create assignment")
	}

	m.logger.Info("assignment created",
		"assignment", a.ID,
		"node", a.NodeID,
		"item", a.ItemID,
		"sort_key", a.SortKey,
	)

	if _, err := m.cache.Invalidate(ctx, a.NodeID, InvalidateOptions{}); err != nil {
		return a, err
	}
	return a, nil
}

// Delete removes an assignment and invalidates its node.
func (m *AssignmentManager) Delete(ctx context.Context, assignmentID string) (model.Assignment, error) {
	a, err := m.store.DeleteAssignment(ctx, assignmentID)
	if err != nil {
		return model.Assignment{}, translate(err, "assignment", assignmentID, "delete assignment")
	}

	m.logger.Info("assignment deleted",
		"assignment", a.ID,
		"node", a.NodeID,
		"item", a.ItemID,
	)

	if _, err := m.cache.Invalidate(ctx, a.NodeID, InvalidateOptions{}); err != nil {
		return a, err
	}
	return a, nil
}

// Reorder applies new sort keys to a batch of assignments atomically and
// runs one invalidation per distinct node.
func (m *AssignmentManager) Reorder(ctx context.Context, updates []model.SortKeyUpdate) ([]model.Assignment, error) {
	if len(updates) == 0 {
		return []model.Assignment{}, nil
	}
	for _, u := range updates {
		if u.ID == "" {
			return nil, newInvalidInputError("sort key update without assignment id")
		}
	}

	assignments, err := m.store.UpdateAssignmentSortKeys(ctx, updates, m.clock.Now())
	if err != nil {
		return nil, translate(err, "assignment", "", "reorder assignments")
	}

	nodes := make([]string, 0, len(assignments))
	seen := make(map[string]bool)
	for _, a := range assignments {
		if seen[a.NodeID] {
			continue
		}
		seen[a.NodeID] = true
		nodes = append(nodes, a.NodeID)
	}

	m.logger.Info("assignments reordered",
		"assignments", len(assignments),
		"nodes", len(nodes),
	)

	for _, nodeID := range nodes {
		if _, err := m.cache.Invalidate(ctx, nodeID, InvalidateOptions{}); err != nil {
			return assignments, err
		}
	}
	return assignments, nil
}
