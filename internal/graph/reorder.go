package graph

import (
	"context"

	"github.com/roach88/taxon/internal/model"
)

// ReorderChildren renumbers the child edges of parentID so the listed
// children come first, in the given order. Children not listed keep their
// relative order after them. Sort keys become 1..n.
func (c *Catalog) ReorderChildren(ctx context.Context, parentID string, childIDs []string) ([]model.Edge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := findLiveNode(ctx, c.store, parentID); err != nil {
		return nil, err
	}
	edges, err := c.store.FindEdgesByParent(ctx, parentID)
	if err != nil {
		return nil, translate(err, "node", parentID, "reorder children")
	}
	current := make([]keyedID, len(edges))
	for i, e := range edges {
		current[i] = keyedID{key: e.ChildID, id: e.ID}
	}
	updates, err := positionalUpdates(current, childIDs, "edge", parentID+"->")
	if err != nil {
		return nil, err
	}
	return c.links.Reorder(ctx, updates)
}

// ReorderItems renumbers the assignments of nodeID so the listed items
// come first, in the given order. Items not listed keep their relative
// order after them. Sort keys become 1..n.
func (c *Catalog) ReorderItems(ctx context.Context, nodeID string, itemIDs []string) ([]model.Assignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := findLiveNode(ctx, c.store, nodeID); err != nil {
		return nil, err
	}
	list, err := c.store.FindAssignmentsByNode(ctx, nodeID)
	if err != nil {
		return nil, translate(err, "node", nodeID, "reorder items")
	}
	current := make([]keyedID, len(list))
	for i, a := range list {
		current[i] = keyedID{key: a.ItemID, id: a.ID}
	}
	updates, err := positionalUpdates(current, itemIDs, "assignment", nodeID+"/")
	if err != nil {
		return nil, err
	}
	return c.assignments.Reorder(ctx, updates)
}

// keyedID pairs a record id with the key callers order it by.
type keyedID struct {
	key string
	id  string
}

// positionalUpdates puts the keys in order first, then the rest of current
// in its existing order, numbering them from 1.
func positionalUpdates(current []keyedID, order []string, kind, prefix string) ([]model.SortKeyUpdate, error) {
	ids := make(map[string]string, len(current))
	for _, c := range current {
		ids[c.key] = c.id
	}

	updates := make([]model.SortKeyUpdate, 0, len(current))
	placed := make(map[string]bool, len(order))
	for _, key := range order {
		if placed[key] {
			return nil, newInvalidInputError("duplicate " + kind + " " + prefix + key + " in order")
		}
		id, ok := ids[key]
		if !ok {
			return nil, NewNotFoundError(kind, prefix+key)
		}
		placed[key] = true
		updates = append(updates, model.SortKeyUpdate{ID: id, SortKey: int64(len(updates) + 1)})
	}
	for _, c := range current {
		if placed[c.key] {
			continue
		}
		updates = append(updates, model.SortKeyUpdate{ID: c.id, SortKey: int64(len(updates) + 1)})
	}
	return updates, nil
}
