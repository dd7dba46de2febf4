package model

import "time"

// Node is an assortment in the catalog taxonomy.
//
// IsRoot marks catalog entry points. IsBase marks the single default node;
// at most one node carries it at any time. Deleted is set when the node is
// soft-deleted, after which it takes no part in traversal.
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	IsActive bool           `json:"is_active" yaml:"is_active"`
	IsRoot   bool           `json:"is_root" yaml:"is_root"`
	IsBase   bool           `json:"is_base" yaml:"is_base"`
	Sequence int64          `json:"sequence" yaml:"sequence"`
	Tags     []string       `json:"tags" yaml:"tags"`
	Slugs    []string       `json:"slugs" yaml:"slugs"`
	Meta     map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	Created  time.Time      `json:"created" yaml:"created"`
	Updated  time.Time      `json:"updated" yaml:"updated"`
	Deleted  *time.Time     `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

// IsDeleted reports whether the node has been soft-deleted.
func (n Node) IsDeleted() bool {
	return n.Deleted != nil
}

// Traversable reports whether the node contributes to materialized item
// lists of its parents.
func (n Node) Traversable() bool {
	return n.IsActive && !n.IsDeleted()
}

// Edge links a parent node to a child node. (ParentID, ChildID) is unique.
type Edge struct {
	ID       string         `json:"id"`
	ParentID string         `json:"parent_id"`
	ChildID  string         `json:"child_id"`
	SortKey  int64          `json:"sort_key"`
	Tags     []string       `json:"tags"`
	Meta     map[string]any `json:"meta,omitempty"`
	Created  time.Time      `json:"created"`
	Updated  time.Time      `json:"updated"`
}

// Assignment places an item directly in a node. (NodeID, ItemID) is unique.
type Assignment struct {
	ID      string         `json:"id"`
	NodeID  string         `json:"node_id"`
	ItemID  string         `json:"item_id"`
	SortKey int64          `json:"sort_key"`
	Tags    []string       `json:"tags"`
	Meta    map[string]any `json:"meta,omitempty"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
}

// CacheRecord holds the materialized, deduplicated item list of a node.
type CacheRecord struct {
	NodeID  string    `json:"node_id"`
	ItemIDs []string  `json:"item_ids"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// SortKeyUpdate assigns a new sort key to an edge or an assignment.
type SortKeyUpdate struct {
	ID      string `json:"id" yaml:"id"`
	SortKey int64  `json:"sort_key" yaml:"sort_key"`
}

// Breadcrumb is one route from a root to a node (or to an item).
//
// Edges are ordered root first. A node without parents has a single
// breadcrumb with no edges. Item breadcrumbs additionally carry the
// assignment that places the item in the last node of the route.
type Breadcrumb struct {
	Edges      []Edge      `json:"edges"`
	Assignment *Assignment `json:"assignment,omitempty"`
}

// NodeIDs returns the node ids visited by the breadcrumb, root first.
// For an item breadcrumb the owning node is the last entry.
func (b Breadcrumb) NodeIDs() []string {
	var ids []string
	for i, e := range b.Edges {
		if i == 0 {
			ids = append(ids, e.ParentID)
		}
		ids = append(ids, e.ChildID)
	}
	if b.Assignment != nil && len(ids) == 0 {
		ids = append(ids, b.Assignment.NodeID)
	}
	return ids
}

// NodeFilter narrows node listings.
type NodeFilter struct {
	OnlyRoots      bool
	OnlyActive     bool
	IncludeDeleted bool
	Tags           []string
}
