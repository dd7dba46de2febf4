// Package seed loads declarative catalog snapshots from YAML or CUE files
// and applies them to a catalog.
package seed

import (
	"context"
	"fmt"

	"github.com/roach88/taxon/internal/graph"
	"github.com/roach88/taxon/internal/model"
)

// File is a declarative catalog snapshot.
//
// Field names are shared by the YAML and CUE formats.
type File struct {
	Nodes       []Node       `yaml:"nodes" json:"nodes"`
	Edges       []Edge       `yaml:"edges" json:"edges"`
	Assignments []Assignment `yaml:"assignments" json:"assignments"`
	Base        string       `yaml:"base" json:"base"`
}

// Node declares a taxonomy node. Active defaults to true.
type Node struct {
	ID       string         `yaml:"id" json:"id"`
	Active   *bool          `yaml:"active" json:"active"`
	Root     bool           `yaml:"root" json:"root"`
	Sequence int64          `yaml:"sequence" json:"sequence"`
	Tags     []string       `yaml:"tags" json:"tags"`
	Slugs    []string       `yaml:"slugs" json:"slugs"`
	Meta     map[string]any `yaml:"meta" json:"meta"`
}

// Edge declares a parent-child link.
type Edge struct {
	Parent  string   `yaml:"parent" json:"parent"`
	Child   string   `yaml:"child" json:"child"`
	SortKey *int64   `yaml:"sort_key" json:"sort_key"`
	Tags    []string `yaml:"tags" json:"tags"`
}

// Assignment declares an item placed in a node.
type Assignment struct {
	Node    string   `yaml:"node" json:"node"`
	Item    string   `yaml:"item" json:"item"`
	SortKey *int64   `yaml:"sort_key" json:"sort_key"`
	Tags    []string `yaml:"tags" json:"tags"`
}

// Summary counts what Apply wrote.
type Summary struct {
	NodesCreated int `json:"nodes_created"`
	NodesUpdated int `json:"nodes_updated"`
	Edges        int `json:"edges"`
	Assignments  int `json:"assignments"`
}

// Catalog is the subset of graph.Catalog that Apply needs.
type Catalog interface {
	Node(ctx context.Context, id string) (model.Node, error)
	CreateNode(ctx context.Context, in graph.NodeInput) (model.Node, error)
	UpdateNode(ctx context.Context, id string, patch graph.NodePatch) (model.Node, error)
	CreateEdge(ctx context.Context, in graph.EdgeInput) (model.Edge, error)
	CreateAssignment(ctx context.Context, in graph.AssignmentInput) (model.Assignment, error)
	SetBase(ctx context.Context, id string) error
}

// Validate checks a seed file for missing ids and duplicate nodes. Edge
// and assignment references are checked by the catalog when applied.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Nodes))
	for i, n := range f.Nodes {
		if n.ID == "" {
			return fmt.Errorf("nodes[%d]: id is required", i)
		}
		if seen[n.ID] {
			return fmt.Errorf("nodes[%d]: duplicate node id %q", i, n.ID)
		}
		seen[n.ID] = true
	}
	for i, e := range f.Edges {
		if e.Parent == "" || e.Child == "" {
			return fmt.Errorf("edges[%d]: parent and child are required", i)
		}
	}
	for i, a := range f.Assignments {
		if a.Node == "" || a.Item == "" {
			return fmt.Errorf("assignments[%d]: node and item are required", i)
		}
	}
	return nil
}

// Apply writes the snapshot through the catalog: nodes first, then edges,
// then assignments, then the base node. Existing nodes are updated in
// place and existing edges and assignments are upserted, so applying the
// same file twice leaves the catalog unchanged.
func Apply(ctx context.Context, cat Catalog, f *File) (Summary, error) {
	var sum Summary
	if err := f.Validate(); err != nil {
		return sum, fmt.Errorf("invalid seed: %w", err)
	}

	for _, n := range f.Nodes {
		active := true
		if n.Active != nil {
			active = *n.Active
		}

		_, err := cat.Node(ctx, n.ID)
		switch {
		case err == nil:
			if _, err := cat.UpdateNode(ctx, n.ID, graph.NodePatch{
				IsActive: &active,
				IsRoot:   &n.Root,
				Sequence: &n.Sequence,
				Tags:     nonNil(n.Tags),
				Slugs:    nonNil(n.Slugs),
				Meta:     n.Meta,
			}); err != nil {
				return sum, fmt.Errorf("update node %s: %w", n.ID, err)
			}
			sum.NodesUpdated++
		case graph.IsNotFoundError(err):
			if _, err := cat.CreateNode(ctx, graph.NodeInput{
				ID:       n.ID,
				IsActive: active,
				IsRoot:   n.Root,
				Sequence: n.Sequence,
				Tags:     n.Tags,
				Slugs:    n.Slugs,
				Meta:     n.Meta,
			}); err != nil {
				return sum, fmt.Errorf("create node %s: %w", n.ID, err)
			}
			sum.NodesCreated++
		default:
			return sum, fmt.Errorf("load node %s: %w", n.ID, err)
		}
	}

	for _, e := range f.Edges {
		if _, err := cat.CreateEdge(ctx, graph.EdgeInput{
			ParentID: e.Parent,
			ChildID:  e.Child,
			SortKey:  e.SortKey,
			Tags:     e.Tags,
		}); err != nil {
			return sum, fmt.Errorf("edge %s -> %s: %w", e.Parent, e.Child, err)
		}
		sum.Edges++
	}

	for _, a := range f.Assignments {
		if _, err := cat.CreateAssignment(ctx, graph.AssignmentInput{
			NodeID:  a.Node,
			ItemID:  a.Item,
			SortKey: a.SortKey,
			Tags:    a.Tags,
		}); err != nil {
			return sum, fmt.Errorf("assignment %s/%s: %w", a.Node, a.Item, err)
		}
		sum.Assignments++
	}

	if f.Base != "" {
		if err := cat.SetBase(ctx, f.Base); err != nil {
			return sum, fmt.Errorf("base %s: %w", f.Base, err)
		}
	}
	return sum, nil
}

// nonNil turns a missing list into an empty one so an update clears it.
func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
