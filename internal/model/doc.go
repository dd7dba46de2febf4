// Package model defines the records of the taxon catalog graph.
//
// The graph is never held as an in-memory object graph. Nodes, edges,
// assignments and cache records are plain values keyed by id and live in a
// store; every traversal is a sequence of store lookups. This keeps
// ownership trivial and matches the persisted nature of the catalog.
//
// Record kinds:
//   - Node: an assortment in the taxonomy
//   - Edge: a directed parent → child link between two nodes
//   - Assignment: direct membership of an item (product) in a node
//   - CacheRecord: the materialized item list of a node
package model
