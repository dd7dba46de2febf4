// Package graph maintains the catalog taxonomy: a directed acyclic graph of
// nodes, their item assignments, and the materialized item list cached for
// every node.
//
// The package is split into cooperating components:
//
//   - LinkManager creates, deletes and reorders parent-child edges and
//     rejects edges that would close a cycle.
//   - AssignmentManager does the same for node-item assignments.
//   - PathResolver walks the graph upwards to answer ancestor and
//     breadcrumb queries.
//   - CacheCoordinator computes item lists, persists them, and propagates
//     changes to ancestors with a bounded worklist.
//
// Catalog wires the components together and serializes every mutation
// behind a single graph-wide lock. Reads never take the lock; they observe
// whatever the store holds, which is eventually consistent with the last
// completed mutation.
package graph
