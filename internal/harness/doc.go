// Package harness runs catalog scenarios as executable contract tests.
//
// A scenario builds a catalog from an optional seed file and setup steps,
// runs flow steps whose outcomes are checked against expect clauses, and
// finally evaluates assertions over the trace and the resulting catalog.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	seed: ../seeds/shoes.yaml
//	setup:
//	  - op: create_node
//	    args: { id: R, root: true }
//	flow:
//	  - op: create_edge
//	    args: { parent: B, child: R }
//	    expect:
//	      error: CYCLIC_GRAPH
//	  - op: items
//	    args: { node: R }
//	    expect:
//	      items: [p2, p1]
//	assertions:
//	  - type: items
//	    node: R
//	    items: [p1, p2]
//	    unordered: true
//	  - type: cache_consistent
//
// # Operations
//
// create_node, update_node, set_base, delete_node, create_edge,
// delete_edge, reorder_edges, create_assignment, delete_assignment,
// reorder_assignments, items, breadcrumbs, invalidate and rebuild.
// Edges and assignments are addressed by their endpoints, never by id.
// The reorder operations take an order list; listed records move to the
// front and every sort key is renumbered from 1.
//
// # Assertion Types
//
//   - items: compares a node's item list, optionally live or unordered
//   - breadcrumbs: compares the paths of a node or an item
//   - trace_count: counts flow steps of one operation and outcome
//   - cache_consistent: every live node's cached set equals its live set
//   - acyclic: no live node is its own ancestor
//   - metric: compares a cache counter
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory database with sequential
// ids and a stepping clock, so traces are byte-identical across runs and
// can be compared against golden files.
package harness
