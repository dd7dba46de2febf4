// Package store provides SQLite-backed durable storage for the taxon
// catalog graph.
//
// Tables:
//   - nodes: assortments, soft-deleted via the deleted column
//   - edges: parent → child links, UNIQUE(parent_id, child_id)
//   - assignments: node → item membership, UNIQUE(node_id, item_id)
//   - cache_records: one materialized item list per node
//
// # Ordering
//
// Every listing is deterministic: ORDER BY sort_key ASC, id ASC COLLATE
// BINARY. Timestamps never order anything.
//
// # Atomicity
//
// Single-record writes are atomic upserts. Operations that must touch
// several rows together (soft delete with cascade, base node switch, batch
// sort key updates) run in one transaction. The store does not serialize
// read-check-write sequences across calls; callers that need that (cycle
// checks) hold their own lock.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: edges and assignments must reference real nodes
package store
