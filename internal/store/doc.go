// Package store persists the knowledge graph on SQLite or PostgreSQL.
//
// The store holds entities, classes, relation types, groups, remote
// instance registrations and eight forms of attribute, and enforces what
// the schema alone cannot:
//   - Ordering: every attribute owns one AttributeSorting row and every
//     group member carries a sorting index, unique within its scope
//   - Homogeneity: a group that disallows mixed classes never holds members
//     with different class references (null counts as one value)
//   - Archival: archived entities stay but drop out of default reads
//
// # Transactions
//
// Every mutating operation takes a Scope. Standalone() lets the operation
// open and commit its own transaction; Within(tx) runs it on a caller's
// transaction, which the operation never commits or rolls back. A failed
// operation never commits, so a caller holding tx can roll back the whole
// workflow. Reads through In(tx) run on the same transaction and see its
// uncommitted writes.
//
// # Identifiers and sorting indices
//
//   - Ids are drawn from per-kind sequences in id_sequence and are never 0
//   - The first member of a scope is placed MinID+99,999, later ones at
//     MaxID-99,999; collisions probe downward at most 10,000 steps
//   - Renumbering spreads a scope evenly over the id range in one transaction
//
// # Database Configuration
//
// SQLite connections run with:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - a REGEXP function for case-insensitive pattern search
//
// Dates are stored as unix milliseconds in UTC.
package store
