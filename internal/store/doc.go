// Package store provides SQLite-backed durable storage for reconciliation
// pass logs.
//
// Every pass a session runs is appended to the passes table together with
// its counts and outcome. Successful passes also store the tree they
// converged to in the snapshots table, keyed by the tree's content hash, so
// a later process can diff against or replay the last converged state.
//
// # Ordering
//
// Reads order by seq ASC, id ASC COLLATE BINARY. seq is the session's
// logical clock; recorded_at is informational and never used for ordering.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Snapshot keys are computed by ir.TreeFingerprint using RFC 8785 canonical
// JSON and SHA-256 with domain separation.
package store
