// Package store provides SQLite-backed forensic storage for hdx runs.
//
// The store is an append-only log with:
//   - Runs: one record per pipeline run (digests, final state, versions)
//   - Trace Records: the typed trace of each run, in trace order
//
// Payload bytes are never stored. A run is identified by a content-addressed
// ID computed in internal/ir/hash.go and correlated by its run token.
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//
// Deterministic query results:
//   - All list queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// Idempotent writes:
//   - WriteRun uses ON CONFLICT(id) DO NOTHING; rewriting a run is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
