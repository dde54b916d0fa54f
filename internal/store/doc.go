// Package store provides SQLite-backed durable storage for relay run traces.
//
// The store is an append-only record of what each run observed:
//   - Runs: one row per script execution (script identity, terminal status)
//   - Emissions: the output lines, stamped with seq and loop turn
//
// # Critical Patterns
//
// Logical time only:
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Enables deterministic replay regardless of wall time
//
// Deterministic query results:
//   - Emission queries MUST include: ORDER BY seq ASC
//   - Ensures identical results across replays
//
// Idempotent writes:
//   - Duplicate run/emission writes are silently ignored via ON CONFLICT
//   - A crashed run can be re-recorded without corrupting the trace
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Script hashes and trace digests are computed via internal/ir/hash.go
// using RFC 8785 canonical JSON and SHA-256 with domain separation.
package store
