// Package checkpoint provides SQLite-backed durable storage for federate
// synchronization-point snapshots.
//
// The store keeps an append-only history per run:
//   - Runs: one row per federate execution (run token, federation, federate)
//   - Snapshots: one row per checkpointed cycle of a run
//   - Snapshot points: the ordered point records of one snapshot
//
// # Ordering
//
// All ordering uses the logical cycle sequence (seq) and the stored point
// position, never wall-clock time. taken_at is informational only. Loads
// always apply ORDER BY so re-reads of the same snapshot are identical,
// which is what the replay verifier depends on.
//
// # Idempotency
//
// Saves use ON CONFLICT DO NOTHING: a federate that re-runs a cycle after
// a crash re-saves the same (run, seq) snapshot and the original rows win.
// Restoring from the latest snapshot and stepping forward therefore never
// forks the recorded history.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package checkpoint
