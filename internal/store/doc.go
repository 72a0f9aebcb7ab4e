// Package store provides SQLite-backed history of benchmark runs.
//
// Each recorded run keeps its summary counters in columns for listing, the
// full config and report as JSON, and one row per timed phase.
//
// # Ordering
//
// Run IDs are UUIDv7, so they sort by creation time. Listings use
// ORDER BY started_at DESC, id DESC for a stable newest-first order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
