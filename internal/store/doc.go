// Package store provides SQLite-backed durable storage for pledge.
//
// Three tables:
//   - commitments: one row per (creator, description), keyed by the derived ref
//   - accounts: asset balances, including commitment vaults
//   - events: append-only log, one row per successful command
//
// # Atomicity
//
// Every command runs inside Store.Update. The transaction is opened with
// BEGIN IMMEDIATE (_txlock=immediate), so the write lock is taken before
// the first read and two processes cannot both observe a pending outcome.
// Within the transaction the outcome update is a compare-and-set on
// outcome = 'pending'.
//
// # Ordering
//
// Events are ordered by seq, assigned inside the writing transaction.
// Listings always carry an ORDER BY with a binary-collated tiebreaker.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Amounts and timestamps are uint64 in Go and INTEGER (signed 64-bit) in
// SQLite; values above math.MaxInt64 are rejected before they reach SQL.
package store
