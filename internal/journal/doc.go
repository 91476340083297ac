// Package journal provides SQLite-backed durable storage for chaindb calls.
//
// The journal is an append-only log with three tables:
//   - invocations: one row per mutating call, with its canonical arguments
//   - completions: the outcome of each invocation (exactly one per invocation)
//   - events: the lifecycle events a completion emitted, in emission order
//
// A call is written in one transaction (WriteCall), so a crash never leaves an
// invocation without its completion and events.
//
// Ordering uses seq (the engine's logical clock), never timestamps. Every
// read orders by seq ASC, id ASC COLLATE BINARY so replays see the same
// sequence every time.
//
// Arguments, results and event fields are stored as RFC 8785 canonical JSON.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package journal
