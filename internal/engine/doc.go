// Package engine is the deterministic, metered execution environment that
// hosts chaindb's token ledger, database factory and databases.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Every call goes through one goroutine (Run). Calls from any goroutine are
// queued by Execute and executed strictly one after another, so a call never
// observes another call's partial effects.
//
// Call Flow:
//  1. Execute enqueues the call and blocks for its receipt
//  2. Run dequeues it and looks up the action
//  3. Mutating calls take seq = Clock.Next(); reads run at Clock.Current()
//  4. The base gas is charged, then the action decodes its arguments,
//     charges for the words it will write and runs against the world
//  5. The invocation, completion and events are written to the journal in
//     one transaction (mutating calls only)
//
// Gas:
// Each call carries a gas limit. Writes pay for every word before anything
// changes, so running out of gas leaves the world untouched. Reads pay for
// every row they return.
//
// Replay:
// The journal is the durable state. Restore executes every journaled call
// again against a fresh world and checks each outcome against the record,
// which catches any non-determinism between versions.
//
// Ordering uses the logical clock only; there are no wall-clock timestamps
// in anything the engine records.
package engine
