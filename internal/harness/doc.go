// Package harness provides conformance testing for the chaindb engine.
//
// The harness runs YAML scenarios against a real engine over an in-memory
// journal, checks each completion against its expectation, evaluates
// assertions on the trace and final state, and finally restores a second
// engine from the journal to confirm the run replays.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	session: test-session-1
//	config:
//	  price: 100
//	  policy: owner
//	  gas: { limit: 5000 }
//	setup:
//	  - action: Token.mint
//	    args: { to: "@alice", amount: 10000 }
//	  - action: Factory.create
//	    caller: alice
//	    args: { name: shop }
//	flow:
//	  - invoke: Database.insert
//	    database: $shop
//	    caller: alice
//	    args: { table: 0, values: [1, "x", true] }
//	    expect:
//	      case: Success
//	      result: { row: 0 }
//	      events: [RowCreated]
//	assertions:
//	  - type: trace_contains
//	    action: Database.insert
//	    args: { table: 0 }
//	  - type: final_state
//	    action: Database.describeTable
//	    database: $shop
//	    args: { table: 0 }
//	    expect: { row_count: 1 }
//
// Callers and "@alias" strings name accounts: the well-known testutil
// accounts plus the scenario's own. "$name" names a database created by
// the scenario; "$db" is the most recent one. Calls default to the admin
// caller.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: Verifies an action appears in the trace with matching args
//   - trace_order: Verifies actions appear in specified order
//   - trace_count: Verifies an action appears exactly N times
//   - final_state: Makes a read call and verifies its result
//
// # Deterministic Testing
//
// Seqs come from the engine's own logical clock, sessions from a fixed
// generator, and every ID is content-addressed, so a scenario yields the
// same trace on every run. Traces show databases and known addresses by
// alias, which keeps golden files readable.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/bacon.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
