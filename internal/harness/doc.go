// Package harness runs escrow scenarios against a real engine.
//
// Each scenario runs in a fresh in-memory database with a manual clock and
// sequential request IDs, so the event log it produces is byte-identical
// across runs and can be compared against a golden trace.
//
// # Scenario Format
//
//	name: judge_success
//	description: "Judge rules success after the deadline"
//	asset: TOKEN            # optional, defaults to TOKEN
//	start: 1000000          # initial clock reading
//	accounts:
//	  - owner: alice
//	    amount: 1000
//	steps:
//	  - at: 1000000
//	    create:
//	      caller: alice
//	      amount: 100
//	      description: "no meme coins"
//	      judge: jim
//	      to_success: sam
//	      to_failure: fay
//	      deadline: 1000010
//	  - at: 1000011
//	    judge:
//	      caller: jim
//	      creator: alice
//	      description: "no meme coins"
//	      verdict: true
//	      destination: sam
//	    expect: ok
//	assertions:
//	  - type: balance
//	    owner: sam
//	    amount: 100
//
// Steps address commitments by (creator, description); destinations name
// an owner whose canonical account is derived, or a raw destination_ref.
// expect is "ok" (the default) or an error code such as ALREADY_JUDGED.
//
// # Assertion Types
//
//   - balance: the canonical account of owner holds amount
//   - vault: the vault of (creator, description) holds amount
//   - outcome: the commitment's outcome is pending, success, failure or reclaimed
//   - event_count: the log holds exactly count events
//   - audit_clean: Engine.Audit reports no findings
//
// Scenario files are checked against an embedded CUE schema before they
// are decoded; see ValidateScenarioData.
package harness
