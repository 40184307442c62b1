// Package harness provides conformance testing for hdx pipelines.
//
// The harness loads a pipeline, pushes one payload through it under one
// authorization context, records the run, verifies it by replay and
// evaluates assertions on the result.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: invalid_credential_blocks
//	description: "An unauthorized caller gets a decoy and is blocked"
//	pipeline: ../pipelines/default   # or inline stages:
//	# stages:
//	#   - {name: Op_0, max_depth: 10}
//	input: CONFIDENTIAL_DATA_PACKET
//	role: Hacker
//	credential: WRONG_KEY
//	expect_state: BLOCKED
//	assertions:
//	  - type: kill_switch
//	    index: 4
//	  - type: trace_contains
//	    line: "Step 0: DECAY/HONEY"
//
// # Assertion Types
//
//   - final_state: the run ended in state
//   - trace_contains: a rendered trace line is present
//   - trace_count: the trace holds count records of kind
//     (executed, kill_switch, valid, decay)
//   - kill_switch: the kill switch fired (optionally before stage index),
//     or did not when engaged is false
//   - length_preserved: output length equals input length
//   - differs_from_authorized: output differs from an authorized run
//   - deterministic: repeated runs reproduce output, state and trace
//
// # Deterministic Testing
//
// Every scenario runs against an in-memory SQLite store with a
// testutil.DeterministicClock and a fixed run token, so the recorded run ID
// is identical across executions. Golden snapshots hold the final state,
// hex output and canonical trace.
package harness
