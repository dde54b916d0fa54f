// Package harness provides conformance testing for relay chain scripts.
//
// The harness loads scenarios, executes their scripts on the real runner,
// and validates the resulting trace against expectations and assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	run_token: run-fixed-001
//	script:
//	  name: countup
//	  start: 0
//	  steps:
//	    - op: increment
//	    - op: add
//	      amount: 2
//	expect:
//	  status: ok
//	  final_value: 3
//	assertions:
//	  - type: trace_lines
//	    lines: ["begin", "1", "3", "end"]
//	  - type: trace_count
//	    kind: value
//	    count: 2
//
// A scenario names its script either inline (script:) or by file
// (script_file: path/to/script.cue). Exactly one of the two is required.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_lines: Verifies the exact sequence of emitted lines
//   - trace_contains: Verifies a line appears in the trace
//   - trace_count: Verifies a line or emission kind appears exactly N times
//   - stamps_monotonic: Verifies seq is contiguous from 1 and turns strictly increase
//   - stored_trace: Verifies the persisted trace matches the captured one
//
// # Deterministic Testing
//
// All scenarios execute with fixed run tokens and the loop's logical turn
// counter, so re-runs produce identical traces and golden snapshot
// comparison is byte-stable.
//
// The harness uses:
//   - Fixed run tokens (testutil.FixedTokenGenerator, from scenario.run_token)
//   - A capture emitter instead of stdout
//   - In-memory SQLite database (isolated per scenario)
//
// # Usage
//
// Load a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/countup.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Execute it:
//
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
