// Package harness provides scenario testing for behavioral programs.
//
// The harness builds an engine from a program, offers it a list of
// triggers, records everything into an isolated in-memory store, and
// evaluates assertions against the recorded selections.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: hot_cold
//	description: "Hot and cold water alternate"
//	program_file: ../programs/hot_cold.yaml   # or an inline program:
//	seed: 1
//	triggers:
//	  - type: start
//	    detail: {by: test}
//	    public: true
//	expect_feedback: [start, hot, cold]
//	assertions:
//	  - type: selected_order
//	    events: [hot, cold, hot]
//	  - type: selected_count
//	    event: hot
//	    count: 3
//
// # Assertion Types
//
//   - selected_order: events appear in the selections in this order,
//     not necessarily consecutively
//   - selected_sequence: the selections are exactly these events
//   - selected_count: event is selected exactly count times
//   - never_selected: event is never selected
//   - thread_absent: thread is no longer registered at the end
//   - thread_present: thread is still registered at the end
//   - diagnostic_count: exactly count diagnostics of kind were reported
//
// # Deterministic Testing
//
// All scenarios execute with a fixed run ID, a seeded random source
// (scenario.seed, default 0) and a fresh in-memory SQLite database, so the
// same scenario yields byte-identical traces for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/hot_cold.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
