// Package harness provides conformance testing for federation
// synchronization behavior.
//
// The harness runs real federates with in-process gateways against one
// exchange, drives them through a scripted sequence of federation
// operations, and validates the recorded trace and final point states
// as executable contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	federation:
//	  name: orbit-sim
//	  resolution: milliseconds
//	  step_seconds: 0.25
//	federates:
//	  - physics
//	  - visuals
//	schedule:
//	  - label: checkpoint_1
//	    at_seconds: 2.5
//	script:
//	  - op: register
//	    federate: physics
//	    label: checkpoint_1
//	  - op: step_all
//	    cycles: 10
//	assertions:
//	  - type: point_state
//	    federate: physics
//	    label: checkpoint_1
//	    state: SYNCHRONIZED
//
// # Script Operations
//
// The following ops are supported:
//
//   - register: seed (if absent) and announce a point to the federation
//   - achieve: declare a point achieved regardless of its action time
//   - step: run executive cycles on one federate
//   - step_all: run executive cycles on every federate in declared order
//   - drain: apply delivered federation traffic without advancing time
//   - resign: leave the federation
//
// Each step or step_all cycle pumps a federate's delivered traffic and
// runs one executive cycle, so announces and confirmations apply on the
// cycle after the exchange sends them, the same as a paced run.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - point_state: one point's final state at one federate
//   - achieved_order: labels appear in order among a federate's achieves
//   - achieve_count: a label reached the gateway exactly N times
//   - all_synchronized: every non-errored point synchronized
//
// # Deterministic Testing
//
// Scenarios run single-goroutine over in-process gateways with a fixed
// run token and a fresh exchange per run, so the trace and the final
// states are identical across runs and golden snapshot comparison is
// byte-stable.
//
// # Usage
//
// Load a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/startup.yaml")
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
