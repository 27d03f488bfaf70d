// Package harness runs declarative sequence scenarios.
//
// A scenario declares the shape of a sequence, lists the calls replayed
// against it, and states the expected outcome. The harness builds the
// shape with the real sequence API, so scenarios double as executable
// examples of verification rules.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: send_ack_loop
//	description: "Two passes through a send/ack loop"
//	mode: goroutine          # or flow
//	sequence:
//	  - step: open
//	  - loop:
//	      times: { exactly: 2 }
//	      body:
//	        - step: send
//	        - step: ack
//	  - step: close
//	    times: at_most_once
//	calls: [open, send, ack, send, ack, close]
//	expect:
//	  pass: true
//
// A failing expectation names the first error:
//
//	expect:
//	  pass: false
//	  code: INCOMPLETE
//	  message_contains: "invocations for ack were not completed"
//
// The same structure can be written in CUE (.cue files), which allows
// shared definitions between scenarios. CUE values must be concrete.
//
// # Times
//
// Steps default to once, loops to any number of passes. Names are once,
// never, at_most_once, at_least_once and any. Bounds are written as
// { exactly: n } or { min: a, max: b } with either bound optional.
//
// # Deterministic Testing
//
// Every scenario runs with a fixed sequence id (scenario.sequence_id or
// DefaultSequenceID), so Result.Render is byte-identical across runs and
// suitable for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/send_ack_loop.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, m := range result.Mismatches {
//	        log.Println(m)
//	    }
//	}
package harness
