// Package harness runs ritual scenarios as executable contract tests.
//
// A scenario walks one visitor through the guardian with an in-memory store
// and a fake clock, so every huella and score in the trace is reproducible.
//
// # Scenario Format
//
//	name: offer_then_matching_need
//	description: "A need that shares two tokens with an offer matches it"
//	steps:
//	  - invoke: start
//	  - invoke: offer
//	    text: ofrezco presencia y ayuda
//	    dwell: 45
//	    expect: { case: Verified, phase: needing }
//	  - invoke: advance
//	    duration: 48h
//	  - invoke: need
//	    text: necesito tiempo y apoyo para mi familia
//	    dwell: 45
//	    expect: { case: Matched, phase: matched }
//	assertions:
//	  - type: trace_count
//	    step: need
//	    case: Matched
//	    count: 1
//	  - type: final_state
//	    expect: { phase: matched, matches: 1 }
//
// # Step Kinds
//
//   - start: open the dialogue (prelude in the activity log)
//   - offer, need: submit text with a dwell time in seconds
//   - submit: route text by phase, like the guardian does
//   - signal: leave a signal for whoever offered
//   - advance: move the fake clock by a Go duration
//
// # Outcome Cases
//
// Started, Verified, Rejected, Deferred (a need before any offer), Matched,
// Unmatched, SignalLeft, Advanced.
//
// # Assertion Types
//
//   - trace_contains: a step was invoked with matching args
//   - trace_order: steps first appear in the given order
//   - trace_count: a step completed N times, optionally with a given case
//   - final_state: subset match on the final visitor state
//
// Golden snapshots of the trace and state live in testdata/golden and are
// compared with goldie.
package harness
