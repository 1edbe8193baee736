// Package harness runs search scenarios deterministically.
//
// A scenario scripts what the user types and when, and what the places API
// answers for each query. The harness drives the real store and search
// pipeline on a manual clock, so debounce and switch-latest behave exactly
// as in production while time only moves when the harness moves it.
//
// # Scenario Format
//
//	name: debounce_latest_wins
//	description: "Only the settled query is requested"
//	debounce_ms: 1000
//	responses:
//	  ab:
//	    results:
//	      - formatted_address: "Abbey Road, London"
//	    delay_ms: 100
//	  xyz:
//	    fail: "dial tcp: lookup places.example: no such host"
//	steps:
//	  - at_ms: 0
//	    search: "a"
//	  - at_ms: 200
//	    search: "ab"
//	assertions:
//	  - type: requests
//	    queries: ["ab"]
//	    at_ms: [1200]
//	  - type: final_state
//	    state:
//	      is_loading: false
//	      places: 1
//
// A response may also set error_message and status (returned on the
// success path) or http_status (a non-2xx failure). Queries without a
// scripted response get an empty result list.
//
// # Assertion Types
//
//   - requests: the exact queries sent to the API, optionally with times
//   - trace_contains: an intent of the given kind (and query) was processed
//   - trace_order: kinds appear in the given order
//   - trace_count: a kind was processed exactly N times
//   - final_state: loading flag, error message, result count or addresses
//
// # Determinism
//
// Every processed intent is journaled to an in-memory SQLite journal under
// a fixed session, and the harness checks that replaying the journal
// reproduces the live final state. Golden snapshots of the trace live in
// testdata/golden.
package harness
