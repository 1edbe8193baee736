package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []TraceEvent{
		{Seq: 1, AtMS: 0, Kind: "search_requested", Query: "xyz", Loading: true},
		{Seq: 2, AtMS: 1000, Kind: "search_failed", Message: "boom"},
		{Seq: 3, AtMS: 2000, Kind: "search_requested", Query: "paris", Loading: true},
		{Seq: 4, AtMS: 3000, Kind: "search_succeeded", Results: 1},
	}
	r.Requests = []Request{{Query: "xyz", AtMS: 1000}, {Query: "paris", AtMS: 3000}}
	r.State = FinalState{Addresses: []string{"Paris, France"}}
	return r
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func boolPtr(b bool) *bool    { return &b }

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"requests match", Assertion{Type: AssertRequests, Queries: []string{"xyz", "paris"}}, ""},
		{"requests with times", Assertion{Type: AssertRequests, Queries: []string{"xyz", "paris"}, AtMS: []int64{1000, 3000}}, ""},
		{"requests wrong times", Assertion{Type: AssertRequests, Queries: []string{"xyz", "paris"}, AtMS: []int64{1000, 2000}}, "requests at [1000 2000] ms"},
		{"requests mismatch", Assertion{Type: AssertRequests, Queries: []string{"paris"}}, `requests ["paris"]`},
		{"no requests expected", Assertion{Type: AssertRequests}, "requests []"},

		{"contains kind", Assertion{Type: AssertTraceContains, Kind: "search_failed"}, ""},
		{"contains query", Assertion{Type: AssertTraceContains, Kind: "search_requested", Query: strPtr("paris")}, ""},
		{"contains missing query", Assertion{Type: AssertTraceContains, Kind: "search_requested", Query: strPtr("rome")}, `with query "rome"`},
		{"contains missing kind", Assertion{Type: AssertTraceContains, Kind: "results_cleared"}, "not found in trace"},

		{"order holds", Assertion{Type: AssertTraceOrder, Kinds: []string{"search_requested", "search_failed", "search_succeeded"}}, ""},
		{"order repeated kinds", Assertion{Type: AssertTraceOrder, Kinds: []string{"search_requested", "search_requested", "search_succeeded"}}, ""},
		{"order broken", Assertion{Type: AssertTraceOrder, Kinds: []string{"search_succeeded", "search_failed"}}, "search_failed not found"},

		{"count", Assertion{Type: AssertTraceCount, Kind: "search_requested", Count: 2}, ""},
		{"count zero", Assertion{Type: AssertTraceCount, Kind: "results_cleared", Count: 0}, ""},
		{"count wrong", Assertion{Type: AssertTraceCount, Kind: "search_failed", Count: 2}, "processed 1 times"},

		{"state match", Assertion{Type: AssertFinalState, State: &StateExpect{
			IsLoading: boolPtr(false), ErrorMsg: strPtr(""), Places: intPtr(1), Addresses: []string{"Paris, France"},
		}}, ""},
		{"state loading", Assertion{Type: AssertFinalState, State: &StateExpect{IsLoading: boolPtr(true)}}, "is_loading: want true, got false"},
		{"state error", Assertion{Type: AssertFinalState, State: &StateExpect{ErrorMsg: strPtr("boom")}}, `error_msg: want "boom", got ""`},
		{"state addresses", Assertion{Type: AssertFinalState, State: &StateExpect{Addresses: []string{"Rome"}}}, "addresses: want"},

		{"unknown type", Assertion{Type: "vibes"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			if tt.wantErr == "" {
				assert.Empty(t, failures)
				return
			}
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], tt.wantErr)
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "x",
		Actual:   "y",
		Trace:    sampleResult().Trace,
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, `search_requested "paris"`)
	assert.Contains(t, msg, `message="boom"`)
}

func TestSnapshot_Marshal(t *testing.T) {
	data, err := Snapshot("tiny", &Result{
		Requests: []Request{},
		Trace:    []TraceEvent{{Seq: 1, Kind: "results_cleared"}},
		State:    FinalState{Addresses: []string{}},
	}).Marshal()
	require.NoError(t, err)

	assert.Equal(t, `{
  "scenario_name": "tiny",
  "requests": [],
  "trace": [
    {
      "seq": 1,
      "at_ms": 0,
      "kind": "results_cleared",
      "loading": false
    }
  ],
  "state": {
    "is_loading": false,
    "error_msg": "",
    "addresses": []
  }
}
`, string(data))
}
