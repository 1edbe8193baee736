package harness

import (
	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/state"
)

// TraceEvent is one processed intent and the state it produced.
type TraceEvent struct {
	Seq     int64       `json:"seq"`
	AtMS    int64       `json:"at_ms"`
	Kind    intent.Kind `json:"kind"`
	Query   string      `json:"query,omitempty"`
	Results int         `json:"results,omitempty"`
	Message string      `json:"message,omitempty"`
	Loading bool        `json:"loading"`
}

// Request is one call the pipeline made to the places API.
type Request struct {
	Query string `json:"query"`
	AtMS  int64  `json:"at_ms"`
}

// FinalState is the rendered view of the store's last state.
type FinalState struct {
	IsLoading bool     `json:"is_loading"`
	ErrorMsg  string   `json:"error_msg"`
	Addresses []string `json:"addresses"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	Trace    []TraceEvent `json:"trace"`
	Requests []Request    `json:"requests"`
	State    FinalState   `json:"state"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Requests: []Request{},
		State:    FinalState{Addresses: []string{}},
		Errors:   []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// newTraceEvent describes in and the state it produced.
func newTraceEvent(seq, atMS int64, s state.SearchState, in intent.Intent) TraceEvent {
	ev := TraceEvent{
		Seq:     seq,
		AtMS:    atMS,
		Kind:    in.Kind(),
		Loading: s.IsLoading,
	}
	switch v := in.(type) {
	case intent.SearchRequested:
		ev.Query = v.QueryText
	case intent.SearchSucceeded:
		ev.Results = len(v.Results)
		ev.Message = v.ErrorMessage
	case intent.SearchFailed:
		ev.Message = v.Message
	}
	return ev
}

// finalState renders s for results and snapshots.
func finalState(s state.SearchState) FinalState {
	addrs := make([]string, 0, len(s.PlacesData))
	for _, p := range s.PlacesData {
		addrs = append(addrs, p.Address())
	}
	return FinalState{
		IsLoading: s.IsLoading,
		ErrorMsg:  s.ErrorMsg,
		Addresses: addrs,
	}
}
