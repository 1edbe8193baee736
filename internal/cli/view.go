package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/state"
)

// view renders store updates. It is a store listener and is also written
// to by the input goroutine, so writes are serialized.
type view struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

func newView(w io.Writer, jsonOutput bool) *view {
	return &view{w: w, json: jsonOutput}
}

// viewEvent is one line of JSON output.
type viewEvent struct {
	Intent json.RawMessage   `json:"intent"`
	State  state.SearchState `json:"state"`
}

// render is called by the store after every processed intent.
func (v *view) render(s state.SearchState, in intent.Intent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.json {
		env, err := intent.Marshal(in)
		if err != nil {
			slog.Error("render intent", "kind", in.Kind(), "error", err)
			return
		}
		if err := json.NewEncoder(v.w).Encode(viewEvent{Intent: env, State: s}); err != nil {
			slog.Error("render intent", "kind", in.Kind(), "error", err)
		}
		return
	}

	switch req := in.(type) {
	case intent.SearchRequested:
		fmt.Fprintf(v.w, "searching %q...\n", req.QueryText)
	default:
		writeState(v.w, s)
	}
}

// printf writes a line that is not a state update, such as a selection.
// JSON output wraps it as {"message": ...}.
func (v *view) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if v.json {
		_ = json.NewEncoder(v.w).Encode(map[string]string{"message": msg})
		return
	}
	fmt.Fprintln(v.w, msg)
}

// writeState prints the spinner, the error line and the results.
func writeState(w io.Writer, s state.SearchState) {
	if s.IsLoading {
		fmt.Fprintln(w, "searching...")
	}
	if s.ErrorMsg != "" {
		fmt.Fprintf(w, "error: %s\n", s.ErrorMsg)
	}
	if len(s.PlacesData) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, p := range s.PlacesData {
		fmt.Fprintf(w, "%3d. %s\n", i+1, p.Address())
	}
}
