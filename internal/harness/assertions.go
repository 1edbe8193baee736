package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %6dms %s", ev.Seq, ev.AtMS, ev.Kind)
		if ev.Query != "" {
			fmt.Fprintf(&buf, " %q", ev.Query)
		}
		if ev.Message != "" {
			fmt.Fprintf(&buf, " message=%q", ev.Message)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertRequests:
		return assertRequests(result, a)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertRequests checks the exact list of queries sent to the API and,
// if given, their virtual times.
func assertRequests(result *Result, a Assertion) error {
	queries := make([]string, len(result.Requests))
	times := make([]int64, len(result.Requests))
	for i, r := range result.Requests {
		queries[i] = r.Query
		times[i] = r.AtMS
	}

	want := a.Queries
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(queries, want) {
		return &AssertionError{
			Type:     AssertRequests,
			Expected: fmt.Sprintf("requests %q", want),
			Actual:   fmt.Sprintf("requests %q", queries),
			Trace:    result.Trace,
		}
	}

	if len(a.AtMS) > 0 && !slices.Equal(times, a.AtMS) {
		return &AssertionError{
			Type:     AssertRequests,
			Expected: fmt.Sprintf("requests at %v ms", a.AtMS),
			Actual:   fmt.Sprintf("requests at %v ms", times),
			Trace:    result.Trace,
		}
	}

	return nil
}

// assertTraceContains checks that an intent of the given kind (and query,
// if set) was processed.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if string(ev.Kind) != a.Kind {
			continue
		}
		if a.Query == nil || ev.Query == *a.Query {
			return nil
		}
	}

	expected := a.Kind
	if a.Query != nil {
		expected = fmt.Sprintf("%s with query %q", a.Kind, *a.Query)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the kinds appear in order. Intervening
// intents are allowed; each expected kind is matched after the previous.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, kind := range a.Kinds {
		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if string(ev.Kind) == kind {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
				Actual:   fmt.Sprintf("%s not found after position %d", kind, pos),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that a kind was processed exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if string(ev.Kind) == a.Kind {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s processed %d times", a.Kind, a.Count),
			Actual:   fmt.Sprintf("processed %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares the set fields of a.State.
func assertFinalState(result *Result, a Assertion) error {
	got := result.State
	want := a.State
	var mismatches []string

	if want.IsLoading != nil && got.IsLoading != *want.IsLoading {
		mismatches = append(mismatches, fmt.Sprintf("is_loading: want %t, got %t", *want.IsLoading, got.IsLoading))
	}
	if want.ErrorMsg != nil && got.ErrorMsg != *want.ErrorMsg {
		mismatches = append(mismatches, fmt.Sprintf("error_msg: want %q, got %q", *want.ErrorMsg, got.ErrorMsg))
	}
	if want.Places != nil && len(got.Addresses) != *want.Places {
		mismatches = append(mismatches, fmt.Sprintf("places: want %d, got %d", *want.Places, len(got.Addresses)))
	}
	if want.Addresses != nil && !slices.Equal(got.Addresses, want.Addresses) {
		mismatches = append(mismatches, fmt.Sprintf("addresses: want %q, got %q", want.Addresses, got.Addresses))
	}

	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "final state to match",
			Actual:   strings.Join(mismatches, "; "),
			Trace:    result.Trace,
		}
	}
	return nil
}
