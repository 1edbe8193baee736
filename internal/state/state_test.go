package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/placefinder/internal/intent"
)

// unknownIntent satisfies intent.Intent through embedding but is not one of
// the variants the reducer knows.
type unknownIntent struct {
	intent.ResultsCleared
}

func (unknownIntent) Kind() intent.Kind { return "teleport" }

var paris = intent.Place(`{"formatted_address":"Paris, France"}`)

func sampleStates() []SearchState {
	return []SearchState{
		Initial(),
		{IsLoading: true, ErrorMsg: "", PlacesData: []intent.Place{}},
		{IsLoading: false, ErrorMsg: "OVER_QUERY_LIMIT", PlacesData: []intent.Place{paris}},
		{IsLoading: true, ErrorMsg: "stale", PlacesData: []intent.Place{paris, paris}},
	}
}

func TestInitial(t *testing.T) {
	s := Initial()
	assert.False(t, s.IsLoading)
	assert.Empty(t, s.ErrorMsg)
	assert.NotNil(t, s.PlacesData)
	assert.Empty(t, s.PlacesData)
}

func TestReduceSearchRequested(t *testing.T) {
	for _, s := range sampleStates() {
		for _, q := range []string{"", "a", "paris"} {
			got := Reduce(s, intent.RequestSearch(q))
			assert.True(t, got.IsLoading)
			assert.Equal(t, s.ErrorMsg, got.ErrorMsg)
			assert.Equal(t, s.PlacesData, got.PlacesData)
		}
	}
}

func TestReduceSearchSucceeded(t *testing.T) {
	results := []intent.Place{paris}
	for _, s := range sampleStates() {
		got := Reduce(s, intent.SearchSuccess(intent.SearchPayload{Results: results, ErrorMessage: "partial"}))
		assert.Equal(t, SearchState{IsLoading: false, ErrorMsg: "partial", PlacesData: results}, got)
	}
}

func TestReduceSearchSucceededReplacesWholesale(t *testing.T) {
	s := SearchState{PlacesData: []intent.Place{paris, paris}}
	got := Reduce(s, intent.SearchSuccess(intent.SearchPayload{Results: []intent.Place{}}))
	assert.Empty(t, got.PlacesData)
}

func TestReduceSearchFailed(t *testing.T) {
	for _, s := range sampleStates() {
		got := Reduce(s, intent.SearchFailure("network down"))
		assert.False(t, got.IsLoading)
		assert.Equal(t, "network down", got.ErrorMsg)
		assert.Equal(t, s.PlacesData, got.PlacesData)
	}
}

func TestReduceResultsCleared(t *testing.T) {
	for _, s := range sampleStates() {
		got := Reduce(s, intent.ClearResults())
		assert.Equal(t, s.IsLoading, got.IsLoading)
		assert.Empty(t, got.ErrorMsg)
		assert.NotNil(t, got.PlacesData)
		assert.Empty(t, got.PlacesData)
	}
}

func TestReduceUnknownIsIdentity(t *testing.T) {
	for _, s := range sampleStates() {
		assert.Equal(t, s, Reduce(s, unknownIntent{}))
		assert.Equal(t, s, Reduce(s, nil))
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := SearchState{ErrorMsg: "before", PlacesData: []intent.Place{paris}}
	_ = Reduce(s, intent.ClearResults())
	_ = Reduce(s, intent.SearchFailure("after"))
	assert.Equal(t, "before", s.ErrorMsg)
	assert.Len(t, s.PlacesData, 1)
}

func TestReduceIsDeterministic(t *testing.T) {
	seq := []intent.Intent{
		intent.RequestSearch("pa"),
		intent.RequestSearch("paris"),
		intent.SearchSuccess(intent.SearchPayload{Results: []intent.Place{paris}}),
		intent.RequestSearch("xyz"),
		intent.SearchFailure("timeout"),
	}
	first := Fold(Initial(), seq...)
	second := Fold(Initial(), seq...)
	assert.Equal(t, first, second)
	assert.Equal(t, SearchState{IsLoading: false, ErrorMsg: "timeout", PlacesData: []intent.Place{paris}}, first)
}
