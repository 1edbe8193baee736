// Package state holds the search state slice and the reducer that folds
// intents into it.
package state

import "github.com/roach88/placefinder/internal/intent"

// SearchState is everything the front end renders: a spinner, an error line
// and the result list.
//
// IsLoading is true only between a SearchRequested and the SearchSucceeded or
// SearchFailed that answers it.
type SearchState struct {
	IsLoading  bool           `json:"is_loading"`
	ErrorMsg   string         `json:"error_msg"`
	PlacesData []intent.Place `json:"places_data"`
}

// Initial returns the state a store starts from.
func Initial() SearchState {
	return SearchState{
		IsLoading:  false,
		ErrorMsg:   "",
		PlacesData: []intent.Place{},
	}
}

// Reduce computes the next state. It is pure and total: unknown or nil
// intents return the state unchanged.
func Reduce(s SearchState, in intent.Intent) SearchState {
	switch v := in.(type) {
	case intent.SearchRequested:
		s.IsLoading = true
		return s

	case intent.SearchSucceeded:
		s.IsLoading = false
		s.PlacesData = v.Results
		s.ErrorMsg = v.ErrorMessage
		return s

	case intent.SearchFailed:
		s.IsLoading = false
		s.ErrorMsg = v.Message
		return s

	case intent.ResultsCleared:
		s.PlacesData = []intent.Place{}
		s.ErrorMsg = ""
		return s

	default:
		return s
	}
}

// Fold applies intents in order starting from s.
func Fold(s SearchState, intents ...intent.Intent) SearchState {
	for _, in := range intents {
		s = Reduce(s, in)
	}
	return s
}
