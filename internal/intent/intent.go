package intent

// Kind discriminates intent variants in logs and serialized envelopes.
type Kind string

const (
	KindSearchRequested Kind = "search_requested"
	KindSearchSucceeded Kind = "search_succeeded"
	KindSearchFailed    Kind = "search_failed"
	KindResultsCleared  Kind = "results_cleared"
)

// Kinds lists every known kind in declaration order.
var Kinds = []Kind{
	KindSearchRequested,
	KindSearchSucceeded,
	KindSearchFailed,
	KindResultsCleared,
}

// Intent is the closed set of store inputs.
type Intent interface {
	Kind() Kind

	// sealed restricts implementers to this package.
	sealed()
}

// SearchRequested asks for places matching QueryText.
type SearchRequested struct {
	QueryText string `json:"query_text"`
}

// SearchSucceeded carries a decoded places response.
// ErrorMessage is the upstream error_message, empty on a clean success.
type SearchSucceeded struct {
	Results      []Place `json:"results"`
	ErrorMessage string  `json:"error_message"`
}

// SearchFailed reports a request that never produced a usable response.
type SearchFailed struct {
	Message string `json:"message"`
}

// ResultsCleared empties the result list and error line.
type ResultsCleared struct{}

func (SearchRequested) Kind() Kind { return KindSearchRequested }
func (SearchSucceeded) Kind() Kind { return KindSearchSucceeded }
func (SearchFailed) Kind() Kind    { return KindSearchFailed }
func (ResultsCleared) Kind() Kind  { return KindResultsCleared }

func (SearchRequested) sealed() {}
func (SearchSucceeded) sealed() {}
func (SearchFailed) sealed()    {}
func (ResultsCleared) sealed()  {}

// SearchPayload is the body of a successful places response as seen by the
// store: the result list and the optional upstream error message.
type SearchPayload struct {
	Results      []Place `json:"results"`
	ErrorMessage string  `json:"error_message"`
}

// RequestSearch builds a SearchRequested. Any string is accepted.
func RequestSearch(queryText string) SearchRequested {
	return SearchRequested{QueryText: queryText}
}

// SearchSuccess builds a SearchSucceeded from a response payload.
func SearchSuccess(payload SearchPayload) SearchSucceeded {
	return SearchSucceeded{
		Results:      payload.Results,
		ErrorMessage: payload.ErrorMessage,
	}
}

// SearchFailure builds a SearchFailed.
func SearchFailure(message string) SearchFailed {
	return SearchFailed{Message: message}
}

// ClearResults builds a ResultsCleared.
func ClearResults() ResultsCleared {
	return ResultsCleared{}
}
