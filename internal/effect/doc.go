// Package effect implements the side effects the store delegates to.
//
// The only effect is the search pipeline: it observes SearchRequested
// intents, debounces them, issues one places request per settled query and
// dispatches the outcome back into the store.
//
// # Debounce
//
// Each SearchRequested restarts a single timer. Only the query whose timer
// runs out is requested; superseded queries never reach the network.
//
// # Switch-latest
//
// Settling a query cancels the request in flight and advances a generation
// counter. A result carrying an older generation is dropped, so the store
// only ever sees the outcome of the most recently started request.
//
// # Error boundary
//
// Every failure (transport, status, decode, even a panicking searcher)
// becomes a SearchFailed intent for that request only. The pipeline keeps
// listening, so the next search works normally.
package effect
