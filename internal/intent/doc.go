// Package intent defines the intents that drive the search store.
//
// An intent is an immutable value describing something that happened or is
// requested. The set of intents is closed: Intent carries an unexported
// marker method, so only the four variants declared here satisfy it.
// Consumers branch with a type switch on the concrete type and never inspect
// payload fields through the Kind string.
//
//	SearchRequested  - the input text changed
//	SearchSucceeded  - the places API answered (possibly with an error_message)
//	SearchFailed     - the request failed (transport, status or decode)
//	ResultsCleared   - the result list was dismissed
//
// Kind strings exist for logging and for the JSON envelope used by the
// journal; they are stable and must not be renamed.
package intent
