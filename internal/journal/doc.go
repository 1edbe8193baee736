// Package journal is the durable, append-only log of processed intents.
//
// Each CLI run is a session. The store's recorder appends every intent it
// processes, in processing order, and Replay folds a session back into the
// state the user saw. The log uses SQLite in WAL mode.
//
// Ordering: records are read ORDER BY seq ASC, id COLLATE BINARY ASC. seq
// comes from a logical clock, never from wall time.
package journal
