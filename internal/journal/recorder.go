package journal

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/placefinder/internal/clock"
	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/state"
)

// IDGenerator produces record IDs and session tokens.
// Implemented by UUIDv7Generator (production) and fixed generators in tests.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 strings.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Recorder appends processed intents to one session. It satisfies the
// store's recorder interface.
//
// Record is called from the store loop only, so seq values are assigned in
// processing order.
type Recorder struct {
	journal *Journal
	session string
	seq     *clock.Seq
	ids     IDGenerator
	clock   clock.Clock
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithIDGenerator replaces UUIDv7Generator for record IDs.
func WithIDGenerator(g IDGenerator) RecorderOption {
	return func(r *Recorder) {
		r.ids = g
	}
}

// WithWallClock sets the clock used for recorded_at.
func WithWallClock(c clock.Clock) RecorderOption {
	return func(r *Recorder) {
		r.clock = c
	}
}

// Recorder starts (or resumes) session and returns a recorder for it.
// Resuming continues numbering after the session's last seq.
func (j *Journal) Recorder(ctx context.Context, session string, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{
		journal: j,
		session: session,
		ids:     UUIDv7Generator{},
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := j.StartSession(ctx, session, r.clock.Now()); err != nil {
		return nil, err
	}
	last, err := j.LastSeq(ctx, session)
	if err != nil {
		return nil, err
	}
	r.seq = clock.NewSeqAt(last)

	return r, nil
}

// Session returns the session token.
func (r *Recorder) Session() string {
	return r.session
}

// Record appends in as the session's next record.
func (r *Recorder) Record(ctx context.Context, in intent.Intent) error {
	rec, err := NewRecord(r.ids.Generate(), r.session, r.seq.Next(), in, r.clock.Now())
	if err != nil {
		return fmt.Errorf("record %s: %w", r.session, err)
	}
	return r.journal.Append(ctx, rec)
}

// Snapshot saves s as the session's final state, covering every seq issued
// so far. Call it after the store loop has stopped.
func (r *Recorder) Snapshot(ctx context.Context, s state.SearchState) error {
	return r.journal.SaveSnapshot(ctx, r.session, r.seq.Current(), s, r.clock.Now())
}
