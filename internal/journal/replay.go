package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/state"
)

// ReplayResult is a session folded back into state.
type ReplayResult struct {
	Session string            `json:"session"`
	Intents []intent.Intent   `json:"-"`
	State   state.SearchState `json:"state"`
}

// Replay reads session and folds its intents through state.Reduce from the
// initial state. The result equals the state the live store ended with.
func (j *Journal) Replay(ctx context.Context, session string) (ReplayResult, error) {
	records, err := j.ReadSession(ctx, session)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", session, err)
	}
	return fold(session, records)
}

// Verification is a replayed session checked against its snapshot.
type Verification struct {
	// Replay folds every record of the session.
	Replay ReplayResult

	// Snapshot is nil when the session has none.
	Snapshot *Snapshot

	// Matches reports whether folding the records up to Snapshot.Seq
	// encodes to exactly the snapshot state. Always false without a
	// snapshot.
	Matches bool
}

// Verify replays session and compares it with the snapshot saved when the
// session ended.
func (j *Journal) Verify(ctx context.Context, session string) (Verification, error) {
	records, err := j.ReadSession(ctx, session)
	if err != nil {
		return Verification{}, fmt.Errorf("verify %s: %w", session, err)
	}

	full, err := fold(session, records)
	if err != nil {
		return Verification{}, err
	}
	v := Verification{Replay: full}

	snap, err := j.LoadSnapshot(ctx, session)
	if errors.Is(err, ErrNoSnapshot) {
		return v, nil
	}
	if err != nil {
		return Verification{}, fmt.Errorf("verify %s: %w", session, err)
	}
	v.Snapshot = &snap

	// Records are in seq order.
	n := 0
	for n < len(records) && records[n].Seq <= snap.Seq {
		n++
	}
	prefix, err := fold(session, records[:n])
	if err != nil {
		return Verification{}, err
	}

	got, err := json.Marshal(prefix.State)
	if err != nil {
		return Verification{}, fmt.Errorf("verify %s: encode state: %w", session, err)
	}
	v.Matches = bytes.Equal(got, snap.State)

	return v, nil
}

func fold(session string, records []Record) (ReplayResult, error) {
	intents := make([]intent.Intent, 0, len(records))
	for _, rec := range records {
		in, err := rec.Intent()
		if err != nil {
			return ReplayResult{}, fmt.Errorf("replay %s: record %d (%s): %w", session, rec.Seq, rec.ID, err)
		}
		intents = append(intents, in)
	}

	return ReplayResult{
		Session: session,
		Intents: intents,
		State:   state.Fold(state.Initial(), intents...),
	}, nil
}
