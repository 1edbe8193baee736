package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/placefinder/internal/state"
)

// ErrNoSnapshot is returned when a session ended without saving a snapshot,
// for example because the process was killed.
var ErrNoSnapshot = errors.New("no snapshot")

// Snapshot is the state the live store held when a session ended.
type Snapshot struct {
	Session string          `json:"session"`
	Seq     int64           `json:"seq"` // last record seq folded into State
	State   json.RawMessage `json:"state"`
	TakenAt time.Time       `json:"taken_at"`
}

// SaveSnapshot stores s as the state of session after record seq. A later
// snapshot of the same session replaces the earlier one.
func (j *Journal) SaveSnapshot(ctx context.Context, session string, seq int64, s state.SearchState, at time.Time) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, seq, state, taken_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			seq = excluded.seq,
			state = excluded.state,
			taken_at = excluded.taken_at
	`, session, seq, string(data), at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the snapshot of session. Returns ErrSessionNotFound
// for an unknown session and ErrNoSnapshot when none was saved.
func (j *Journal) LoadSnapshot(ctx context.Context, session string) (Snapshot, error) {
	if err := j.sessionExists(ctx, session); err != nil {
		return Snapshot{}, err
	}

	var (
		snap    Snapshot
		data    string
		takenAt string
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT session_id, seq, state, taken_at
		FROM snapshots
		WHERE session_id = ?
	`, session).Scan(&snap.Session, &snap.Seq, &data, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, session)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	snap.State = json.RawMessage(data)
	snap.TakenAt, err = time.Parse(timeLayout, takenAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse taken_at of %s: %w", session, err)
	}
	return snap, nil
}
