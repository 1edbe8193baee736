package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/placefinder/internal/intent"
)

// timeLayout is how wall times are stored. Fixed width keeps TEXT ordering
// consistent with time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one journaled intent.
type Record struct {
	ID         string          `json:"id"`
	Session    string          `json:"session"`
	Seq        int64           `json:"seq"`
	Kind       intent.Kind     `json:"kind"`
	Payload    json.RawMessage `json:"payload"` // intent envelope
	RecordedAt time.Time       `json:"recorded_at"`
}

// NewRecord encodes in as a record.
func NewRecord(id, session string, seq int64, in intent.Intent, at time.Time) (Record, error) {
	payload, err := intent.Marshal(in)
	if err != nil {
		return Record{}, fmt.Errorf("new record: %w", err)
	}
	return Record{
		ID:         id,
		Session:    session,
		Seq:        seq,
		Kind:       in.Kind(),
		Payload:    payload,
		RecordedAt: at.UTC(),
	}, nil
}

// Intent decodes the record's payload.
func (r Record) Intent() (intent.Intent, error) {
	return intent.Unmarshal(r.Payload)
}

// SessionSummary describes one session for listings.
type SessionSummary struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Records   int       `json:"records"`
	LastSeq   int64     `json:"last_seq"`
}

// StartSession registers session. Registering an existing session is a
// no-op and keeps its original start time.
func (j *Journal) StartSession(ctx context.Context, session string, at time.Time) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, session, at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// Append writes rec. Duplicate IDs are silently ignored; the session must
// have been started.
func (j *Journal) Append(ctx context.Context, rec Record) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO records (id, session_id, seq, kind, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Session,
		rec.Seq,
		string(rec.Kind),
		string(rec.Payload),
		rec.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// ReadSession returns the session's records in processing order.
// Returns ErrSessionNotFound for an unknown session and an empty slice for
// a session with no records.
func (j *Journal) ReadSession(ctx context.Context, session string) ([]Record, error) {
	if err := j.sessionExists(ctx, session); err != nil {
		return nil, err
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session_id, seq, kind, payload, recorded_at
		FROM records
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec        Record
			kind       string
			payload    string
			recordedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Session, &rec.Seq, &kind, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = intent.Kind(kind)
		rec.Payload = json.RawMessage(payload)
		rec.RecordedAt, err = time.Parse(timeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at of %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// ListSessions returns every session, oldest first.
func (j *Journal) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, COUNT(r.id), COALESCE(MAX(r.seq), 0)
		FROM sessions s
		LEFT JOIN records r ON r.session_id = s.id
		GROUP BY s.id, s.started_at
		ORDER BY s.started_at ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionSummary{}
	for rows.Next() {
		var (
			sum       SessionSummary
			startedAt string
		)
		if err := rows.Scan(&sum.ID, &startedAt, &sum.Records, &sum.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at of %s: %w", sum.ID, err)
		}
		sessions = append(sessions, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// LastSeq returns the highest seq recorded for session, or 0.
func (j *Journal) LastSeq(ctx context.Context, session string) (int64, error) {
	var seq int64
	err := j.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM records WHERE session_id = ?
	`, session).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

func (j *Journal) sessionExists(ctx context.Context, session string) error {
	var id string
	err := j.db.QueryRowContext(ctx, `SELECT id FROM sessions WHERE id = ?`, session).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session)
	}
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	return nil
}
