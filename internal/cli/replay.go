package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/placefinder/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// Snapshot check outcomes for a replayed session.
const (
	SnapshotMatch    = "match"
	SnapshotDiverged = "diverged"
	SnapshotMissing  = "missing"
)

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session     string   `json:"session"`
	Intents     int      `json:"intents"`
	IsLoading   bool     `json:"is_loading"`
	ErrorMsg    string   `json:"error_msg"`
	Addresses   []string `json:"addresses"`
	Snapshot    string   `json:"snapshot"`
	SnapshotSeq int64    `json:"snapshot_seq,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	Diverged      int                   `json:"diverged"`
	Unverified    int                   `json:"unverified"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Refold journaled sessions into state",
		Long: `Replay journaled sessions through the reducer and report the state
each one ends in.

Every journaled run saves a snapshot of its final state when it ends. The
records up to that snapshot are folded again and compared with it, so a
journal that lost or reordered an intent is reported. Sessions without a
snapshot (the run was killed) are listed as unverified.

Exit codes:
  0 - Every snapshotted session replays to its snapshot
  1 - A session replayed to a different state than its snapshot
  2 - Command error (journal not found, unknown session, etc.)

Examples:
  placefinder replay --db ./placefinder.db
  placefinder replay --db ./placefinder.db --session 0192f3c4-...
  placefinder replay --db ./placefinder.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := openExistingJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	var sessions []string
	if opts.Session != "" {
		sessions = []string{opts.Session}
	} else {
		summaries, err := j.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		for _, s := range summaries {
			sessions = append(sessions, s.ID)
		}
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions: len(sessions),
	}

	for _, session := range sessions {
		sr, err := replaySession(ctx, j, session)
		if err != nil {
			if errors.Is(err, journal.ErrSessionNotFound) {
				return WrapExitError(ExitCommandError, fmt.Sprintf("session %s not found", session), err)
			}
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", session), err)
		}
		result.Sessions = append(result.Sessions, sr)
		switch sr.Snapshot {
		case SnapshotDiverged:
			result.Diverged++
		case SnapshotMissing:
			result.Unverified++
		}
	}

	f := opts.formatter(cmd)
	if result.Diverged > 0 {
		msg := fmt.Sprintf("replay diverged from snapshot in %d session(s)", result.Diverged)
		if !f.JSON() {
			writeReplay(f.Writer, result)
		}
		if err := f.Error(CodeReplayDiverged, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	if f.JSON() {
		return f.Success(result)
	}
	writeReplay(f.Writer, result)
	return nil
}

// replaySession refolds a session and checks it against its snapshot.
func replaySession(ctx context.Context, j *journal.Journal, session string) (ReplaySessionResult, error) {
	v, err := j.Verify(ctx, session)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	addresses := make([]string, 0, len(v.Replay.State.PlacesData))
	for _, p := range v.Replay.State.PlacesData {
		addresses = append(addresses, p.Address())
	}

	sr := ReplaySessionResult{
		Session:   session,
		Intents:   len(v.Replay.Intents),
		IsLoading: v.Replay.State.IsLoading,
		ErrorMsg:  v.Replay.State.ErrorMsg,
		Addresses: addresses,
		Snapshot:  SnapshotMissing,
	}
	if v.Snapshot != nil {
		sr.SnapshotSeq = v.Snapshot.Seq
		sr.Snapshot = SnapshotDiverged
		if v.Matches {
			sr.Snapshot = SnapshotMatch
		}
	}
	return sr, nil
}

func writeReplay(w io.Writer, result ReplayResult) {
	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n\n", result.TotalSessions)
	for _, s := range result.Sessions {
		switch s.Snapshot {
		case SnapshotMatch:
			fmt.Fprintf(w, "✓ %s (%d intent(s))\n", s.Session, s.Intents)
		case SnapshotDiverged:
			fmt.Fprintf(w, "✗ %s (%d intent(s))\n", s.Session, s.Intents)
			fmt.Fprintf(w, "    snapshot at seq %d does not match replay\n", s.SnapshotSeq)
		default:
			fmt.Fprintf(w, "- %s (%d intent(s), no snapshot)\n", s.Session, s.Intents)
		}
		if s.IsLoading {
			fmt.Fprintln(w, "    loading")
		}
		if s.ErrorMsg != "" {
			fmt.Fprintf(w, "    error: %s\n", s.ErrorMsg)
		}
		for i, addr := range s.Addresses {
			fmt.Fprintf(w, "    %d. %s\n", i+1, addr)
		}
	}
}
