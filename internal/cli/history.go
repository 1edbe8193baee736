package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Session  string // optional - list this session's intents
}

// HistoryEntry is one journaled intent in a session listing.
type HistoryEntry struct {
	Seq        int64         `json:"seq"`
	Kind       intent.Kind   `json:"kind"`
	Intent     intent.Intent `json:"intent"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled sessions or one session's intents",
		Long: `List journaled search sessions, or the intents of one session in
processing order.

Exit codes:
  0 - Success
  2 - Command error (journal not found, unknown session, etc.)

Examples:
  placefinder history --db ./placefinder.db
  placefinder history --db ./placefinder.db --session 0192f3c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "list this session's intents")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := openExistingJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	f := opts.formatter(cmd)

	if opts.Session == "" {
		sessions, err := j.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		if f.JSON() {
			return f.Success(sessions)
		}
		writeSessions(f.Writer, sessions)
		return nil
	}

	records, err := j.ReadSession(ctx, opts.Session)
	if err != nil {
		if errors.Is(err, journal.ErrSessionNotFound) {
			_ = f.Error(CodeSessionMissing, fmt.Sprintf("session %s not found", opts.Session), nil)
		}
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		in, err := rec.Intent()
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to decode record %d", rec.Seq), err)
		}
		entries = append(entries, HistoryEntry{
			Seq:        rec.Seq,
			Kind:       rec.Kind,
			Intent:     in,
			RecordedAt: rec.RecordedAt,
		})
	}

	if f.JSON() {
		return f.Success(entries)
	}
	writeEntries(f.Writer, opts.Session, entries)
	return nil
}

// openExistingJournal opens path without creating it.
func openExistingJournal(path string) (*journal.Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

func writeSessions(w io.Writer, sessions []journal.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return
	}
	fmt.Fprintf(w, "%d session(s)\n\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  started %s  %d intent(s)\n",
			s.ID, s.StartedAt.Format(time.RFC3339), s.Records)
	}
}

func writeEntries(w io.Writer, session string, entries []HistoryEntry) {
	fmt.Fprintf(w, "Session %s: %d intent(s)\n\n", session, len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "%4d  %-16s  %s\n", e.Seq, e.Kind, describeIntent(e.Intent))
	}
}

// describeIntent summarizes an intent on one line.
func describeIntent(in intent.Intent) string {
	switch v := in.(type) {
	case intent.SearchRequested:
		return fmt.Sprintf("%q", v.QueryText)
	case intent.SearchSucceeded:
		if v.ErrorMessage != "" {
			return fmt.Sprintf("%d result(s), error_message=%q", len(v.Results), v.ErrorMessage)
		}
		return fmt.Sprintf("%d result(s)", len(v.Results))
	case intent.SearchFailed:
		return v.Message
	default:
		return ""
	}
}
