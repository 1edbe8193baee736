package cli

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/state"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
}

// QueryResult is the outcome of a one-shot search.
type QueryResult struct {
	Query   string            `json:"query"`
	Session string            `json:"session,omitempty"`
	Outcome intent.Kind       `json:"outcome"`
	State   state.SearchState `json:"state"`
}

// NewQueryCommand creates the one-shot query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a single search and print the results",
		Long: `Run a single search and print the results.

The query is sent immediately, without debouncing.

Exit codes:
  0 - The API answered (possibly with an upstream error message)
  1 - The request failed
  2 - Command error (missing API key, bad config, etc.)

Examples:
  placefinder query "coffee near Alexanderplatz"
  placefinder query "Eiffel Tower" --format json --db ./placefinder.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal processed intents to this SQLite file")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, cmd *cobra.Command, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Journal = opts.Database
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return WrapExitError(ExitCommandError, "cannot search", err)
	}

	rt, err := newSearchRuntime(ctx, cfg, 0)
	if err != nil {
		return err
	}
	defer rt.Close()

	var (
		mu      sync.Mutex
		outcome intent.Kind
	)
	unsubscribe := rt.store.Subscribe(func(_ state.SearchState, in intent.Intent) {
		switch in.(type) {
		case intent.SearchSucceeded, intent.SearchFailed:
			mu.Lock()
			outcome = in.Kind()
			mu.Unlock()
		}
	})
	defer unsubscribe()

	err = rt.run(ctx, func(ctx context.Context) error {
		rt.store.Dispatch(intent.RequestSearch(text))
		return rt.waitIdle(ctx)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "search interrupted", err)
	}

	mu.Lock()
	result := QueryResult{
		Query:   text,
		Session: rt.Session(),
		Outcome: outcome,
		State:   rt.store.State(),
	}
	mu.Unlock()

	f := opts.formatter(cmd)
	if result.Outcome == intent.KindSearchFailed {
		if err := f.Error(CodeSearchFailed, result.State.ErrorMsg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "search failed: "+result.State.ErrorMsg)
	}

	if f.JSON() {
		return f.Success(result)
	}
	writeState(f.Writer, result.State)
	return nil
}
