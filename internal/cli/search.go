package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/placefinder/internal/intent"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Database string // journal path, overrides the config file
}

// Input commands understood by search.
const (
	cmdClear  = ":clear"
	cmdSelect = ":select"
	cmdQuit   = ":quit"
)

// NewSearchCommand creates the interactive search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search places interactively",
		Long: `Search places as you type.

Each line read from stdin is the current contents of the search box. Lines
are debounced: only text left unchanged for the debounce window is sent to
the API, and only the answer to the latest request is shown.

Commands:
  :clear      clear results and error
  :select N   print the coordinates of result N
  :quit       exit immediately

At end of input the command waits for an outstanding search to finish.

Examples:
  placefinder search
  placefinder search --db ./placefinder.db
  printf 'pizza in rome\n' | placefinder search --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal processed intents to this SQLite file")

	return cmd
}

func runSearch(ctx context.Context, opts *SearchOptions, cmd *cobra.Command) error {
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

	rt, err := newSearchRuntime(ctx, cfg, cfg.Debounce())
	if err != nil {
		return err
	}
	defer rt.Close()

	if s := rt.Session(); s != "" {
		opts.formatter(cmd).VerboseLog("journal session %s", s)
	}

	v := newView(cmd.OutOrStdout(), opts.Format == "json")
	unsubscribe := rt.store.Subscribe(v.render)
	defer unsubscribe()

	return rt.run(ctx, func(ctx context.Context) error {
		return readInput(ctx, cmd.InOrStdin(), rt, v)
	})
}

// readInput feeds stdin lines to the store until :quit, end of input or
// cancellation.
func readInput(ctx context.Context, r io.Reader, rt *searchRuntime, v *view) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// The scanner goroutine may stay blocked on a terminal read after
	// cancellation; it exits with the process.
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				if err := rt.waitIdle(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
			if quit := handleLine(line, rt, v); quit {
				return nil
			}
		}
	}
}

// handleLine applies one input line and reports whether to exit.
func handleLine(line string, rt *searchRuntime, v *view) bool {
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == cmdQuit:
		return true

	case trimmed == cmdClear:
		rt.store.Dispatch(intent.ClearResults())

	case trimmed == cmdSelect || strings.HasPrefix(trimmed, cmdSelect+" "):
		selectPlace(strings.TrimSpace(strings.TrimPrefix(trimmed, cmdSelect)), rt, v)

	default:
		rt.store.Dispatch(intent.RequestSearch(line))
	}
	return false
}

// selectPlace prints the coordinates of the 1-based result arg.
func selectPlace(arg string, rt *searchRuntime, v *view) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		v.printf("usage: %s N", cmdSelect)
		return
	}

	results := rt.store.State().PlacesData
	if n < 1 || n > len(results) {
		v.printf("no result %d (have %d)", n, len(results))
		return
	}

	p := results[n-1]
	loc, err := p.Location()
	if err != nil {
		v.printf("%s: %v", p.Address(), err)
		return
	}
	v.printf("selected %s: lat=%g lng=%g", p.Address(), loc.Lat, loc.Lng)
}
