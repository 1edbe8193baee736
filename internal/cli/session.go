package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/placefinder/internal/config"
	"github.com/roach88/placefinder/internal/effect"
	"github.com/roach88/placefinder/internal/journal"
	"github.com/roach88/placefinder/internal/places"
	"github.com/roach88/placefinder/internal/store"
)

// idlePollInterval is how often waitIdle re-checks the loop and pipeline.
const idlePollInterval = 10 * time.Millisecond

// searchRuntime is a store wired to the places API for one command run,
// optionally journaling into SQLite.
type searchRuntime struct {
	store    *store.Store
	pipeline *effect.SearchPipeline
	journal  *journal.Journal
	recorder *journal.Recorder
}

// newSearchRuntime builds the runtime from cfg. A non-empty cfg.Journal
// opens (or creates) the journal and records into a fresh session.
func newSearchRuntime(ctx context.Context, cfg config.Config, debounce time.Duration) (*searchRuntime, error) {
	client := places.New(cfg.Places(), places.WithRateLimit(cfg.RateLimit, cfg.RateBurst))
	rt := &searchRuntime{
		pipeline: effect.NewSearchPipeline(client, effect.WithDebounce(debounce)),
	}

	opts := []store.Option{store.WithEffects(rt.pipeline)}
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			rt.pipeline.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		rec, err := j.Recorder(ctx, journal.UUIDv7Generator{}.Generate())
		if err != nil {
			rt.pipeline.Close()
			_ = j.Close()
			return nil, WrapExitError(ExitCommandError, "failed to start journal session", err)
		}
		rt.journal = j
		rt.recorder = rec
		opts = append(opts, store.WithRecorder(rec))
		slog.Debug("journaling session", "session", rec.Session(), "path", cfg.Journal)
	}

	rt.store = store.New(opts...)
	return rt, nil
}

// Session returns the journal session token, or "" when not journaling.
func (rt *searchRuntime) Session() string {
	if rt.recorder == nil {
		return ""
	}
	return rt.recorder.Session()
}

// run runs the store loop next to driver. The loop stops once driver
// returns; intents still queued at that point are processed first. A
// journaled session is then snapshotted with the state the loop ended in.
func (rt *searchRuntime) run(ctx context.Context, driver func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := rt.store.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		defer rt.store.Stop()
		return driver(gctx)
	})

	err := g.Wait()
	rt.snapshot(context.WithoutCancel(ctx))
	return err
}

func (rt *searchRuntime) snapshot(ctx context.Context) {
	slog.Debug("store loop stopped", "session", rt.Session(), "processed", rt.store.Processed())
	if rt.recorder == nil {
		return
	}
	if err := rt.recorder.Snapshot(ctx, rt.store.State()); err != nil {
		slog.Error("failed to snapshot session", "session", rt.Session(), "error", err)
	}
}

// waitIdle blocks until every dispatched search has been answered and
// processed, or ctx is done.
//
// Only SearchRequested starts pipeline work, so once the loop is quiescent
// after the last one and the pipeline is idle, nothing new can arrive.
func (rt *searchRuntime) waitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		if rt.store.Quiescent() && rt.pipeline.Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops the pipeline and closes the journal.
func (rt *searchRuntime) Close() error {
	rt.pipeline.Close()
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			return fmt.Errorf("close journal: %w", err)
		}
	}
	return nil
}
