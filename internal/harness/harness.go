package harness

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"time"

	"github.com/roach88/placefinder/internal/clock"
	"github.com/roach88/placefinder/internal/effect"
	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/journal"
	"github.com/roach88/placefinder/internal/state"
	"github.com/roach88/placefinder/internal/store"
	"github.com/roach88/placefinder/internal/testutil"
)

// settleTimeout bounds the real time the harness waits for fetch
// goroutines to park or finish after each clock move.
const settleTimeout = 5 * time.Second

// maxTimerFirings guards against scenarios whose timers never run out.
const maxTimerFirings = 10000

// Harness executes one scenario.
//
// All time is virtual: debounce timers and response delays live on a
// ManualClock that only the harness advances. After every move the harness
// waits until each fetch goroutine has either finished or parked on the
// clock, and drains the store, so the trace is identical on every run.
type Harness struct {
	clock    *testutil.ManualClock
	searcher *scriptedSearcher
	pipeline *effect.SearchPipeline
	store    *store.Store
	journal  *journal.Journal
	session  string
	seq      *clock.Seq
	result   *Result
}

// Run executes a scenario and returns the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext executes a scenario in a fresh in-memory journal.
//
// Execution flow:
//  1. Wire store, pipeline and scripted searcher on a manual clock
//  2. Apply each step at its virtual time
//  3. Advance through remaining timers until nothing is pending
//  4. Check journal replay against the live state
//  5. Evaluate assertions
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	clk := testutil.NewManualClock()
	session := testutil.NewFixedSessionGenerator(scenario.Name).Generate()

	rec, err := j.Recorder(ctx, session,
		journal.WithIDGenerator(testutil.NewSequenceGenerator("rec")),
		journal.WithWallClock(clk),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	opts := []effect.Option{effect.WithClock(clk)}
	if scenario.DebounceMS != nil {
		opts = append(opts, effect.WithDebounce(time.Duration(*scenario.DebounceMS)*time.Millisecond))
	}
	searcher := newScriptedSearcher(clk, scenario.Responses)
	pipeline := effect.NewSearchPipeline(searcher, opts...)
	defer pipeline.Close()

	h := &Harness{
		clock:    clk,
		searcher: searcher,
		pipeline: pipeline,
		store:    store.New(store.WithEffects(pipeline), store.WithRecorder(rec)),
		journal:  j,
		session:  session,
		seq:      clock.NewSeq(),
		result:   NewResult(),
	}
	h.store.Subscribe(h.observe)

	if err := h.execute(ctx, scenario.Steps); err != nil {
		return nil, err
	}

	final := h.store.State()
	h.result.Requests = searcher.Requests()
	h.result.State = finalState(final)

	if err := h.checkReplay(ctx, final); err != nil {
		h.result.AddError(err.Error())
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"pass", h.result.Pass,
		"intents", len(h.result.Trace),
		"requests", len(h.result.Requests),
	)

	return h.result, nil
}

// observe appends every processed intent to the trace.
func (h *Harness) observe(s state.SearchState, in intent.Intent) {
	h.result.Trace = append(h.result.Trace,
		newTraceEvent(h.seq.Next(), h.clock.Elapsed().Milliseconds(), s, in))
}

// execute applies the steps, then runs out the clock.
func (h *Harness) execute(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		target := testutil.Epoch.Add(time.Duration(step.AtMS) * time.Millisecond)
		if err := h.advanceTo(ctx, target); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		var in intent.Intent
		if step.Search != nil {
			in = intent.RequestSearch(*step.Search)
		} else {
			in = intent.ClearResults()
		}
		h.store.Dispatch(in)

		if err := h.settle(ctx); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	for firings := 0; ; firings++ {
		next, ok := h.clock.NextDeadline()
		if !ok {
			return nil
		}
		if firings >= maxTimerFirings {
			return fmt.Errorf("timers still pending after %d firings", maxTimerFirings)
		}
		if err := h.advanceTo(ctx, next); err != nil {
			return err
		}
	}
}

// advanceTo moves the clock to target one deadline at a time, settling
// after each so that timers registered by fetch goroutines are seen.
func (h *Harness) advanceTo(ctx context.Context, target time.Time) error {
	for firings := 0; firings < maxTimerFirings; firings++ {
		if err := h.settle(ctx); err != nil {
			return err
		}
		next, ok := h.clock.NextDeadline()
		if !ok || next.After(target) {
			h.clock.AdvanceTo(target)
			return h.settle(ctx)
		}
		h.clock.AdvanceTo(next)
	}
	return fmt.Errorf("timers still pending after %d firings", maxTimerFirings)
}

// settle drains the store until every fetch goroutine is parked on the
// clock or finished and no intents are queued.
//
// The order of checks matters: a fetch dispatches before it stops counting
// as active, so once active == blocked every finished fetch's intent is
// already in the queue.
func (h *Harness) settle(ctx context.Context) error {
	deadline := time.Now().Add(settleTimeout)
	for {
		h.store.Drain(ctx)

		if h.pipeline.Active() == h.searcher.Blocked() && h.store.QueueLen() == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("scenario did not settle within %s (active=%d blocked=%d queued=%d)",
				settleTimeout, h.pipeline.Active(), h.searcher.Blocked(), h.store.QueueLen())
		}
		runtime.Gosched()
	}
}

// checkReplay folds the journaled session and compares it to the live
// state.
func (h *Harness) checkReplay(ctx context.Context, live state.SearchState) error {
	replayed, err := h.journal.Replay(ctx, h.session)
	if err != nil {
		return fmt.Errorf("journal replay: %w", err)
	}
	if !reflect.DeepEqual(normalize(replayed.State), normalize(live)) {
		return fmt.Errorf("journal replay diverged: live %+v, replayed %+v",
			finalState(live), finalState(replayed.State))
	}
	return nil
}

// normalize maps nil and empty result lists to the same value.
func normalize(s state.SearchState) state.SearchState {
	if len(s.PlacesData) == 0 {
		s.PlacesData = nil
	}
	return s
}
