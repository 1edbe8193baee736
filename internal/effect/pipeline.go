package effect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/placefinder/internal/clock"
	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/places"
)

// DefaultDebounce is the quiescence window before a query settles.
const DefaultDebounce = 1000 * time.Millisecond

// Searcher performs one places lookup. *places.Client implements it.
type Searcher interface {
	Search(ctx context.Context, query string) (places.Response, error)
}

// SearchPipeline turns SearchRequested intents into at most one live places
// request and reports the outcome as SearchSucceeded or SearchFailed.
//
// Thread-safety: Handle may be called from any goroutine, though the store
// calls it only from its loop. Debounce callbacks and fetch goroutines
// synchronize on an internal mutex.
//
// INVARIANTS:
//   - pending identifies the only debounce callback allowed to settle
//   - gen identifies the only request whose result may be dispatched
//   - dispatch happens under mu, so a superseding settle cannot interleave
//     between the staleness check and the dispatch
type SearchPipeline struct {
	searcher Searcher
	clock    clock.Clock
	window   time.Duration

	mu      sync.Mutex
	timer   clock.Timer
	pending uint64
	gen     uint64
	cancel  context.CancelFunc
	active  int
	closed  bool
	wg      sync.WaitGroup
}

// Option configures a SearchPipeline.
type Option func(*SearchPipeline)

// WithClock replaces the wall clock (tests use a manual clock).
func WithClock(c clock.Clock) Option {
	return func(p *SearchPipeline) {
		p.clock = c
	}
}

// WithDebounce sets the quiescence window. Negative values are treated as 0.
func WithDebounce(d time.Duration) Option {
	return func(p *SearchPipeline) {
		if d < 0 {
			d = 0
		}
		p.window = d
	}
}

// NewSearchPipeline creates a pipeline backed by searcher.
func NewSearchPipeline(searcher Searcher, opts ...Option) *SearchPipeline {
	p := &SearchPipeline{
		searcher: searcher,
		clock:    clock.Real{},
		window:   DefaultDebounce,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle observes one processed intent. Only SearchRequested is acted on:
// it (re)starts the debounce timer for its query, superseding any query
// that has not settled yet.
//
// ctx bounds the requests issued for this intent; cancelling it drops their
// results without reporting a failure.
func (p *SearchPipeline) Handle(ctx context.Context, in intent.Intent, dispatch func(intent.Intent) bool) {
	req, ok := in.(intent.SearchRequested)
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.pending++
	token := p.pending
	query := req.QueryText

	p.timer = p.clock.AfterFunc(p.window, func() {
		p.settle(ctx, token, query, dispatch)
	})
}

// settle fires when the debounce window elapsed without a newer query.
// It cancels the in-flight request, if any, and starts a new one.
func (p *SearchPipeline) settle(ctx context.Context, token uint64, query string, dispatch func(intent.Intent) bool) {
	p.mu.Lock()
	if p.closed || token != p.pending {
		p.mu.Unlock()
		return
	}
	p.timer = nil

	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	reqCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.active++
	p.wg.Add(1)
	p.mu.Unlock()

	slog.Debug("search settled", "query", query, "generation", gen)

	go p.fetch(reqCtx, cancel, gen, query, dispatch)
}

func (p *SearchPipeline) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, query string, dispatch func(intent.Intent) bool) {
	defer p.wg.Done()
	defer cancel()

	resp, err := p.search(ctx, query)

	p.mu.Lock()
	defer func() {
		p.active--
		p.mu.Unlock()
	}()

	if gen != p.gen {
		slog.Debug("dropping superseded search result",
			"query", query,
			"generation", gen,
			"current", p.gen,
		)
		return
	}
	p.cancel = nil

	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("search cancelled", "query", query, "error", err)
			return
		}
		slog.Warn("search failed", "query", query, "error", err)
		dispatch(intent.SearchFailure(err.Error()))
		return
	}

	slog.Debug("search succeeded",
		"query", query,
		"results", len(resp.Results),
		"error_message", resp.ErrorMessage,
	)
	dispatch(intent.SearchSuccess(resp.Payload()))
}

// search calls the searcher, converting a panic into an error so that no
// failure escapes the pipeline.
func (p *SearchPipeline) search(ctx context.Context, query string) (resp places.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search panicked: %v", r)
		}
	}()
	return p.searcher.Search(ctx, query)
}

// Active returns the number of fetch goroutines that have not finished.
func (p *SearchPipeline) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Idle reports whether no query is waiting out its debounce window and no
// fetch is running. A result dispatched by a fetch is already queued on the
// store by the time the fetch stops counting.
func (p *SearchPipeline) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer == nil && p.active == 0
}

// Wait blocks until every started fetch has finished.
func (p *SearchPipeline) Wait() {
	p.wg.Wait()
}

// Close drops any unsettled query, cancels the in-flight request and waits
// for fetch goroutines to exit. Later Handle calls are ignored.
func (p *SearchPipeline) Close() {
	p.mu.Lock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.Wait()
}
