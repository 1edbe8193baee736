package effect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/places"
	"github.com/roach88/placefinder/internal/testutil"
)

const waitTimeout = 2 * time.Second

type searchCall struct {
	query string
	at    time.Duration
}

// fakeSearcher records calls and answers through a per-test function.
type fakeSearcher struct {
	clk     *testutil.ManualClock
	mu      sync.Mutex
	calls   []searchCall
	started chan string
	answer  func(ctx context.Context, query string) (places.Response, error)
}

func newFakeSearcher(clk *testutil.ManualClock, answer func(ctx context.Context, query string) (places.Response, error)) *fakeSearcher {
	return &fakeSearcher{
		clk:     clk,
		started: make(chan string, 16),
		answer:  answer,
	}
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (places.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{query: query, at: f.clk.Elapsed()})
	f.mu.Unlock()
	f.started <- query
	return f.answer(ctx, query)
}

func (f *fakeSearcher) Calls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

// recorder collects dispatched intents.
type recorder struct {
	mu      sync.Mutex
	intents []intent.Intent
	signal  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{signal: make(chan struct{}, 16)}
}

func (r *recorder) dispatch(in intent.Intent) bool {
	r.mu.Lock()
	r.intents = append(r.intents, in)
	r.mu.Unlock()
	r.signal <- struct{}{}
	return true
}

func (r *recorder) Intents() []intent.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]intent.Intent(nil), r.intents...)
}

func waitStarted(t *testing.T, f *fakeSearcher) string {
	t.Helper()
	select {
	case q := <-f.started:
		return q
	case <-time.After(waitTimeout):
		t.Fatal("search was not started")
		return ""
	}
}

func waitDispatched(t *testing.T, r *recorder) {
	t.Helper()
	select {
	case <-r.signal:
	case <-time.After(waitTimeout):
		t.Fatal("nothing was dispatched")
	}
}

func okResponse(addr string) places.Response {
	return places.Response{
		Results: []intent.Place{intent.Place(`{"formatted_address":"` + addr + `"}`)},
	}
}

func TestDebounce_OnlyLatestQueryIsRequested(t *testing.T) {
	clk := testutil.NewManualClock()
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		return okResponse(q), nil
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk))
	ctx := context.Background()

	p.Handle(ctx, intent.RequestSearch("a"), rec.dispatch)
	clk.Advance(200 * time.Millisecond)
	p.Handle(ctx, intent.RequestSearch("ab"), rec.dispatch)

	// "a" would have settled at 1000ms; it was superseded.
	clk.Advance(999 * time.Millisecond)
	assert.Empty(t, searcher.Calls())

	clk.Advance(time.Millisecond)
	assert.Equal(t, "ab", waitStarted(t, searcher))
	waitDispatched(t, rec)
	p.Wait()

	assert.Equal(t, []searchCall{{query: "ab", at: 1200 * time.Millisecond}}, searcher.Calls())
	assert.Equal(t, []intent.Intent{intent.SearchSuccess(okResponse("ab").Payload())}, rec.Intents())
}

func TestDebounce_SpacedQueriesBothSettle(t *testing.T) {
	clk := testutil.NewManualClock()
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		return okResponse(q), nil
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk))
	ctx := context.Background()

	p.Handle(ctx, intent.RequestSearch("pa"), rec.dispatch)
	clk.Advance(time.Second)
	waitStarted(t, searcher)
	waitDispatched(t, rec)

	p.Handle(ctx, intent.RequestSearch("paris"), rec.dispatch)
	clk.Advance(time.Second)
	waitStarted(t, searcher)
	waitDispatched(t, rec)
	p.Wait()

	assert.Equal(t, []searchCall{
		{query: "pa", at: time.Second},
		{query: "paris", at: 2 * time.Second},
	}, searcher.Calls())
}

func TestSwitchLatest_StaleResultIsDropped(t *testing.T) {
	clk := testutil.NewManualClock()
	release := map[string]chan struct{}{
		"a":  make(chan struct{}),
		"ab": make(chan struct{}),
	}
	var cancelledA bool
	var mu sync.Mutex
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		// The slow request ignores cancellation so its late answer
		// actually reaches the pipeline.
		<-release[q]
		if q == "a" {
			mu.Lock()
			cancelledA = ctx.Err() != nil
			mu.Unlock()
		}
		return okResponse(q), nil
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk))
	ctx := context.Background()

	p.Handle(ctx, intent.RequestSearch("a"), rec.dispatch)
	clk.Advance(time.Second)
	require.Equal(t, "a", waitStarted(t, searcher))

	p.Handle(ctx, intent.RequestSearch("ab"), rec.dispatch)
	clk.Advance(time.Second)
	require.Equal(t, "ab", waitStarted(t, searcher))
	assert.Equal(t, 2, p.Active())

	close(release["ab"])
	waitDispatched(t, rec)

	close(release["a"])
	p.Wait()

	assert.Equal(t, []intent.Intent{intent.SearchSuccess(okResponse("ab").Payload())}, rec.Intents())
	assert.Equal(t, 0, p.Active())
	mu.Lock()
	assert.True(t, cancelledA, "superseded request context should be cancelled")
	mu.Unlock()
}

func TestErrorBoundary_RearmsAfterFailure(t *testing.T) {
	clk := testutil.NewManualClock()
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		if q == "xyz" {
			return places.Response{}, errors.New("dial tcp: connection refused")
		}
		return okResponse(q), nil
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk))
	ctx := context.Background()

	p.Handle(ctx, intent.RequestSearch("xyz"), rec.dispatch)
	clk.Advance(time.Second)
	waitDispatched(t, rec)

	p.Handle(ctx, intent.RequestSearch("paris"), rec.dispatch)
	clk.Advance(time.Second)
	waitDispatched(t, rec)
	p.Wait()

	assert.Equal(t, []intent.Intent{
		intent.SearchFailure("dial tcp: connection refused"),
		intent.SearchSuccess(okResponse("paris").Payload()),
	}, rec.Intents())
}

func TestUpstreamErrorMessageTravelsOnSuccess(t *testing.T) {
	clk := testutil.NewManualClock()
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		return places.Response{Results: []intent.Place{}, ErrorMessage: "You have exceeded your daily request quota."}, nil
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk))

	p.Handle(context.Background(), intent.RequestSearch("paris"), rec.dispatch)
	clk.Advance(time.Second)
	waitDispatched(t, rec)
	p.Wait()

	require.Len(t, rec.Intents(), 1)
	got, ok := rec.Intents()[0].(intent.SearchSucceeded)
	require.True(t, ok)
	assert.Equal(t, "You have exceeded your daily request quota.", got.ErrorMessage)
}

func TestPanickingSearcherBecomesFailure(t *testing.T) {
	clk := testutil.NewManualClock()
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		panic("nil map")
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk))

	p.Handle(context.Background(), intent.RequestSearch("boom"), rec.dispatch)
	clk.Advance(time.Second)
	waitDispatched(t, rec)
	p.Wait()

	assert.Equal(t, []intent.Intent{intent.SearchFailure("search panicked: nil map")}, rec.Intents())
}

func TestOtherIntentsAreIgnored(t *testing.T) {
	clk := testutil.NewManualClock()
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		return okResponse(q), nil
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk))
	ctx := context.Background()

	p.Handle(ctx, intent.ClearResults(), rec.dispatch)
	p.Handle(ctx, intent.SearchFailure("x"), rec.dispatch)
	p.Handle(ctx, intent.SearchSuccess(intent.SearchPayload{}), rec.dispatch)
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(time.Minute)
	assert.Empty(t, searcher.Calls())
	assert.Empty(t, rec.Intents())
}

func TestCancelledContextDropsResult(t *testing.T) {
	clk := testutil.NewManualClock()
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		<-ctx.Done()
		return places.Response{}, ctx.Err()
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk))
	ctx, cancel := context.WithCancel(context.Background())

	p.Handle(ctx, intent.RequestSearch("paris"), rec.dispatch)
	clk.Advance(time.Second)
	waitStarted(t, searcher)

	cancel()
	p.Wait()
	assert.Empty(t, rec.Intents())
}

func TestClose(t *testing.T) {
	clk := testutil.NewManualClock()
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		return okResponse(q), nil
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk))

	p.Handle(context.Background(), intent.RequestSearch("paris"), rec.dispatch)
	p.Close()
	assert.Equal(t, 0, clk.Pending())

	p.Handle(context.Background(), intent.RequestSearch("later"), rec.dispatch)
	clk.Advance(time.Minute)
	assert.Empty(t, searcher.Calls())
	assert.Empty(t, rec.Intents())
}

func TestWithDebounce(t *testing.T) {
	clk := testutil.NewManualClock()
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		return okResponse(q), nil
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk), WithDebounce(250*time.Millisecond))

	p.Handle(context.Background(), intent.RequestSearch("rome"), rec.dispatch)
	clk.Advance(250 * time.Millisecond)
	waitStarted(t, searcher)
	waitDispatched(t, rec)
	p.Wait()

	assert.Equal(t, []searchCall{{query: "rome", at: 250 * time.Millisecond}}, searcher.Calls())
	assert.Equal(t, DefaultDebounce, NewSearchPipeline(searcher).window)
	assert.Equal(t, time.Duration(0), NewSearchPipeline(searcher, WithDebounce(-time.Second)).window)
}

func TestIdle(t *testing.T) {
	clk := testutil.NewManualClock()
	release := make(chan struct{})
	searcher := newFakeSearcher(clk, func(ctx context.Context, q string) (places.Response, error) {
		<-release
		return okResponse(q), nil
	})
	rec := newRecorder()
	p := NewSearchPipeline(searcher, WithClock(clk))
	assert.True(t, p.Idle())

	p.Handle(context.Background(), intent.RequestSearch("lima"), rec.dispatch)
	assert.False(t, p.Idle(), "debounce timer pending")

	clk.Advance(time.Second)
	waitStarted(t, searcher)
	assert.False(t, p.Idle(), "fetch running")

	close(release)
	waitDispatched(t, rec)
	p.Wait()
	assert.True(t, p.Idle())
}
