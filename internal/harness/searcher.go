package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/places"
	"github.com/roach88/placefinder/internal/testutil"
)

// scriptedSearcher answers from a scenario's responses on virtual time.
//
// A delayed answer registers a timer on the manual clock and blocks until
// the harness advances past it or the request is cancelled. blocked counts
// requests parked that way, so the harness can tell a quiet system from a
// fetch goroutine that has not reached the searcher yet.
type scriptedSearcher struct {
	clk       *testutil.ManualClock
	responses map[string]ScriptedResponse

	mu       sync.Mutex
	requests []Request

	blocked atomic.Int64
}

func newScriptedSearcher(clk *testutil.ManualClock, responses map[string]ScriptedResponse) *scriptedSearcher {
	return &scriptedSearcher{clk: clk, responses: responses}
}

// Search implements effect.Searcher.
func (s *scriptedSearcher) Search(ctx context.Context, query string) (places.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{Query: query, AtMS: s.clk.Elapsed().Milliseconds()})
	resp, scripted := s.responses[query]
	s.mu.Unlock()

	if !scripted {
		return places.Response{Results: []intent.Place{}, Status: "ZERO_RESULTS"}, nil
	}

	if resp.DelayMS > 0 {
		if err := s.wait(ctx, time.Duration(resp.DelayMS)*time.Millisecond); err != nil {
			return places.Response{}, err
		}
	}

	return resp.outcome()
}

// wait parks until the clock reaches now+d or ctx is done.
func (s *scriptedSearcher) wait(ctx context.Context, d time.Duration) error {
	released := make(chan struct{})
	var once sync.Once
	unblock := func() {
		once.Do(func() { s.blocked.Add(-1) })
	}

	s.blocked.Add(1)
	timer := s.clk.AfterFunc(d, func() {
		unblock()
		close(released)
	})

	select {
	case <-released:
		return nil
	case <-ctx.Done():
		timer.Stop()
		unblock()
		return ctx.Err()
	}
}

// Requests returns the calls made so far.
func (s *scriptedSearcher) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request{}, s.requests...)
}

// Blocked returns how many requests are waiting on the clock.
func (s *scriptedSearcher) Blocked() int {
	return int(s.blocked.Load())
}

// outcome converts the scripted answer into what the real client returns.
func (r ScriptedResponse) outcome() (places.Response, error) {
	if r.Fail != "" {
		return places.Response{}, errors.New(r.Fail)
	}
	if r.HTTPStatus != 0 {
		return places.Response{}, &places.RequestError{StatusCode: r.HTTPStatus}
	}

	results := make([]intent.Place, 0, len(r.Results))
	for i, rec := range r.Results {
		raw, err := json.Marshal(rec)
		if err != nil {
			return places.Response{}, fmt.Errorf("encode scripted result %d: %w", i, err)
		}
		results = append(results, intent.Place(raw))
	}

	status := r.Status
	if status == "" && r.ErrorMessage == "" {
		status = "OK"
	}

	return places.Response{
		Results:      results,
		ErrorMessage: r.ErrorMessage,
		Status:       status,
	}, nil
}
