package store

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/state"
)

// Reducer folds one intent into the state.
type Reducer func(state.SearchState, intent.Intent) state.SearchState

// Effect observes every processed intent after the state has been updated.
// It may dispatch follow-up intents from any goroutine.
type Effect interface {
	Handle(ctx context.Context, in intent.Intent, dispatch func(intent.Intent) bool)
}

// Recorder persists processed intents. A failing recorder is logged and
// does not stop the loop.
type Recorder interface {
	Record(ctx context.Context, in intent.Intent) error
}

// Listener is notified with the new state and the intent that produced it.
// Listeners run on the loop goroutine and must not block.
type Listener func(state.SearchState, intent.Intent)

// Store is the single-writer state container.
//
// Thread-safety model:
//   - Dispatch(), State(), Subscribe(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Drain(): processes in the caller's goroutine; serialized with Run
//
// INVARIANTS:
//   - the reducer is only invoked while holding loopMu, one intent at a time
//   - intents are processed in dispatch order
//   - for each intent: reduce, publish, record, notify, then effects
type Store struct {
	reducer  Reducer
	effects  []Effect
	recorder Recorder
	queue    *intentQueue

	current atomic.Pointer[state.SearchState]
	loopMu  sync.Mutex

	listenersMu  sync.Mutex
	listeners    map[uint64]Listener
	nextListener uint64

	processed atomic.Uint64
	// unfinished counts dispatched intents whose processing has not
	// completed, effects included.
	unfinished atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithInitialState replaces state.Initial() as the starting state.
func WithInitialState(s state.SearchState) Option {
	return func(st *Store) {
		st.current.Store(&s)
	}
}

// WithReducer replaces state.Reduce.
func WithReducer(r Reducer) Option {
	return func(st *Store) {
		st.reducer = r
	}
}

// WithEffects appends effects, run in the given order for each intent.
func WithEffects(effects ...Effect) Option {
	return func(st *Store) {
		st.effects = append(st.effects, effects...)
	}
}

// WithRecorder sets the recorder that persists processed intents.
func WithRecorder(r Recorder) Option {
	return func(st *Store) {
		st.recorder = r
	}
}

// New creates a store. Nothing is processed until Run or Drain is called.
func New(opts ...Option) *Store {
	s := &Store{
		reducer:   state.Reduce,
		queue:     newIntentQueue(),
		listeners: make(map[uint64]Listener),
	}
	initial := state.Initial()
	s.current.Store(&initial)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch submits an intent for processing.
// Returns false if the store has been stopped or in is nil.
func (s *Store) Dispatch(in intent.Intent) bool {
	if in == nil {
		return false
	}
	s.unfinished.Add(1)
	if !s.queue.Enqueue(in) {
		s.unfinished.Add(-1)
		return false
	}
	return true
}

// State returns the latest published snapshot.
func (s *Store) State() state.SearchState {
	return *s.current.Load()
}

// Processed returns how many intents have been reduced.
func (s *Store) Processed() uint64 {
	return s.processed.Load()
}

// QueueLen returns the number of dispatched intents not yet processed.
func (s *Store) QueueLen() int {
	return s.queue.Len()
}

// Quiescent reports whether every dispatched intent has been fully
// processed, effects included. It never blocks.
func (s *Store) Quiescent() bool {
	return s.unfinished.Load() == 0
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// Run processes intents until ctx is cancelled or Stop is called.
//
// Returns ctx.Err() on cancellation and nil after Stop once the queue has
// been drained.
func (s *Store) Run(ctx context.Context) error {
	slog.Info("store loop starting")

	for {
		if in, ok := s.queue.TryDequeue(); ok {
			s.process(ctx, in)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("store loop stopping: context cancelled")
			s.queue.Close()
			return ctx.Err()

		case <-s.queue.Wait():
			// The signal channel is closed by Stop, so an empty queue here
			// means there is nothing left to do.
			if s.queue.Len() == 0 && s.stopped() {
				slog.Info("store loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes queued intents in the caller's goroutine until the queue
// is empty or ctx is done, and returns how many were processed. Intents
// dispatched by effects during the drain are processed too.
func (s *Store) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		in, ok := s.queue.TryDequeue()
		if !ok {
			break
		}
		s.process(ctx, in)
		n++
	}
	return n
}

// Stop closes the queue. Run returns once the remaining intents are
// processed; later Dispatch calls return false.
func (s *Store) Stop() {
	s.queue.Close()
}

func (s *Store) stopped() bool {
	s.queue.mu.Lock()
	defer s.queue.mu.Unlock()
	return s.queue.closed
}

// process runs one intent through the loop stages.
func (s *Store) process(ctx context.Context, in intent.Intent) {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	defer s.unfinished.Add(-1)

	next := s.reducer(*s.current.Load(), in)
	s.current.Store(&next)
	s.processed.Add(1)

	slog.Debug("intent processed",
		"kind", in.Kind(),
		"is_loading", next.IsLoading,
		"places", len(next.PlacesData),
		"error_msg", next.ErrorMsg,
	)

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, in); err != nil {
			slog.Error("record intent failed",
				"kind", in.Kind(),
				"error", err,
			)
		}
	}

	for _, l := range s.snapshotListeners() {
		l(next, in)
	}

	for _, e := range s.effects {
		e.Handle(ctx, in, s.Dispatch)
	}
}

// snapshotListeners copies the listeners in subscription order so that a
// listener may unsubscribe while being notified.
func (s *Store) snapshotListeners() []Listener {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}
