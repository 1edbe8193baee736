package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/placefinder/internal/intent"
)

func TestIntentQueue_FIFO(t *testing.T) {
	q := newIntentQueue()

	for _, text := range []string{"p", "pa", "par"} {
		require.True(t, q.Enqueue(intent.RequestSearch(text)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"p", "pa", "par"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, intent.RequestSearch(want), got)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestIntentQueue_SignalCoalesces(t *testing.T) {
	q := newIntentQueue()
	q.Enqueue(intent.ClearResults())
	q.Enqueue(intent.ClearResults())

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}

	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
}

func TestIntentQueue_Close(t *testing.T) {
	q := newIntentQueue()
	q.Enqueue(intent.ClearResults())
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(intent.ClearResults()), "closed queue rejects intents")

	got, ok := q.TryDequeue()
	require.True(t, ok, "queued intents survive Close")
	assert.Equal(t, intent.ClearResults(), got)

	<-q.Wait() // buffered signal from Enqueue
	_, open := <-q.Wait()
	assert.False(t, open, "signal channel is closed")
}
