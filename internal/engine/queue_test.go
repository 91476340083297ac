package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chaindb/internal/ir"
)

func testRequest(action string) request {
	return request{call: Call{Action: ir.ActionRef(action)}, reply: make(chan response, 1)}
}

func TestRequestQueue_EnqueueDequeue(t *testing.T) {
	q := newRequestQueue()

	ok := q.Enqueue(testRequest("Database.insert"))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, ir.ActionRef("Database.insert"), got.call.Action)
	assert.NotNil(t, got.reply)
}

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()

	for _, a := range []string{"A", "B", "C"} {
		q.Enqueue(testRequest(a))
	}

	for _, want := range []string{"A", "B", "C"} {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, ir.ActionRef(want), r.call.Action)
	}
	assert.Equal(t, 0, q.Len())
}

func TestRequestQueue_TryDequeue_Empty(t *testing.T) {
	q := newRequestQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestRequestQueue_SignalOnEnqueue(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(testRequest("A"))

	select {
	case _, ok := <-q.Wait():
		assert.True(t, ok, "signal channel should still be open")
	default:
		t.Fatal("expected a pending signal after enqueue")
	}
}

func TestRequestQueue_CloseReturnsPending(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(testRequest("A"))
	q.Enqueue(testRequest("B"))

	pending := q.Close()
	require.Len(t, pending, 2)
	assert.Equal(t, ir.ActionRef("A"), pending[0].call.Action)

	assert.False(t, q.Enqueue(testRequest("C")), "enqueue after close should fail")
	assert.Equal(t, 0, q.Len())

	_, ok := <-q.Wait()
	assert.False(t, ok, "signal channel should be closed")

	assert.Nil(t, q.Close(), "second close returns nothing")
}

func TestRequestQueue_ConcurrentEnqueue(t *testing.T) {
	q := newRequestQueue()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(testRequest("Token.transfer"))
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, q.Len())
}
