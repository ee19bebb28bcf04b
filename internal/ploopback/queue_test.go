package ploopback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFrameQueueTryPushPopBatchFIFO(t *testing.T) {
	q := NewFrameQueue(4)

	for i := 0; i < 3; i++ {
		ok := q.TryPush(Chunk{Sequence: uint64(i)})
		require.True(t, ok)
	}

	out := q.PopBatch(10, 0)
	require.Len(t, out, 3)
	for i, c := range out {
		assert.Equal(t, uint64(i), c.Sequence)
	}
}

func TestFrameQueueDropsWhenFull(t *testing.T) {
	q := NewFrameQueue(2)

	require.True(t, q.TryPush(Chunk{Sequence: 0}))
	require.True(t, q.TryPush(Chunk{Sequence: 1}))
	require.False(t, q.TryPush(Chunk{Sequence: 2}))

	m := q.Metrics()
	assert.EqualValues(t, 2, m.Enqueued)
	assert.EqualValues(t, 1, m.Dropped)
	assert.EqualValues(t, 2, m.CurrentSize)
}

func TestFrameQueuePopBatchBlocksUntilPush(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
	)

	q := NewFrameQueue(4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		q.TryPush(Chunk{Sequence: 42})
	}()

	start := time.Now()
	out := q.PopBatch(1, 500*time.Millisecond)
	elapsed := time.Since(start)

	require.Len(t, out, 1)
	assert.EqualValues(t, 42, out[0].Sequence)
	assert.Less(t, elapsed, 500*time.Millisecond)

	wg.Wait()
}

func TestFrameQueuePopBatchTimesOutWhenEmpty(t *testing.T) {
	q := NewFrameQueue(4)

	start := time.Now()
	out := q.PopBatch(1, 30*time.Millisecond)
	elapsed := time.Since(start)

	assert.Nil(t, out)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestFrameQueueDrainDiscardsPending(t *testing.T) {
	q := NewFrameQueue(4)
	require.True(t, q.TryPush(Chunk{Sequence: 0}))
	require.True(t, q.TryPush(Chunk{Sequence: 1}))

	q.Drain()

	assert.EqualValues(t, 0, q.Size())
	out := q.PopBatch(10, 10*time.Millisecond)
	assert.Nil(t, out)
}

func TestFrameQueueRecordErrorSetsLastError(t *testing.T) {
	q := NewFrameQueue(1)
	q.RecordError(ErrQueueOverflow)

	m := q.Metrics()
	assert.EqualValues(t, 1, m.Errors)
	assert.Equal(t, ErrQueueOverflow, m.LastError)
}

func TestFrameQueueProducerNeverBlocksOnFullQueue(t *testing.T) {
	q := NewFrameQueue(1)
	require.True(t, q.TryPush(Chunk{Sequence: 0}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.TryPush(Chunk{Sequence: 1})
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("TryPush blocked on a full queue")
	}
}
