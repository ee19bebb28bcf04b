package ploopback

import (
	"sync/atomic"
	"time"
)

// FrameQueue is the single-producer/single-consumer bounded handoff of
// Chunks between the capture worker and the client thread (spec.md §4.1).
// Only the producer writes head; only the consumer writes tail. head is
// published with a Store after the slot write, and read with a Load before
// the slot read, so the consumer always observes a chunk's contents before
// it observes the head advance that publishes it.
type FrameQueue struct {
	slots []Chunk
	cap   uint64

	head atomic.Uint64 // next slot index the producer will write
	tail atomic.Uint64 // next slot index the consumer will read

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	errors   atomic.Uint64
	lastErr  atomic.Value // ErrorKind

	// wake carries no data; it only wakes a blocked PopBatch. The send is
	// non-blocking so the producer never contends on a lock, the same
	// drop-if-full idiom used for the audio-callback-to-channel handoff
	// this queue replaces.
	wake chan struct{}
}

// NewFrameQueue constructs a queue with the given chunk capacity. Capacity
// must be at least 1; the zero value is rounded up.
func NewFrameQueue(capacity uint32) *FrameQueue {
	if capacity == 0 {
		capacity = 1
	}
	q := &FrameQueue{
		slots: make([]Chunk, capacity),
		cap:   uint64(capacity),
		wake:  make(chan struct{}, 1),
	}
	q.lastErr.Store(ErrNone)
	return q
}

// TryPush publishes a chunk without blocking. It returns false if the queue
// is full, in which case the chunk is discarded and the dropped counter is
// incremented (drop-newest overflow policy, spec.md §4.1).
func (q *FrameQueue) TryPush(c Chunk) bool {
	head := q.head.Load()
	tail := q.tail.Load()
	if head-tail >= q.cap {
		q.dropped.Add(1)
		return false
	}

	q.slots[head%q.cap] = c
	q.head.Store(head + 1) // release: publishes the slot write above
	q.enqueued.Add(1)

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return true
}

// PopBatch returns up to maxN chunks in FIFO order, blocking up to timeout
// while the queue is empty. It returns as soon as at least one chunk is
// available or the timeout elapses. A zero timeout makes it non-blocking.
func (q *FrameQueue) PopBatch(maxN uint32, timeout time.Duration) []Chunk {
	if maxN == 0 {
		return nil
	}

	if q.size() == 0 && timeout > 0 {
		// A wake token can be left over from a push whose chunk was already
		// popped, so keep waiting until data arrives or the deadline passes.
		deadline := time.Now().Add(timeout)
		for q.size() == 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			q.waitForData(remaining)
		}
	}

	tail := q.tail.Load()
	head := q.head.Load() // acquire: pairs with the Store in TryPush
	avail := head - tail
	if avail == 0 {
		return nil
	}
	if uint64(maxN) < avail {
		avail = uint64(maxN)
	}

	out := make([]Chunk, avail)
	for i := uint64(0); i < avail; i++ {
		out[i] = q.slots[(tail+i)%q.cap]
	}
	q.tail.Store(tail + avail)
	return out
}

func (q *FrameQueue) waitForData(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.wake:
	case <-timer.C:
	}
}

func (q *FrameQueue) size() uint64 {
	return q.head.Load() - q.tail.Load()
}

// Size returns the current number of chunks resident in the queue.
func (q *FrameQueue) Size() uint32 {
	return uint32(q.size())
}

// Metrics returns the non-blocking observational snapshot (spec.md §4.1).
func (q *FrameQueue) Metrics() Metrics {
	return Metrics{
		Enqueued:    q.enqueued.Load(),
		Dropped:     q.dropped.Load(),
		Errors:      q.errors.Load(),
		CurrentSize: q.Size(),
		LastError:   q.lastErr.Load().(ErrorKind),
	}
}

// RecordError increments the advisory error counter and remembers the kind
// as the queue's sticky last error, surfaced through Metrics().
func (q *FrameQueue) RecordError(kind ErrorKind) {
	q.errors.Add(1)
	q.lastErr.Store(kind)
}

// ResetLastError clears the sticky last-error indicator without touching
// the advisory error counter. Called by Capture.Stop so metrics().last_error
// stops being sticky at the point spec.md §7 names: "stop never fails; it
// always leaves the object in idle".
func (q *FrameQueue) ResetLastError() {
	q.lastErr.Store(ErrNone)
}

// Drain discards all remaining chunks. Called exactly once during teardown.
func (q *FrameQueue) Drain() {
	q.tail.Store(q.head.Load())
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
