package ploopback

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/birdnet-go/internal/logging"
)

// maxEventWait bounds the worker's wait on the endpoint event so stop stays
// responsive (spec.md §4.3: "≈ 2× device period, clamped to a small upper
// bound").
const maxEventWait = 200 * time.Millisecond

// Capture owns one CaptureSession: its endpoint, assembler, frame queue,
// and worker thread (C3). Each Capture is independent; it does not share
// state with any other Capture instance.
type Capture struct {
	factory    EndpointFactory
	registerer prometheus.Registerer
	id         string
	logger     *slog.Logger

	mu    sync.Mutex
	state SessionState

	endpoint Endpoint
	queue    *FrameQueue
	metrics  *sessionMetrics
	format   AudioFormat

	stopCh     chan struct{}
	workerDone chan struct{}

	lastErr atomic.Value // ErrorKind
}

// NewCapture constructs an idle Capture backed by the given endpoint
// factory. registerer may be nil to use the default Prometheus registry.
func NewCapture(factory EndpointFactory, registerer prometheus.Registerer) *Capture {
	id := uuid.NewString()
	logger := logging.ForService("ploopback")
	if logger == nil {
		// logging.Init has not run (as in package tests); use slog's default.
		logger = slog.Default()
	}
	c := &Capture{
		factory:    factory,
		registerer: registerer,
		id:         id,
		logger:     logger.With("session", id),
		state:      StateIdle,
	}
	c.lastErr.Store(ErrNone)
	return c
}

// Start activates a process-scoped loopback endpoint for pid under mode,
// assembles audio into chunkFrames-sized Chunks, and begins feeding a
// queueCapacityChunks-deep FrameQueue. Only legal from the idle state
// (spec.md §4.3).
func (c *Capture) Start(ctx context.Context, pid uint32, mode InclusionMode, chunkFrames uint32, queueCapacityChunks uint32, activationTimeout, eventWaitTimeout time.Duration) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return newKindError(ErrInvalidState, "start called while not idle")
	}
	c.state = StateActivating
	c.mu.Unlock()

	endpoint := c.factory()

	activationStart := time.Now()
	err := endpoint.Activate(ctx, pid, mode, activationTimeout)
	activationElapsed := time.Since(activationStart)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActivating {
		// Stop() ran while activation was in flight and already abandoned
		// this session (spec.md §8: "the pending activation is abandoned;
		// start returns invalid_state if already completed"). Release
		// whatever the now-unwanted activation produced instead of
		// resurrecting a session the caller already stopped.
		if err == nil {
			_ = endpoint.Close()
		}
		return newKindError(ErrInvalidState, "start abandoned by a concurrent stop")
	}

	if err != nil {
		c.state = StateIdle
		c.logger.Warn("activation failed", "pid", pid, "mode", mode.String(), "error", err, "elapsed", activationElapsed)
		return err
	}

	c.format = endpoint.Format()
	c.endpoint = endpoint
	c.queue = NewFrameQueue(queueCapacityChunks)
	c.metrics = newSessionMetrics(c.registerer, c.id)
	c.metrics.activationSecs.Observe(activationElapsed.Seconds())
	c.stopCh = make(chan struct{})
	c.workerDone = make(chan struct{})
	c.lastErr.Store(ErrNone)
	c.state = StateRunning

	if eventWaitTimeout <= 0 || eventWaitTimeout > maxEventWait {
		eventWaitTimeout = maxEventWait
	}
	assembler := NewAssembler(c.format, chunkFrames)

	c.logger.Info("capture started", "pid", pid, "mode", mode.String(), "sample_rate", c.format.SampleRate, "channels", c.format.Channels)

	go c.run(endpoint, c.queue, assembler, eventWaitTimeout)

	return nil
}

// run is the capture worker thread (thread B, spec.md §5). It never calls
// into client-supplied code and never allocates after the buffers sized at
// Start.
func (c *Capture) run(endpoint Endpoint, queue *FrameQueue, assembler *Assembler, eventWaitTimeout time.Duration) {
	defer close(c.workerDone)

	sink := func(chunk Chunk) {
		if !queue.TryPush(chunk) {
			queue.RecordError(ErrQueueOverflow)
			assembler.Release(chunk)
		}
	}

	for {
		select {
		case <-c.stopCh:
			assembler.Flush(uint64(time.Now().UnixNano()/100), sink)
			return
		default:
		}

		signaled := endpoint.WaitFrames(eventWaitTimeout)
		if !signaled {
			continue
		}

		err := endpoint.PullPackets(func(samples []float32, frameCount uint32, discontinuous bool, gapFrames uint32, timestamp100ns uint64) {
			if discontinuous {
				assembler.MarkGap(gapFrames, timestamp100ns, sink)
			}
			assembler.Feed(samples, frameCount, timestamp100ns, sink)
		})

		if err != nil {
			queue.RecordError(ErrCaptureFatal)
			c.lastErr.Store(ErrCaptureFatal)
			c.mu.Lock()
			c.state = StateFailed
			c.mu.Unlock()
			c.logger.Error("capture worker fatal pull error", "error", err)
			assembler.Flush(uint64(time.Now().UnixNano()/100), sink)
			return
		}
	}
}

// Stop tears down the session, joining the worker thread. Idempotent and
// always leaves the object idle (spec.md §4.3, §7).
func (c *Capture) Stop() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	if c.state == StateActivating {
		// The activation goroutine has no handle to cancel synchronously
		// here; mark idle now so a concurrent Start is legal immediately.
		// Start's own completion re-checks the state once Activate
		// returns and abandons the session (closing the endpoint, if any)
		// instead of resurrecting it as running.
		c.state = StateIdle
		c.lastErr.Store(ErrNone)
		if c.queue != nil {
			c.queue.ResetLastError()
		}
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	stopCh := c.stopCh
	workerDone := c.workerDone
	queue := c.queue
	endpoint := c.endpoint
	c.mu.Unlock()

	if stopCh != nil {
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
	}
	if workerDone != nil {
		<-workerDone
	}
	if queue != nil {
		queue.Drain()
	}
	if endpoint != nil {
		_ = endpoint.Close()
	}

	c.mu.Lock()
	c.state = StateIdle
	c.endpoint = nil
	c.lastErr.Store(ErrNone)
	if c.queue != nil {
		c.queue.ResetLastError()
	}
	c.mu.Unlock()

	c.logger.Info("capture stopped")
}

// PopBatch returns up to maxN chunks, blocking up to timeout while the
// queue is empty. Legal in any state; an object that was never started
// returns ErrInvalidState instead of a chunk list.
func (c *Capture) PopBatch(maxN uint32, timeout time.Duration) ([]Chunk, error) {
	c.mu.Lock()
	queue := c.queue
	metrics := c.metrics
	c.mu.Unlock()

	if queue == nil {
		return nil, newKindError(ErrInvalidState, "pop_batch called before start")
	}

	before := queue.Metrics()
	chunks := queue.PopBatch(maxN, timeout)
	if metrics != nil {
		metrics.observe(queue.Metrics(), before)
	}
	return chunks, nil
}

// IsRunning reports whether the session is in the running state.
func (c *Capture) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning
}

// State returns the current lifecycle state.
func (c *Capture) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Format returns the negotiated format. Valid only while running.
func (c *Capture) Format() AudioFormat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// Metrics returns the queue's observational snapshot plus the sticky last
// worker error (spec.md §6).
func (c *Capture) Metrics() Metrics {
	c.mu.Lock()
	queue := c.queue
	c.mu.Unlock()

	if queue == nil {
		return Metrics{LastError: c.lastErr.Load().(ErrorKind)}
	}
	m := queue.Metrics()
	if last, ok := c.lastErr.Load().(ErrorKind); ok && last != ErrNone {
		m.LastError = last
	}
	return m
}
