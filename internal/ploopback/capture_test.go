package ploopback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeEndpoint is a deterministic, in-process stand-in for the Windows
// WASAPI endpoint, driven entirely by test-controlled channels.
type fakeEndpoint struct {
	mu          sync.Mutex
	activateErr error
	format      AudioFormat
	packets     chan packet
	closed      bool

	pullErr error
}

type packet struct {
	samples       []float32
	frameCount    uint32
	discontinuous bool
	gapFrames     uint32
	timestamp     uint64
}

func newFakeEndpoint(format AudioFormat) *fakeEndpoint {
	return &fakeEndpoint{
		format:  format,
		packets: make(chan packet, 64),
	}
}

func (f *fakeEndpoint) Activate(ctx context.Context, pid uint32, mode InclusionMode, timeout time.Duration) error {
	return f.activateErr
}

func (f *fakeEndpoint) Format() AudioFormat { return f.format }

func (f *fakeEndpoint) WaitFrames(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(f.packets) > 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return len(f.packets) > 0
}

func (f *fakeEndpoint) PullPackets(fn func(samples []float32, frameCount uint32, discontinuous bool, gapFrames uint32, timestamp100ns uint64)) error {
	f.mu.Lock()
	err := f.pullErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	for {
		select {
		case p := <-f.packets:
			fn(p.samples, p.frameCount, p.discontinuous, p.gapFrames, p.timestamp)
		default:
			return nil
		}
	}
}

func (f *fakeEndpoint) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEndpoint) push(p packet) {
	f.packets <- p
}

func newTestCapture(ep *fakeEndpoint) *Capture {
	return NewCapture(func() Endpoint { return ep }, prometheus.NewRegistry())
}

func TestCaptureStartRunStopLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
	)

	ep := newFakeEndpoint(AudioFormat{SampleRate: 48000, Channels: 1, Encoding: Float32Encoding})
	c := newTestCapture(ep)

	require.Equal(t, StateIdle, c.State())

	err := c.Start(context.Background(), 1234, IncludeTree, 4, 16, time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, c.State())
	assert.True(t, c.IsRunning())

	ep.push(packet{samples: []float32{1, 2, 3, 4}, frameCount: 4, timestamp: 10})

	chunks, err := c.PopBatch(10, 200*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []float32{1, 2, 3, 4}, chunks[0].Samples)

	c.Stop()
	assert.Equal(t, StateIdle, c.State())
}

func TestCaptureStartFailsWhenNotIdle(t *testing.T) {
	ep := newFakeEndpoint(AudioFormat{SampleRate: 48000, Channels: 1})
	c := newTestCapture(ep)

	require.NoError(t, c.Start(context.Background(), 1, IncludeTree, 4, 4, time.Second, 10*time.Millisecond))
	defer c.Stop()

	err := c.Start(context.Background(), 1, IncludeTree, 4, 4, time.Second, 10*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidState, KindOf(err))
}

func TestCaptureStartPropagatesActivationError(t *testing.T) {
	ep := newFakeEndpoint(AudioFormat{})
	ep.activateErr = wrapKindError(ErrNoSuchProcess, assertErr("no such process"))
	c := newTestCapture(ep)

	err := c.Start(context.Background(), 999, IncludeTree, 4, 4, time.Second, 10*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, ErrNoSuchProcess, KindOf(err))
	assert.Equal(t, StateIdle, c.State())
}

func TestCapturePopBatchBeforeStartReturnsInvalidState(t *testing.T) {
	ep := newFakeEndpoint(AudioFormat{})
	c := newTestCapture(ep)

	_, err := c.PopBatch(1, 0)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidState, KindOf(err))
}

func TestCaptureStopIsIdempotent(t *testing.T) {
	ep := newFakeEndpoint(AudioFormat{SampleRate: 48000, Channels: 1})
	c := newTestCapture(ep)

	require.NoError(t, c.Start(context.Background(), 1, IncludeTree, 4, 4, time.Second, 10*time.Millisecond))
	c.Stop()
	c.Stop()
	assert.Equal(t, StateIdle, c.State())
}

func TestCaptureWorkerFatalPullErrorTransitionsToFailed(t *testing.T) {
	ep := newFakeEndpoint(AudioFormat{SampleRate: 48000, Channels: 1})
	c := newTestCapture(ep)

	require.NoError(t, c.Start(context.Background(), 1, IncludeTree, 4, 4, time.Second, 5*time.Millisecond))
	defer c.Stop()

	ep.mu.Lock()
	ep.pullErr = assertErr("fatal pull failure")
	ep.mu.Unlock()
	ep.push(packet{samples: []float32{0}, frameCount: 1})

	require.Eventually(t, func() bool {
		return c.State() == StateFailed
	}, time.Second, 10*time.Millisecond)

	m := c.Metrics()
	assert.Equal(t, ErrCaptureFatal, m.LastError)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
