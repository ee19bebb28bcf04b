package ploopback

import (
	"context"
	"time"
)

// Endpoint is the platform-specific half of the Activation Protocol and
// Capture Engine (C4/C3): a process-scoped loopback stream, already
// activated and initialized in event-driven mode by the time the
// CaptureEngine holds one. The Windows implementation lives in
// endpoint_windows.go; every other GOOS reports ErrUnsupportedPlatform from
// Activate (see endpoint_other.go).
type Endpoint interface {
	// Activate performs the asynchronous completion-callback activation
	// (spec.md §4.4), waits up to timeout for the result, and on success
	// initializes the endpoint in event-driven mode. It returns a kinded
	// error on failure (ErrUnsupportedPlatform, ErrNoSuchProcess,
	// ErrAccessDenied, ErrActivationTimeout, ErrEndpointInitFailed).
	Activate(ctx context.Context, pid uint32, mode InclusionMode, timeout time.Duration) error

	// Format returns the endpoint's negotiated format. Valid only after a
	// successful Activate.
	Format() AudioFormat

	// WaitFrames blocks up to timeout for the "frames available" event. It
	// returns true if the event was signaled, false on timeout.
	WaitFrames(timeout time.Duration) bool

	// PullPackets drains every packet currently available from the
	// endpoint, invoking fn once per packet with the packet's samples,
	// frame count, discontinuity flag, reported gap size in frames (valid
	// only when discontinuous), and capture timestamp in 100ns units. It
	// returns a kinded error (ErrCaptureFatal) on a non-retryable pull
	// failure.
	PullPackets(fn func(samples []float32, frameCount uint32, discontinuous bool, gapFrames uint32, timestamp100ns uint64)) error

	// Close releases the endpoint, its event handle, and any COM resources.
	// Idempotent.
	Close() error
}

// EndpointFactory constructs a fresh, unactivated Endpoint. Exists so tests
// can substitute a fake endpoint without touching platform code.
type EndpointFactory func() Endpoint
