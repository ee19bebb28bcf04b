//go:build !windows

package ploopback

import (
	"context"
	"time"
)

// unsupportedEndpoint is the non-Windows stand-in: every operation reports
// ErrUnsupportedPlatform, as spec.md §1 requires for non-Windows builds
// ("compile... but report unsupported_platform for every operation").
type unsupportedEndpoint struct{}

// NewPlatformEndpoint is the EndpointFactory wired into production Capture
// instances. On non-Windows GOOS it always fails activation.
func NewPlatformEndpoint() Endpoint {
	return &unsupportedEndpoint{}
}

func (e *unsupportedEndpoint) Activate(ctx context.Context, pid uint32, mode InclusionMode, timeout time.Duration) error {
	return newKindError(ErrUnsupportedPlatform, "process-scoped loopback activation requires Windows")
}

func (e *unsupportedEndpoint) Format() AudioFormat { return AudioFormat{} }

func (e *unsupportedEndpoint) WaitFrames(timeout time.Duration) bool { return false }

func (e *unsupportedEndpoint) PullPackets(fn func(samples []float32, frameCount uint32, discontinuous bool, gapFrames uint32, timestamp100ns uint64)) error {
	return newKindError(ErrUnsupportedPlatform, "process-scoped loopback activation requires Windows")
}

func (e *unsupportedEndpoint) Close() error { return nil }
