//go:build windows

package ploopback

import (
	"context"
	"time"

	"github.com/go-ole/go-ole"

	"github.com/tphakala/birdnet-go/internal/wasapi"
)

// windowsEndpoint is the production Endpoint: a process-scoped loopback
// activation (C4) plus the event-driven pull session it initializes into
// (C3's platform half).
type windowsEndpoint struct {
	session *wasapi.LoopbackSession
	format  AudioFormat
}

// NewPlatformEndpoint is the EndpointFactory wired into production Capture
// instances on Windows.
func NewPlatformEndpoint() Endpoint {
	return &windowsEndpoint{}
}

func (e *windowsEndpoint) Activate(ctx context.Context, pid uint32, mode InclusionMode, timeout time.Duration) error {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		if hr, ok := err.(interface{ Code() uintptr }); !ok || hr.Code() != 0x00000001 {
			return wrapKindError(ErrEndpointInitFailed, err)
		}
	}

	client, err := wasapi.ActivateProcessLoopback(pid, toWASAPIMode(mode), timeout)
	if err != nil {
		return classifyActivationError(err)
	}

	wcaClient := wasapi.WrapActivatedClient(client)
	session, err := wasapi.NewLoopbackSession(wcaClient)
	if err != nil {
		return wrapKindError(ErrEndpointInitFailed, err)
	}

	sampleRate, channels := session.Format()
	e.session = session
	e.format = AudioFormat{
		SampleRate: sampleRate,
		Channels:   channels,
		Encoding:   Float32Encoding,
	}
	return nil
}

func toWASAPIMode(mode InclusionMode) wasapi.InclusionMode {
	switch mode {
	case ExcludeTree:
		return wasapi.InclusionExcludeTree
	case ProcessOnly:
		return wasapi.InclusionProcessOnly
	default:
		return wasapi.InclusionIncludeTree
	}
}

// classifyActivationError maps the wasapi layer's generic activation error
// onto the engine's stable kinds (spec.md §4.4 "Failure modes").
func classifyActivationError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case wasapi.IsTimeout(err):
		return wrapKindError(ErrActivationTimeout, err)
	case wasapi.IsAccessDenied(err):
		return wrapKindError(ErrAccessDenied, err)
	case wasapi.IsNoSuchProcess(err):
		return wrapKindError(ErrNoSuchProcess, err)
	case wasapi.IsUnsupportedPlatform(err):
		return wrapKindError(ErrUnsupportedPlatform, err)
	default:
		return wrapKindError(ErrEndpointInitFailed, err)
	}
}

func (e *windowsEndpoint) Format() AudioFormat {
	return e.format
}

func (e *windowsEndpoint) WaitFrames(timeout time.Duration) bool {
	if e.session == nil {
		return false
	}
	return e.session.Wait(timeout)
}

func (e *windowsEndpoint) PullPackets(fn func(samples []float32, frameCount uint32, discontinuous bool, gapFrames uint32, timestamp100ns uint64)) error {
	if e.session == nil {
		return newKindError(ErrCaptureFatal, "pull called on an unactivated endpoint")
	}
	return e.session.Pull(func(samples []float32, frameCount uint32, discontinuous, silent bool, qpcPosition100ns uint64) {
		gapFrames := uint32(0)
		if discontinuous {
			// The platform reports only that a discontinuity occurred, not
			// its exact frame span; the flagged packet's own frame count is
			// the engine's best-effort estimate, consistent with "emits
			// chunks covering at least the gap" (spec.md §4.2).
			gapFrames = frameCount
		}
		fn(samples, frameCount, discontinuous, gapFrames, qpcPosition100ns)
	})
}

func (e *windowsEndpoint) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	return err
}
