//go:build windows

package wasapi

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca"
	"golang.org/x/sys/windows"
)

// LoopbackSession is an activated, event-driven IAudioClient plus its
// capture client and "frames available" event (spec.md §4.4 step 4). It is
// the Windows realization of ploopback.Endpoint's pull half; activation
// itself lives in activation.go.
type LoopbackSession struct {
	client  *wca.IAudioClient
	capture *wca.IAudioCaptureClient
	event   windows.Handle
	format  wca.WAVEFORMATEX

	// scratch is sized once from the endpoint's reported buffer size and
	// reused by every Pull call so thread B never allocates per packet
	// (spec.md §5 "no heap allocation on thread B after start returns").
	scratch []float32
}

// defaultBufferDuration is passed to IAudioClient.Initialize as hnsBufferDuration.
// 200ms matches the reference shared-mode capture example this package
// generalizes from.
const defaultBufferDuration = 200 * 10000 // 100ns units

// WrapActivatedClient reinterprets the raw IAudioClient pointer
// ActivateAudioInterfaceAsync returned as a *wca.IAudioClient. The
// process-loopback virtual device hands back a standard IAudioClient, so
// every subsequent call goes through go-wca unchanged.
func WrapActivatedClient(handle *IAudioClientHandle) *wca.IAudioClient {
	return (*wca.IAudioClient)(unsafe.Pointer(handle))
}

// NewLoopbackSession initializes client in event-driven shared mode and
// retrieves its capture client and negotiated format. Process-scoped
// loopback does not set AUDCLNT_STREAMFLAGS_LOOPBACK: the virtual device
// selected at activation already is the loopback stream; only the
// event-callback flag is needed.
func NewLoopbackSession(client *wca.IAudioClient) (*LoopbackSession, error) {
	var wfx *wca.WAVEFORMATEX
	if err := client.GetMixFormat(&wfx); err != nil {
		return nil, fmt.Errorf("get mix format: %w", err)
	}
	defer ole.CoTaskMemFree(uintptr(unsafe.Pointer(wfx)))

	format := *wfx

	if err := client.Initialize(wca.AUDCLNT_SHAREMODE_SHARED, wca.AUDCLNT_STREAMFLAGS_EVENTCALLBACK, defaultBufferDuration, 0, wfx, nil); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	event, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	if err := client.SetEventHandle(uintptr(event)); err != nil {
		windows.CloseHandle(event)
		return nil, fmt.Errorf("set event handle: %w", err)
	}

	var capture *wca.IAudioCaptureClient
	if err := client.GetService(wca.IID_IAudioCaptureClient, &capture); err != nil {
		windows.CloseHandle(event)
		return nil, fmt.Errorf("get capture client: %w", err)
	}

	if err := client.Start(); err != nil {
		capture.Release()
		windows.CloseHandle(event)
		return nil, fmt.Errorf("start: %w", err)
	}

	var bufferFrameSize uint32
	if err := client.GetBufferSize(&bufferFrameSize); err != nil {
		_ = client.Stop()
		capture.Release()
		windows.CloseHandle(event)
		return nil, fmt.Errorf("get buffer size: %w", err)
	}

	return &LoopbackSession{
		client:  client,
		capture: capture,
		event:   event,
		format:  format,
		scratch: make([]float32, int(bufferFrameSize)*int(format.NChannels)),
	}, nil
}

// Format returns the negotiated WAVEFORMATEX as (sampleRate, channels).
// This engine only ever requests/uses the 32-bit IEEE float encoding
// (spec.md §3); the endpoint layer trusts the platform's mix format, which
// is always IEEE float for the shared-mode render path loopback captures.
func (s *LoopbackSession) Format() (sampleRate, channels int) {
	return int(s.format.NSamplesPerSec), int(s.format.NChannels)
}

// Wait blocks up to timeout for the frames-available event.
func (s *LoopbackSession) Wait(timeout time.Duration) bool {
	ms := uint32(timeout / time.Millisecond)
	ret, err := windows.WaitForSingleObject(s.event, ms)
	return err == nil && ret == windows.WAIT_OBJECT_0
}

// bufferFlags mirrors the AUDCLNT_BUFFERFLAGS_* bits go-wca exposes.
const (
	bufferFlagDataDiscontinuity = 0x1
	bufferFlagSilent            = 0x2
)

// Pull drains every packet currently queued at the capture client, invoking
// fn once per packet with its samples (as float32, reinterpreted from the
// raw IEEE-float buffer), frame count, discontinuity flag, and the
// endpoint-reported QPC position as the capture timestamp in 100ns units
// (spec.md §4.3 step 3, §6 "timestamp_100ns"). GetBuffer's devicePosition
// output is a frame counter, not a time; qpcPosition is the one already
// expressed in 100ns ticks.
//
// The slice passed to fn is a window into s.scratch, reused across every
// packet and every call: fn must not retain it past its own return
// (spec.md §5 "no heap allocation on thread B after start returns").
func (s *LoopbackSession) Pull(fn func(samples []float32, frameCount uint32, discontinuous, silent bool, qpcPosition100ns uint64)) error {
	for {
		var packetLength uint32
		if err := s.capture.GetNextPacketSize(&packetLength); err != nil {
			return fmt.Errorf("get next packet size: %w", err)
		}
		if packetLength == 0 {
			return nil
		}

		var data *byte
		var availableFrames uint32
		var flags uint32
		var devicePosition uint64
		var qpcPosition uint64

		if err := s.capture.GetBuffer(&data, &availableFrames, &flags, &devicePosition, &qpcPosition); err != nil {
			return fmt.Errorf("get buffer: %w", err)
		}

		discontinuous := flags&bufferFlagDataDiscontinuity != 0
		silent := flags&bufferFlagSilent != 0

		n := int(availableFrames) * int(s.format.NChannels)
		if n > len(s.scratch) {
			// Defensive: GetBufferSize's reported capacity should bound every
			// packet, but fall back to growing rather than corrupt memory if
			// the device ever hands back more than it advertised.
			s.scratch = make([]float32, n)
		}
		samples := s.scratch[:n]
		if !silent && data != nil {
			src := unsafe.Slice((*float32)(unsafe.Pointer(data)), n)
			copy(samples, src)
		} else {
			// scratch is reused across packets; a silent packet must not
			// surface stale samples from a previous, larger packet.
			clear(samples)
		}

		fn(samples, availableFrames, discontinuous, silent, qpcPosition)

		if err := s.capture.ReleaseBuffer(availableFrames); err != nil {
			return fmt.Errorf("release buffer: %w", err)
		}
	}
}

// Close stops the client and releases every COM resource this session
// owns. Idempotent.
func (s *LoopbackSession) Close() error {
	if s.client != nil {
		_ = s.client.Stop()
	}
	if s.capture != nil {
		s.capture.Release()
		s.capture = nil
	}
	if s.client != nil {
		s.client.Release()
		s.client = nil
	}
	if s.event != 0 {
		windows.CloseHandle(s.event)
		s.event = 0
	}
	return nil
}
