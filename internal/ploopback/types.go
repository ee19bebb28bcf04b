// Package ploopback implements the per-process WASAPI loopback capture
// engine: a bounded frame queue, a chunk assembler, the capture state
// machine, and a session directory for per-process volume/mute control.
package ploopback

import "time"

// AudioFormat describes the negotiated format of a capture session. It is
// set once at endpoint activation and never mutated afterward.
type AudioFormat struct {
	SampleRate int // Hz
	Channels   int
	// Encoding is always 32-bit interleaved IEEE float; the field exists so
	// future formats have somewhere to go without changing the Chunk shape.
	Encoding string
}

// Float32Encoding is the only encoding this engine ever produces.
const Float32Encoding = "float32le"

// Chunk is a fixed-frame-count block of interleaved float32 samples handed
// from the capture worker to the consumer through a FrameQueue. A Chunk is
// exclusively owned by whichever side currently holds it.
type Chunk struct {
	Samples        []float32
	FrameCount     uint32
	Sequence       uint64
	Silent         bool
	Timestamp100ns uint64
}

// InclusionMode selects which processes in the target's tree are captured.
type InclusionMode int

const (
	// IncludeTree captures the target process and its descendants.
	IncludeTree InclusionMode = iota
	// ExcludeTree captures every process except the target and its descendants.
	ExcludeTree
	// ProcessOnly names the target process alone. The Windows endpoint
	// sends it to the platform as the include-tree mode, so the target's
	// descendants are captured as well.
	ProcessOnly
)

// String renders the inclusion mode the way the CLI and logs present it.
func (m InclusionMode) String() string {
	switch m {
	case IncludeTree:
		return "include_tree"
	case ExcludeTree:
		return "exclude_tree"
	case ProcessOnly:
		return "process_only"
	default:
		return "unknown"
	}
}

// ParseInclusionMode accepts the three canonical mode names.
func ParseInclusionMode(s string) (InclusionMode, bool) {
	switch s {
	case "include_tree":
		return IncludeTree, true
	case "exclude_tree":
		return ExcludeTree, true
	case "process_only":
		return ProcessOnly, true
	default:
		return ProcessOnly, false
	}
}

// SessionState is the CaptureSession lifecycle state (spec §4.3).
type SessionState int

const (
	StateIdle SessionState = iota
	StateActivating
	StateRunning
	StateStopping
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActivating:
		return "activating"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AudioSessionState mirrors the platform's per-session mixer state.
type AudioSessionState int

const (
	SessionInactive AudioSessionState = iota
	SessionActive
	SessionExpired
)

func (s AudioSessionState) String() string {
	switch s {
	case SessionInactive:
		return "inactive"
	case SessionActive:
		return "active"
	case SessionExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// AudioSession is one row of a Directory enumeration: the platform's
// per-process mixer node. Rows are valid only for the enumeration that
// produced them; callers that want fresh data must re-enumerate.
type AudioSession struct {
	ProcessID   uint32
	ProcessName string
	DisplayName string
	State       AudioSessionState
	Volume      float32
	Muted       bool
}

// Metrics is the non-blocking observational snapshot exposed by both the
// FrameQueue and the Capture object.
type Metrics struct {
	Enqueued    uint64
	Dropped     uint64
	Errors      uint64
	CurrentSize uint32
	LastError   ErrorKind
}

// defaultQueueWindow sizes a FrameQueue for roughly one second of audio
// given a chunk duration, matching spec.md §4.1's "default ~1 second".
func defaultQueueWindow(chunkDuration time.Duration) uint32 {
	if chunkDuration <= 0 {
		return 20
	}
	n := time.Second / chunkDuration
	if n < 1 {
		return 1
	}
	return uint32(n)
}
