package ploopback

import (
	"sync"
	"time"
)

// pendingMargin sizes the assembler's staging buffer as a multiple of one
// chunk so a burst of endpoint packets can accumulate between drains
// without ever growing the backing array: device periods are always much
// smaller than the configured chunk duration, so in practice this margin
// is never approached.
const pendingMargin = 4

// Assembler converts the variable-sized packets returned by the endpoint
// into fixed-size Chunks of the chunkFrames count given to NewAssembler (the
// assembler has no default of its own), synthesizing silent Chunks to cover
// reported data-discontinuities
// (spec.md §4.2). It is grounded on the same staging-buffer-plus-target-size
// pattern used elsewhere in this codebase to assemble fixed windows out of
// arbitrary-sized audio writes, generalized here with a pre-reserved
// staging buffer and a pooled chunk-buffer allocator (the same sync.Pool
// idiom as the teacher's internal/myaudio float32 buffer pool) so thread B
// never allocates after Start (spec.md §5 "no heap allocation on thread B").
type Assembler struct {
	format      AudioFormat
	chunkFrames uint32
	frameSize   int

	pending  []float32 // staged real samples, never mixed with gap silence
	silence  []float32 // immutable zero buffer reused by every MarkGap call
	pool     sync.Pool // chunk-sized []float32 buffers handed out by emit
	sequence uint64
}

// NewAssembler constructs an assembler for the given format and chunk size.
func NewAssembler(format AudioFormat, chunkFrames uint32) *Assembler {
	channels := format.Channels
	if channels <= 0 {
		channels = 1
	}
	frameSize := int(chunkFrames) * channels
	if frameSize <= 0 {
		frameSize = 1
	}

	a := &Assembler{
		format:      format,
		chunkFrames: chunkFrames,
		frameSize:   frameSize,
		pending:     make([]float32, 0, frameSize*pendingMargin),
		silence:     make([]float32, frameSize),
	}
	a.pool.New = func() any {
		return make([]float32, frameSize)
	}
	return a
}

// Feed appends samples (interleaved float32, frameCount frames) to the
// staging buffer and emits every complete Chunk to sink, in order. A
// data-discontinuity flag should be handled by calling MarkGap first.
func (a *Assembler) Feed(samples []float32, frameCount uint32, timestamp100ns uint64, sink func(Chunk)) {
	a.pending = append(a.pending, samples...)
	a.drainComplete(timestamp100ns, sink)
}

// MarkGap synthesizes whole silent Chunks covering at least gapFrames of
// missing audio. Synthesized chunks are emitted directly, never mixed into
// the real staging buffer, so a chunk later completed from leftover real
// samples is never marked silent (spec.md §4.2: "partially-silent packets
// carry silent=false"). The zero source buffer is allocated once at
// construction and never mutated; emit copies it into a pooled chunk
// buffer per Chunk.
func (a *Assembler) MarkGap(gapFrames uint32, timestamp100ns uint64, sink func(Chunk)) {
	if a.chunkFrames == 0 {
		return
	}
	n := (gapFrames + a.chunkFrames - 1) / a.chunkFrames // ceil: "at least the gap"
	for i := uint32(0); i < n; i++ {
		a.emit(a.silence, timestamp100ns, true, sink)
	}
}

// Flush zero-pads any residual staging to complete one final Chunk if
// non-empty and emits it. Called during teardown. The pad grows pending
// in place using its pre-reserved capacity, never reallocating.
func (a *Assembler) Flush(timestamp100ns uint64, sink func(Chunk)) {
	if len(a.pending) == 0 {
		return
	}
	need := a.frameSize - len(a.pending)
	if need > 0 {
		filled := len(a.pending)
		a.pending = a.pending[:a.frameSize]
		clear(a.pending[filled:])
	}
	a.emit(a.pending[:a.frameSize], timestamp100ns, false, sink)
	a.pending = a.pending[:0]
}

// drainComplete emits every whole chunk currently staged from real samples,
// shifting any leftover tail to the front of pending's existing backing
// array instead of allocating a new one.
func (a *Assembler) drainComplete(timestamp100ns uint64, sink func(Chunk)) {
	if a.frameSize <= 0 {
		return
	}
	for len(a.pending) >= a.frameSize {
		a.emit(a.pending[:a.frameSize], timestamp100ns, false, sink)
		remaining := copy(a.pending, a.pending[a.frameSize:])
		a.pending = a.pending[:remaining]
	}
}

// emit copies samples into a buffer drawn from the chunk pool and hands the
// resulting Chunk to sink. The copy is the only per-chunk work on thread B;
// the destination buffer itself came from the pool, not a fresh make.
func (a *Assembler) emit(samples []float32, timestamp100ns uint64, silent bool, sink func(Chunk)) {
	buf := a.pool.Get().([]float32)
	copy(buf, samples)

	channels := a.format.Channels
	if channels <= 0 {
		channels = 1
	}

	c := Chunk{
		Samples:        buf,
		FrameCount:     uint32(len(samples) / channels),
		Sequence:       a.sequence,
		Silent:         silent,
		Timestamp100ns: timestamp100ns,
	}
	a.sequence++
	sink(c)
}

// Release returns a Chunk's buffer to the pool. Called when a Chunk was
// never handed to the consumer (the frame queue rejected it as full), so
// the pool can hand the same memory back out on the next emit instead of
// allocating (spec.md §4.1 drop-newest policy; §5 no allocation on thread B).
func (a *Assembler) Release(c Chunk) {
	if len(c.Samples) == a.frameSize {
		a.pool.Put(c.Samples)
	}
}

// chunkDurationFrames converts a chunk duration to a frame count at the
// given sample rate, rounding to the nearest frame.
func chunkDurationFrames(d time.Duration, sampleRate int) uint32 {
	frames := d.Seconds() * float64(sampleRate)
	return uint32(frames + 0.5)
}
