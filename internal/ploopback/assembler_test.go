package ploopback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monoFormat() AudioFormat {
	return AudioFormat{SampleRate: 48000, Channels: 1, Encoding: Float32Encoding}
}

func TestAssemblerFeedEmitsWholeChunksOnly(t *testing.T) {
	a := NewAssembler(monoFormat(), 4)

	var got []Chunk
	sink := func(c Chunk) { got = append(got, c) }

	a.Feed([]float32{1, 2, 3, 4, 5, 6}, 6, 100, sink)

	require.Len(t, got, 1)
	assert.Equal(t, []float32{1, 2, 3, 4}, got[0].Samples)
	assert.False(t, got[0].Silent)
	assert.EqualValues(t, 0, got[0].Sequence)
}

func TestAssemblerFeedAcrossMultipleCallsCompletesChunk(t *testing.T) {
	a := NewAssembler(monoFormat(), 4)

	var got []Chunk
	sink := func(c Chunk) { got = append(got, c) }

	a.Feed([]float32{1, 2}, 2, 100, sink)
	assert.Empty(t, got)

	a.Feed([]float32{3, 4}, 2, 200, sink)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{1, 2, 3, 4}, got[0].Samples)
}

func TestAssemblerMarkGapEmitsSilentChunksWithoutTouchingPending(t *testing.T) {
	a := NewAssembler(monoFormat(), 4)

	var got []Chunk
	sink := func(c Chunk) { got = append(got, c) }

	a.Feed([]float32{1, 2}, 2, 100, sink)
	require.Empty(t, got)

	a.MarkGap(5, 150, sink)

	require.Len(t, got, 2)
	assert.True(t, got[0].Silent)
	assert.True(t, got[1].Silent)

	a.Feed([]float32{3, 4}, 2, 300, sink)
	require.Len(t, got, 3)
	assert.False(t, got[2].Silent)
	assert.Equal(t, []float32{1, 2, 3, 4}, got[2].Samples)
}

func TestAssemblerFlushPadsResidual(t *testing.T) {
	a := NewAssembler(monoFormat(), 4)

	var got []Chunk
	sink := func(c Chunk) { got = append(got, c) }

	a.Feed([]float32{1, 2}, 2, 100, sink)
	a.Flush(999, sink)

	require.Len(t, got, 1)
	assert.Equal(t, []float32{1, 2, 0, 0}, got[0].Samples)
	assert.False(t, got[0].Silent)
}

func TestAssemblerFlushNoOpWhenEmpty(t *testing.T) {
	a := NewAssembler(monoFormat(), 4)

	var got []Chunk
	sink := func(c Chunk) { got = append(got, c) }

	a.Flush(0, sink)
	assert.Empty(t, got)
}

func TestAssemblerSequenceIsMonotonic(t *testing.T) {
	a := NewAssembler(monoFormat(), 2)

	var got []Chunk
	sink := func(c Chunk) { got = append(got, c) }

	a.Feed([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 8, 0, sink)

	require.Len(t, got, 4)
	for i, c := range got {
		assert.EqualValues(t, i, c.Sequence)
	}
}
