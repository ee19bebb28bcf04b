// conf/consts.go hard coded constants
package conf

import "time"

const (
	// DefaultChunkDuration is the default chunk size the chunk assembler
	// emits, expressed as a duration at the endpoint's negotiated sample
	// rate. 50ms matches the engine's reference chunk granularity.
	DefaultChunkDuration = 50 * time.Millisecond

	// DefaultQueueCapacityChunks sizes the frame queue for roughly one
	// second of audio at the default chunk duration.
	DefaultQueueCapacityChunks = 20

	// DefaultActivationTimeout bounds how long start() waits for the
	// platform's activation completion callback.
	DefaultActivationTimeout = 5 * time.Second

	// DefaultEventWaitTimeout bounds how long the capture worker blocks on
	// the endpoint's "frames available" event before re-checking the stop
	// flag.
	DefaultEventWaitTimeout = 200 * time.Millisecond
)
