// Package capture implements the "capture" CLI subcommand: an external
// collaborator that drives internal/ploopback.Capture and writes the
// resulting chunks to a canonical 16-bit PCM .wav file.
package capture

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdnet-go/internal/conf"
	"github.com/tphakala/birdnet-go/internal/logging"
	"github.com/tphakala/birdnet-go/internal/ploopback"
)

// assumedSampleRate sizes the requested chunk duration before activation
// tells us the endpoint's real negotiated rate; a mismatch only changes the
// chunk's wall-clock duration, never its correctness.
const assumedSampleRate = 48000

// options holds the flag values bound to this command.
type options struct {
	pid         uint32
	process     string
	mode        string
	output      string
	duration    time.Duration
	chunkMillis int
	queueDepth  uint32

	activationTimeout time.Duration
	eventWaitTimeout  time.Duration
}

// Command builds the "capture" subcommand wired into the root command.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture one process's audio output to a .wav file",
		Long:  `Captures the audio rendered by a single process (and optionally its descendants) using per-process WASAPI loopback, writing a 16-bit PCM .wav file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := setupFlags(cmd, opts, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, opts *options, settings *conf.Settings) error {
	chunkMillis := int(settings.Capture.ChunkDuration / time.Millisecond)
	if chunkMillis <= 0 {
		chunkMillis = 20
	}
	queueDepth := settings.Capture.QueueCapacityChunks
	if queueDepth == 0 {
		queueDepth = 50
	}
	mode := settings.Capture.DefaultInclusionMode
	if mode == "" {
		mode = "include_tree"
	}
	opts.activationTimeout = settings.Capture.ActivationTimeout
	opts.eventWaitTimeout = settings.Capture.EventWaitTimeout

	cmd.Flags().Uint32Var(&opts.pid, "pid", 0, "Target process id")
	cmd.Flags().StringVar(&opts.process, "process", "", "Target process name substring, resolved against the session directory")
	cmd.Flags().StringVar(&opts.mode, "mode", mode, "Inclusion mode: include_tree, exclude_tree, process_only")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "capture.wav", "Output .wav path")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop after this long; 0 runs until interrupted")
	cmd.Flags().IntVar(&opts.chunkMillis, "chunk-ms", chunkMillis, "Chunk size in milliseconds")
	cmd.Flags().Uint32Var(&opts.queueDepth, "queue-depth", queueDepth, "Frame queue capacity in chunks")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(opts *options) error {
	logger := logging.ForService("ploopback-cli")

	mode, ok := ploopback.ParseInclusionMode(opts.mode)
	if !ok {
		return fmt.Errorf("invalid --mode %q: must be include_tree, exclude_tree, or process_only", opts.mode)
	}

	pid, err := resolveTarget(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		fmt.Print("\n")
		fmt.Println("received interrupt, stopping capture...")
		cancel()
	}()

	if opts.duration > 0 {
		go func() {
			select {
			case <-time.After(opts.duration):
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	engine := ploopback.NewCapture(ploopback.NewPlatformEndpoint, nil)

	chunkFrames := uint32(opts.chunkMillis) * assumedSampleRate / 1000
	activationTimeout := opts.activationTimeout
	if activationTimeout <= 0 {
		activationTimeout = 5 * time.Second
	}
	eventWaitTimeout := opts.eventWaitTimeout
	if eventWaitTimeout <= 0 {
		eventWaitTimeout = 20 * time.Millisecond
	}

	if err := engine.Start(ctx, pid, mode, chunkFrames, opts.queueDepth, activationTimeout, eventWaitTimeout); err != nil {
		return err
	}
	defer engine.Stop()

	format := engine.Format()
	logger.Info("capture running", "pid", pid, "mode", mode.String(), "sample_rate", format.SampleRate, "channels", format.Channels, "output", opts.output)

	outFile, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer outFile.Close()

	encoder := wav.NewEncoder(outFile, format.SampleRate, 16, format.Channels, 1)
	defer encoder.Close()

	buf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: format.SampleRate, NumChannels: format.Channels},
		Data:   make([]int, 0, 4096),
	}

	for {
		select {
		case <-ctx.Done():
			drainRemaining(engine, encoder, buf)
			return nil
		default:
		}

		chunks, err := engine.PopBatch(8, 100*time.Millisecond)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			writeChunk(encoder, buf, c)
		}

		if engine.State() == ploopback.StateFailed {
			return fmt.Errorf("capture worker failed: %s", engine.Metrics().LastError.String())
		}
	}
}

func resolveTarget(opts *options) (uint32, error) {
	if opts.pid != 0 {
		return opts.pid, nil
	}
	if strings.TrimSpace(opts.process) == "" {
		return 0, fmt.Errorf("one of --pid or --process is required")
	}

	dir := ploopback.NewPlatformDirectory()
	sessions, err := dir.Enumerate()
	if err != nil {
		return 0, err
	}

	needle := strings.ToLower(opts.process)
	for _, s := range sessions {
		if strings.Contains(strings.ToLower(s.ProcessName), needle) {
			return s.ProcessID, nil
		}
	}
	return 0, fmt.Errorf("no audio session found matching process %q", opts.process)
}

func writeChunk(encoder *wav.Encoder, buf *audio.IntBuffer, c ploopback.Chunk) {
	buf.Data = buf.Data[:0]
	for _, s := range c.Samples {
		buf.Data = append(buf.Data, floatToInt16(s))
	}
	_ = encoder.Write(buf)
}

// floatToInt16 applies the symmetric scale-by-32767-with-saturation
// conversion: values outside [-1,1] clamp rather than wrap.
func floatToInt16(s float32) int {
	v := float64(s) * 32767
	if v > 32767 {
		v = 32767
	}
	if v < -32767 {
		v = -32767
	}
	return int(math.Round(v))
}

func drainRemaining(engine *ploopback.Capture, encoder *wav.Encoder, buf *audio.IntBuffer) {
	chunks, err := engine.PopBatch(64, 200*time.Millisecond)
	if err != nil {
		return
	}
	for _, c := range chunks {
		writeChunk(encoder, buf, c)
	}
}
