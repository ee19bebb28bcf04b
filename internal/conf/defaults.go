package conf

import "github.com/spf13/viper"

// setDefaultConfig registers viper defaults so a field absent from the
// config file (or from the embedded template) still resolves sensibly.
func setDefaultConfig() {
	viper.SetDefault("main.name", "ploopback")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/ploopback.log")
	viper.SetDefault("main.log.rotation", string(RotationDaily))
	viper.SetDefault("main.log.maxsize", 10*1024*1024)

	viper.SetDefault("capture.chunkduration", DefaultChunkDuration)
	viper.SetDefault("capture.queuecapacitychunks", DefaultQueueCapacityChunks)
	viper.SetDefault("capture.activationtimeout", DefaultActivationTimeout)
	viper.SetDefault("capture.eventwaittimeout", DefaultEventWaitTimeout)
	viper.SetDefault("capture.defaultinclusionmode", "process_only")

	viper.SetDefault("telemetry.enabled", false)
}

// applyDefaults fills any zero-valued fields Unmarshal left behind (e.g.
// when a partial user config omits a section viper has no default key for).
func applyDefaults(s *Settings) {
	if s.Capture.ChunkDuration == 0 {
		s.Capture.ChunkDuration = DefaultChunkDuration
	}
	if s.Capture.QueueCapacityChunks == 0 {
		s.Capture.QueueCapacityChunks = DefaultQueueCapacityChunks
	}
	if s.Capture.ActivationTimeout == 0 {
		s.Capture.ActivationTimeout = DefaultActivationTimeout
	}
	if s.Capture.EventWaitTimeout == 0 {
		s.Capture.EventWaitTimeout = DefaultEventWaitTimeout
	}
	if s.Capture.DefaultInclusionMode == "" {
		s.Capture.DefaultInclusionMode = "process_only"
	}
}
