package conf

import "fmt"

// validateSettings rejects settings combinations that would make the
// capture engine or its ambient collaborators misbehave.
func validateSettings(s *Settings) error {
	switch s.Capture.DefaultInclusionMode {
	case "include_tree", "exclude_tree", "process_only":
	default:
		return fmt.Errorf("capture.defaultinclusionmode: unknown mode %q", s.Capture.DefaultInclusionMode)
	}

	if s.Capture.QueueCapacityChunks == 0 {
		return fmt.Errorf("capture.queuecapacitychunks must be positive")
	}

	if s.Telemetry.Enabled && s.Telemetry.DSN == "" {
		// Not fatal: telemetry silently stays disabled without a DSN.
		s.Telemetry.Enabled = false
	}

	return nil
}
