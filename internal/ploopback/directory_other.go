//go:build !windows

package ploopback

// unsupportedDirectory is the non-Windows stand-in for the session
// directory (spec.md §1: non-Windows builds compile but report
// unsupported_platform for every operation).
type unsupportedDirectory struct{}

// NewPlatformDirectory is the constructor wired into production CLI code.
func NewPlatformDirectory() Directory {
	return &unsupportedDirectory{}
}

func (d *unsupportedDirectory) Enumerate() ([]AudioSession, error) {
	return nil, newKindError(ErrUnsupportedPlatform, "audio session directory requires Windows")
}

func (d *unsupportedDirectory) SetVolume(pid uint32, volume float32) (bool, error) {
	return false, newKindError(ErrUnsupportedPlatform, "audio session directory requires Windows")
}

func (d *unsupportedDirectory) SetMute(pid uint32, muted bool) (bool, error) {
	return false, newKindError(ErrUnsupportedPlatform, "audio session directory requires Windows")
}

func (d *unsupportedDirectory) GetVolume(pid uint32) (float32, bool, error) {
	return 0, false, newKindError(ErrUnsupportedPlatform, "audio session directory requires Windows")
}

func (d *unsupportedDirectory) GetMute(pid uint32) (bool, bool, error) {
	return false, false, newKindError(ErrUnsupportedPlatform, "audio session directory requires Windows")
}
