//go:build windows

package ploopback

import (
	"github.com/tphakala/birdnet-go/internal/wasapi"
)

// windowsDirectory is the production Directory: every call re-enumerates
// the default render endpoint's session manager through the wasapi package
// and releases it before returning (spec.md §4.5).
type windowsDirectory struct{}

// NewPlatformDirectory is the constructor wired into production CLI code.
func NewPlatformDirectory() Directory {
	return &windowsDirectory{}
}

func (d *windowsDirectory) Enumerate() ([]AudioSession, error) {
	rows, err := wasapi.EnumerateSessions()
	if err != nil {
		return nil, wrapKindError(ErrEndpointInitFailed, err)
	}

	sessions := make([]AudioSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, AudioSession{
			ProcessID:   row.ProcessID,
			ProcessName: resolveProcessName(row.ProcessID),
			DisplayName: row.DisplayName,
			State:       toAudioSessionState(row.State),
			Volume:      row.Volume,
			Muted:       row.Muted,
		})
	}
	return sessions, nil
}

func (d *windowsDirectory) SetVolume(pid uint32, volume float32) (bool, error) {
	found, err := wasapi.SetSessionVolume(pid, clampVolume(volume))
	if err != nil {
		return false, wrapKindError(ErrEndpointInitFailed, err)
	}
	return found, nil
}

func (d *windowsDirectory) SetMute(pid uint32, muted bool) (bool, error) {
	found, err := wasapi.SetSessionMute(pid, muted)
	if err != nil {
		return false, wrapKindError(ErrEndpointInitFailed, err)
	}
	return found, nil
}

func (d *windowsDirectory) GetVolume(pid uint32) (float32, bool, error) {
	volume, found, err := wasapi.GetSessionVolume(pid)
	if err != nil {
		return 0, false, wrapKindError(ErrEndpointInitFailed, err)
	}
	return volume, found, nil
}

func (d *windowsDirectory) GetMute(pid uint32) (bool, bool, error) {
	muted, found, err := wasapi.GetSessionMute(pid)
	if err != nil {
		return false, false, wrapKindError(ErrEndpointInitFailed, err)
	}
	return muted, found, nil
}

func resolveProcessName(pid uint32) string {
	name := wasapi.ProcessImageName(pid)
	if name == "" {
		return unknownProcessName
	}
	return name
}

func toAudioSessionState(state uint32) AudioSessionState {
	switch state {
	case 0:
		return SessionInactive
	case 1:
		return SessionActive
	case 2:
		return SessionExpired
	default:
		return SessionInactive
	}
}
