//go:build windows

package wasapi

import (
	"fmt"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca"
	"golang.org/x/sys/windows"
)

// SessionRow is the platform-level shape of one audio session, read
// straight off IAudioSessionControl2/ISimpleAudioVolume (spec.md §3
// "AudioSession (directory entry)").
type SessionRow struct {
	ProcessID   uint32
	DisplayName string
	State       uint32 // AudioSessionStateInactive/Active/Expired, mirrored verbatim
	Volume      float32
	Muted       bool
}

// EnumerateSessions opens the default render endpoint's session manager
// and returns every session row it reports (spec.md §4.5 enumerate).
func EnumerateSessions() ([]SessionRow, error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		if !isAlreadyInitialized(err) {
			return nil, fmt.Errorf("co initialize: %w", err)
		}
	}

	var denum *wca.IMMDeviceEnumerator
	if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &denum); err != nil {
		return nil, fmt.Errorf("create device enumerator: %w", err)
	}
	defer denum.Release()

	var device *wca.IMMDevice
	if err := denum.GetDefaultAudioEndpoint(wca.ERender, wca.EConsole, &device); err != nil {
		return nil, fmt.Errorf("get default render endpoint: %w", err)
	}
	defer device.Release()

	var manager *wca.IAudioSessionManager2
	if err := device.Activate(wca.IID_IAudioSessionManager2, wca.CLSCTX_ALL, nil, &manager); err != nil {
		return nil, fmt.Errorf("activate session manager: %w", err)
	}
	defer manager.Release()

	var enumerator *wca.IAudioSessionEnumerator
	if err := manager.GetSessionEnumerator(&enumerator); err != nil {
		return nil, fmt.Errorf("get session enumerator: %w", err)
	}
	defer enumerator.Release()

	var count int
	if err := enumerator.GetCount(&count); err != nil {
		return nil, fmt.Errorf("get session count: %w", err)
	}

	rows := make([]SessionRow, 0, count)
	for i := 0; i < count; i++ {
		var control *wca.IAudioSessionControl
		if err := enumerator.GetSession(i, &control); err != nil {
			continue
		}
		row, ok := readSessionRow(control)
		control.Release()
		if ok {
			rows = append(rows, row)
		}
	}

	return rows, nil
}

func readSessionRow(control *wca.IAudioSessionControl) (SessionRow, bool) {
	var control2 *wca.IAudioSessionControl2
	if err := control.QueryInterface(wca.IID_IAudioSessionControl2, &control2); err != nil {
		return SessionRow{}, false
	}
	defer control2.Release()

	var pid uint32
	_ = control2.GetProcessId(&pid)

	var displayName string
	_ = control.GetDisplayName(&displayName)

	var state uint32
	_ = control.GetState((*wca.AudioSessionState)(&state))

	row := SessionRow{
		ProcessID:   pid,
		DisplayName: displayName,
		State:       state,
	}

	var simpleVolume *wca.ISimpleAudioVolume
	if err := control.QueryInterface(wca.IID_ISimpleAudioVolume, &simpleVolume); err == nil {
		defer simpleVolume.Release()
		var volume float32
		_ = simpleVolume.GetMasterVolume(&volume)
		row.Volume = volume

		var muted bool
		_ = simpleVolume.GetMute(&muted)
		row.Muted = muted
	}

	return row, true
}

// SetSessionVolume finds the first session whose process id matches pid
// under the default render endpoint and sets its scalar volume.
func SetSessionVolume(pid uint32, volume float32) (bool, error) {
	return withSimpleVolume(pid, func(v *wca.ISimpleAudioVolume) error {
		return v.SetMasterVolume(volume, nil)
	})
}

// SetSessionMute is SetSessionVolume's counterpart for the mute flag.
func SetSessionMute(pid uint32, muted bool) (bool, error) {
	return withSimpleVolume(pid, func(v *wca.ISimpleAudioVolume) error {
		return v.SetMute(muted, nil)
	})
}

// GetSessionVolume reads back the matching session's current volume.
func GetSessionVolume(pid uint32) (float32, bool, error) {
	var out float32
	found, err := withSimpleVolume(pid, func(v *wca.ISimpleAudioVolume) error {
		return v.GetMasterVolume(&out)
	})
	return out, found, err
}

// GetSessionMute reads back the matching session's current mute flag.
func GetSessionMute(pid uint32) (bool, bool, error) {
	var out bool
	found, err := withSimpleVolume(pid, func(v *wca.ISimpleAudioVolume) error {
		return v.GetMute(&out)
	})
	return out, found, err
}

func withSimpleVolume(pid uint32, fn func(*wca.ISimpleAudioVolume) error) (bool, error) {
	var denum *wca.IMMDeviceEnumerator
	if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &denum); err != nil {
		return false, fmt.Errorf("create device enumerator: %w", err)
	}
	defer denum.Release()

	var device *wca.IMMDevice
	if err := denum.GetDefaultAudioEndpoint(wca.ERender, wca.EConsole, &device); err != nil {
		return false, fmt.Errorf("get default render endpoint: %w", err)
	}
	defer device.Release()

	var manager *wca.IAudioSessionManager2
	if err := device.Activate(wca.IID_IAudioSessionManager2, wca.CLSCTX_ALL, nil, &manager); err != nil {
		return false, fmt.Errorf("activate session manager: %w", err)
	}
	defer manager.Release()

	var enumerator *wca.IAudioSessionEnumerator
	if err := manager.GetSessionEnumerator(&enumerator); err != nil {
		return false, fmt.Errorf("get session enumerator: %w", err)
	}
	defer enumerator.Release()

	var count int
	if err := enumerator.GetCount(&count); err != nil {
		return false, fmt.Errorf("get session count: %w", err)
	}

	for i := 0; i < count; i++ {
		var control *wca.IAudioSessionControl
		if err := enumerator.GetSession(i, &control); err != nil {
			continue
		}

		var control2 *wca.IAudioSessionControl2
		if err := control.QueryInterface(wca.IID_IAudioSessionControl2, &control2); err != nil {
			control.Release()
			continue
		}
		var rowPID uint32
		_ = control2.GetProcessId(&rowPID)
		match := rowPID == pid
		control2.Release()

		if !match {
			control.Release()
			continue
		}

		var simpleVolume *wca.ISimpleAudioVolume
		err := control.QueryInterface(wca.IID_ISimpleAudioVolume, &simpleVolume)
		control.Release()
		if err != nil {
			return false, fmt.Errorf("query simple audio volume: %w", err)
		}
		defer simpleVolume.Release()

		return true, fn(simpleVolume)
	}

	return false, nil
}

// ProcessImageName resolves pid's executable name via
// QueryFullProcessImageName, returning "unknown" for a protected or exited
// process (spec.md §4.5 process-name resolution).
func ProcessImageName(pid uint32) string {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "unknown"
	}
	defer windows.CloseHandle(handle)

	buf := make([]uint16, windows.MAX_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(handle, 0, &buf[0], &size); err != nil {
		return "unknown"
	}
	return lastPathComponent(windows.UTF16ToString(buf[:size]))
}

func lastPathComponent(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '\\' || path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func isAlreadyInitialized(err error) bool {
	type hresulter interface{ Code() uintptr }
	// S_FALSE (already initialized on this thread) is not an error for our
	// purposes; anything else is propagated.
	const sFalse = 0x00000001
	if h, ok := err.(hresulter); ok {
		return h.Code() == sFalse
	}
	return false
}
