//go:build windows

package wasapi

import "github.com/go-ole/go-ole"

// VirtualAudioDeviceProcessLoopback is the symbolic device interface path
// the platform exposes process-scoped loopback through (spec.md §4.4 "the
// symbolic identifier of the virtual loopback interface"). Passed as the
// deviceInterfacePath argument to ActivateAudioInterfaceAsync.
const VirtualAudioDeviceProcessLoopback = "VAD\\Process_Loopback"

// ProcessLoopbackMode mirrors PROCESS_LOOPBACK_MODE from mmdeviceapi.h.
type ProcessLoopbackMode uint32

const (
	ProcessLoopbackModeIncludeTargetProcessTree ProcessLoopbackMode = 0
	ProcessLoopbackModeExcludeTargetProcessTree ProcessLoopbackMode = 1
)

// InclusionMode is the engine's three-way inclusion mode. platformMode maps
// it onto the platform's two loopback modes: InclusionExcludeTree sends
// exclude-tree, and both InclusionIncludeTree and InclusionProcessOnly send
// include-tree, so "process only" also captures the target's descendants
// (the two are the same only when the target has none).
type InclusionMode int

const (
	InclusionIncludeTree InclusionMode = iota
	InclusionExcludeTree
	InclusionProcessOnly
)

func (m InclusionMode) platformMode() ProcessLoopbackMode {
	if m == InclusionExcludeTree {
		return ProcessLoopbackModeExcludeTargetProcessTree
	}
	return ProcessLoopbackModeIncludeTargetProcessTree
}

// AudioclientActivationParams mirrors AUDIOCLIENT_ACTIVATION_PARAMS, the
// property-set payload carried to ActivateAudioInterfaceAsync (spec.md
// §4.4 step 1).
type AudioclientActivationParams struct {
	ActivationType uint32 // AUDIOCLIENT_ACTIVATION_TYPE_PROCESS_LOOPBACK = 1
	ProcessLoopbackParams ProcessLoopbackParams
}

// ProcessLoopbackParams mirrors AUDIOCLIENT_PROCESS_LOOPBACK_PARAMS.
type ProcessLoopbackParams struct {
	TargetProcessID uint32
	ProcessLoopbackMode ProcessLoopbackMode
}

const activationTypeProcessLoopback uint32 = 1

// CLSID_MMDeviceEnumerator / IID_IMMDeviceEnumerator, re-declared here so
// this package does not need to import go-wca just for two GUIDs used by
// the session directory half of the stack.
var (
	CLSIDMMDeviceEnumerator = ole.NewGUID("{BCDE0395-E52F-467C-8E3D-C4579291692E}")
	IIDIMMDeviceEnumerator  = ole.NewGUID("{A95664D2-9614-4F35-A746-DE8DB63617E6}")
	IIDIAudioClient         = ole.NewGUID("{1CB9AD4C-DBFA-4c32-B178-C2F568A703B2}")
	IIDIActivateAudioInterfaceCompletionHandler = ole.NewGUID("{41D949AB-9862-444A-80F6-C261334DA5EB}")
)
