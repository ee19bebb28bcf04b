//go:build windows

package wasapi

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// callStdcall invokes a COM vtable slot with up to three arguments beyond
// the implicit `this`, the same raw mechanism go-ole's generated method
// wrappers use underneath syscall.Syscall.
func callStdcall(fn uintptr, args ...uintptr) (uintptr, uintptr, uintptr) {
	var a [4]uintptr
	copy(a[:], args)
	return syscall.Syscall6(fn, uintptr(len(args)), a[0], a[1], a[2], a[3], 0, 0)
}

// Standard HRESULT values this package needs but go-ole does not export by
// name.
const (
	hrEPointer     = 0x80004003
	hrENoInterface = 0x80004002
)

// IAudioClientHandle is an opaque handle to the IAudioClient COM pointer
// ActivateAudioInterfaceAsync hands back. Endpoint wraps it in a *wca.
// IAudioClient for every subsequent call (see audioclient.go); the
// activation layer never dereferences it itself.
type IAudioClientHandle struct{}

// ErrActivationTimeout is returned when the completion event never fires
// within the caller's deadline (spec.md §4.4 step 3, §5).
var ErrActivationTimeout = fmt.Errorf("activation completion event timed out")

// errActivationTimeout is the internal alias used by activation.go.
var errActivationTimeout = ErrActivationTimeout

// Well-known HRESULTs activation can fail with. Not exhaustive: the
// platform does not document a single stable code per spec.md §4.4 failure
// mode, so these are the closest practical mapping, documented, not
// guaranteed.
const (
	hrAccessDenied     = 0x80070005 // E_ACCESSDENIED
	hrInvalidArg       = 0x80070057 // E_INVALIDARG: typically a pid with no session
	hrClassNotRegistered = 0x80040154 // REGDB_E_CLASSNOTREG: loopback interface unknown to this OS
)

// activationError carries the raw HRESULT alongside a human message so the
// caller can classify it without string-matching.
type activationError struct {
	hr  uint32
	msg string
}

func (e *activationError) Error() string { return e.msg }

// activationHRESULTError classifies a non-zero activation HRESULT into the
// closest stable condition; callers map this further onto ploopback's
// ErrorKind (see endpoint_windows.go's classifyActivationError).
func activationHRESULTError(hr uint32) error {
	return &activationError{hr: hr, msg: fmt.Sprintf("activation failed: hresult 0x%08X", hr)}
}

// IsAccessDenied reports whether err represents the platform refusing the
// requested inclusion mode.
func IsAccessDenied(err error) bool {
	ae, ok := err.(*activationError)
	return ok && ae.hr == hrAccessDenied
}

// IsNoSuchProcess reports whether err represents a target pid with no
// audio session.
func IsNoSuchProcess(err error) bool {
	ae, ok := err.(*activationError)
	return ok && ae.hr == hrInvalidArg
}

// IsUnsupportedPlatform reports whether err represents an OS that does not
// expose the process-loopback virtual device.
func IsUnsupportedPlatform(err error) bool {
	ae, ok := err.(*activationError)
	return ok && ae.hr == hrClassNotRegistered
}

// IsTimeout reports whether err is ErrActivationTimeout.
func IsTimeout(err error) bool {
	return err == ErrActivationTimeout
}

// releaseUnknown calls Release() on a raw COM pointer obtained outside
// go-ole's own object wrappers (the IActivateAudioInterfaceAsyncOperation
// returned by ActivateAudioInterfaceAsync).
func releaseUnknown(p unsafe.Pointer) {
	unk := (*ole.IUnknown)(p)
	unk.Release()
}

// activationPropVariantFromParams packs AudioclientActivationParams into a
// PROPVARIANT of type VT_BLOB, the shape ActivateAudioInterfaceAsync
// expects for its activationParams argument.
type propVariantBlob struct {
	vt        uint16
	reserved1 uint16
	reserved2 uint16
	reserved3 uint16
	blobSize  uint32
	blobData  uintptr
}

const vtBlob = 65 // VT_BLOB

func activationPropVariantFromParams(params *AudioclientActivationParams) propVariantBlob {
	return propVariantBlob{
		vt:       vtBlob,
		blobSize: uint32(unsafe.Sizeof(*params)),
		blobData: uintptr(unsafe.Pointer(params)),
	}
}

// activationOperationGetResult reads the HRESULT and activated interface
// pointer out of an IActivateAudioInterfaceAsyncOperation via its
// GetActivateResult method (vtable slot 3, after IUnknown's three).
func activationOperationGetResult(operation unsafe.Pointer, hr *uint32, iface *unsafe.Pointer) {
	if operation == nil {
		*hr = hrEPointer
		return
	}
	type vtbl struct {
		queryInterface uintptr
		addRef         uintptr
		release        uintptr
		getActivateResult uintptr
	}
	obj := (*struct{ v *vtbl })(operation)
	ret, _, _ := callStdcall(obj.v.getActivateResult, uintptr(operation), uintptr(unsafe.Pointer(hr)), uintptr(unsafe.Pointer(iface)))
	if ret != 0 && *hr == 0 {
		*hr = uint32(ret)
	}
}
