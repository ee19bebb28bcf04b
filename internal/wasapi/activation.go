//go:build windows

package wasapi

import (
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

var (
	modmmdevapi               = windows.NewLazySystemDLL("mmdevapi.dll")
	procActivateAudioInterfaceAsync = modmmdevapi.NewProc("ActivateAudioInterfaceAsync")
)

// completionHandlerVtbl lays out IActivateAudioInterfaceCompletionHandler's
// vtable (IUnknown's three methods plus ActivateCompleted), the one COM
// interface go-wca does not carry. Every slot is a syscall.NewCallback
// trampoline, the same technique go-wca itself uses to expose Go methods
// through a COM vtable.
type completionHandlerVtbl struct {
	queryInterface uintptr
	addRef         uintptr
	release        uintptr
	activateCompleted uintptr
}

// completionHandlerCOM is the COM-visible head of the object: a pointer to
// the vtable, exactly as every COM interface begins.
type completionHandlerCOM struct {
	vtbl *completionHandlerVtbl
}

// completionHandler is the Go-side single-shot completion handler (spec.md
// §4.4 step 2): on ActivateCompleted, it stores the outcome into result and
// signals done exactly once. Registered in handlerRegistry keyed by the COM
// pointer so the vtable trampolines (plain functions, not methods) can find
// their Go object.
type completionHandler struct {
	com completionHandlerCOM

	refCount int32

	mu     sync.Mutex
	sealed bool
	result activationResult
	done   chan struct{}
}

// activationResult is the outcome ActivateCompleted reports.
type activationResult struct {
	client *IAudioClientHandle
	hr     uint32
}

var (
	handlerRegistry   = map[unsafe.Pointer]*completionHandler{}
	handlerRegistryMu sync.Mutex

	sharedVtbl = &completionHandlerVtbl{
		queryInterface:    syscall.NewCallback(handlerQueryInterface),
		addRef:            syscall.NewCallback(handlerAddRef),
		release:           syscall.NewCallback(handlerRelease),
		activateCompleted: syscall.NewCallback(handlerActivateCompleted),
	}
)

func newCompletionHandler() *completionHandler {
	h := &completionHandler{
		refCount: 1,
		done:     make(chan struct{}),
	}
	h.com.vtbl = sharedVtbl

	handlerRegistryMu.Lock()
	handlerRegistry[unsafe.Pointer(&h.com)] = h
	handlerRegistryMu.Unlock()

	return h
}

func (h *completionHandler) release() {
	handlerRegistryMu.Lock()
	delete(handlerRegistry, unsafe.Pointer(&h.com))
	handlerRegistryMu.Unlock()
}

func lookupHandler(this unsafe.Pointer) *completionHandler {
	handlerRegistryMu.Lock()
	defer handlerRegistryMu.Unlock()
	return handlerRegistry[this]
}

// The four trampolines below run on the platform's completion-callback
// thread (thread P, spec.md §5) except QueryInterface/AddRef/Release,
// which COM may call from any apartment. They touch only the handler's
// refcount and result slot.

func handlerQueryInterface(this unsafe.Pointer, riid *ole.GUID, ppv *unsafe.Pointer) uintptr {
	if ppv == nil {
		return hrEPointer
	}
	if ole.IsEqualGUID(riid, ole.IID_IUnknown) || ole.IsEqualGUID(riid, IIDIActivateAudioInterfaceCompletionHandler) {
		*ppv = this
		handlerAddRef(this)
		return 0
	}
	*ppv = nil
	return hrENoInterface
}

func handlerAddRef(this unsafe.Pointer) uintptr {
	h := lookupHandler(this)
	if h == nil {
		return 0
	}
	h.refCount++
	return uintptr(h.refCount)
}

func handlerRelease(this unsafe.Pointer) uintptr {
	h := lookupHandler(this)
	if h == nil {
		return 0
	}
	h.refCount--
	n := h.refCount
	if n == 0 {
		h.release()
	}
	return uintptr(n)
}

// handlerActivateCompleted is IActivateAudioInterfaceCompletionHandler's
// sole method: ActivateCompleted(IActivateAudioInterfaceAsyncOperation*).
// It stores the outcome into the shared slot and signals done exactly
// once; a completion that fires after the activation deadline sealed the
// slot is a no-op (spec.md §5, "sealed because the result slot is
// sealed").
func handlerActivateCompleted(this unsafe.Pointer, operation unsafe.Pointer) uintptr {
	h := lookupHandler(this)
	if h == nil {
		return 0
	}

	var activateResult uint32
	var iface unsafe.Pointer
	activationOperationGetResult(operation, &activateResult, &iface)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sealed {
		return 0
	}
	h.sealed = true
	h.result = activationResult{hr: activateResult}
	if activateResult == 0 && iface != nil {
		h.result.client = (*IAudioClientHandle)(iface)
	}
	close(h.done)
	return 0
}

// ActivateProcessLoopback runs the full activation protocol (spec.md §4.4):
// builds the property set, constructs the completion handler, invokes
// ActivateAudioInterfaceAsync, and waits up to timeout for the result.
func ActivateProcessLoopback(pid uint32, mode InclusionMode, timeout time.Duration) (*IAudioClientHandle, error) {
	params := AudioclientActivationParams{
		ActivationType: activationTypeProcessLoopback,
		ProcessLoopbackParams: ProcessLoopbackParams{
			TargetProcessID:     pid,
			ProcessLoopbackMode: mode.platformMode(),
		},
	}

	prop := activationPropVariantFromParams(&params)

	handler := newCompletionHandler()

	pathUTF16, err := syscall.UTF16PtrFromString(VirtualAudioDeviceProcessLoopback)
	if err != nil {
		return nil, err
	}

	var asyncOp unsafe.Pointer
	hr, _, _ := procActivateAudioInterfaceAsync.Call(
		uintptr(unsafe.Pointer(pathUTF16)),
		uintptr(unsafe.Pointer(IIDIAudioClient)),
		uintptr(unsafe.Pointer(&prop)),
		uintptr(unsafe.Pointer(&handler.com)),
		uintptr(unsafe.Pointer(&asyncOp)),
	)
	if hr != 0 {
		handler.release()
		return nil, activationHRESULTError(uint32(hr))
	}
	if asyncOp != nil {
		defer releaseUnknown(asyncOp)
	}

	select {
	case <-handler.done:
	case <-time.After(timeout):
		handler.mu.Lock()
		sealed := handler.sealed
		if !sealed {
			handler.sealed = true
		}
		handler.mu.Unlock()
		if !sealed {
			return nil, errActivationTimeout
		}
		// A completion raced the timeout and already sealed the slot;
		// fall through and read whatever it stored.
	}

	handler.mu.Lock()
	result := handler.result
	handler.mu.Unlock()

	if result.hr != 0 {
		return nil, activationHRESULTError(result.hr)
	}
	return result.client, nil
}
