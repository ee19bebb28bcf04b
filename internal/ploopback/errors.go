package ploopback

import (
	"fmt"

	pberrors "github.com/tphakala/birdnet-go/internal/errors"
)

// ErrorKind is a stable, enumerable identifier for every failure mode the
// capture engine can report (spec.md §7). Human-readable messages live in
// the wrapping *pberrors.EnhancedError, not in the kind itself.
type ErrorKind int

const (
	// ErrNone means no error is pending; the zero value of ErrorKind.
	ErrNone ErrorKind = iota
	ErrUnsupportedPlatform
	ErrNoSuchProcess
	ErrAccessDenied
	ErrActivationTimeout
	ErrEndpointInitFailed
	ErrInvalidState
	ErrQueueOverflow // advisory only; never returned from a call
	ErrCaptureFatal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrUnsupportedPlatform:
		return "unsupported_platform"
	case ErrNoSuchProcess:
		return "no_such_process"
	case ErrAccessDenied:
		return "access_denied"
	case ErrActivationTimeout:
		return "activation_timeout"
	case ErrEndpointInitFailed:
		return "endpoint_init_failed"
	case ErrInvalidState:
		return "invalid_state"
	case ErrQueueOverflow:
		return "queue_overflow"
	case ErrCaptureFatal:
		return "capture_fatal"
	default:
		return "unknown"
	}
}

func (k ErrorKind) category() pberrors.ErrorCategory {
	switch k {
	case ErrUnsupportedPlatform:
		return pberrors.CategoryUnsupportedPlatform
	case ErrNoSuchProcess:
		return pberrors.CategoryNoSuchProcess
	case ErrAccessDenied:
		return pberrors.CategoryAccessDenied
	case ErrActivationTimeout:
		return pberrors.CategoryActivationTimeout
	case ErrEndpointInitFailed:
		return pberrors.CategoryEndpointInit
	case ErrInvalidState:
		return pberrors.CategoryState
	case ErrQueueOverflow:
		return pberrors.CategoryQueueOverflow
	case ErrCaptureFatal:
		return pberrors.CategoryCaptureFatal
	default:
		return pberrors.CategoryGeneric
	}
}

// kindContextKey is the context field KindOf reads back off an EnhancedError.
const kindContextKey = "ploopback_error_kind"

// newKindError builds an *EnhancedError carrying kind, recoverable through
// KindOf, with msg as the human-readable text.
func newKindError(kind ErrorKind, msg string) error {
	return pberrors.New(fmt.Errorf("%s", msg)).
		Component("ploopback").
		Category(kind.category()).
		Context(kindContextKey, kind).
		Build()
}

// wrapKindError wraps an existing error under the given kind.
func wrapKindError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return pberrors.New(err).
		Component("ploopback").
		Category(kind.category()).
		Context(kindContextKey, kind).
		Build()
}

// KindOf recovers the stable ErrorKind from an error returned by this
// package. Errors not produced by this package report ErrCaptureFatal, the
// conservative default for "something went wrong we don't have a kind for".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrNone
	}
	var ee *pberrors.EnhancedError
	if !pberrors.As(err, &ee) {
		return ErrCaptureFatal
	}
	if kind, ok := ee.Context[kindContextKey].(ErrorKind); ok {
		return kind
	}
	return ErrCaptureFatal
}
