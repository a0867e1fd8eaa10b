package audioctl

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates audioctl failures so callers can tell
// "not plugged in" apart from "API broken"
type ErrorKind int

const (
	KindUnknown ErrorKind = iota

	// KindNotFound means an endpoint id could not be resolved to a live device
	KindNotFound

	// KindInvalidArgument means the input was malformed before any subsystem call
	KindInvalidArgument

	// KindEnumerationFailed means EnumAudioEndpoints (or the collection walk) failed
	KindEnumerationFailed

	// KindResolutionFailed means the enumerator handle could not be resolved,
	// typically because the owning resolver was already closed
	KindResolutionFailed

	// KindNoDefaultDevice means no default endpoint is configured for the flow
	KindNoDefaultDevice

	// KindPermissionOrState means the subsystem rejected a state change request
	KindPermissionOrState

	// KindIndexOutOfRange means a collection index was >= Count()
	KindIndexOutOfRange

	// KindConversionFailed means a raw notification payload could not be
	// translated to a typed event; it rides inside the event, never terminates
	// the stream
	KindConversionFailed

	// KindUnsupported means the current platform has no backend
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalidArgument:
		return "invalid argument"
	case KindEnumerationFailed:
		return "enumeration failed"
	case KindResolutionFailed:
		return "resolution failed"
	case KindNoDefaultDevice:
		return "no default device"
	case KindPermissionOrState:
		return "permission or state error"
	case KindIndexOutOfRange:
		return "index out of range"
	case KindConversionFailed:
		return "conversion failed"
	case KindUnsupported:
		return "unsupported platform"
	default:
		return "unknown error"
	}
}

// Error carries an ErrorKind alongside the operation that failed and the
// underlying (message-preserving) cause
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind ErrorKind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err's chain, or KindUnknown
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

// wrapKind tags err with kind unless it already carries one
func wrapKind(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	return newError(kind, op, err)
}
