package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// ErrorKind
// =============================================================================

// ErrorKind classifies every failure the bridge reports. The set is fixed so
// callers can branch with errors.Is instead of matching message text:
//
//	if errors.Is(err, core.QueryError) { ... }
type ErrorKind int

// Error kinds, one per pipeline stage that can fail.
const (
	// InvalidArgument means the caller passed a value of the wrong type or shape.
	InvalidArgument ErrorKind = iota + 1
	// NamespaceError means the target namespace is unsupported or unusable.
	NamespaceError
	// QueryError means the subsystem rejected the query text.
	QueryError
	// SubsystemFault means the subsystem failed while results were being read.
	SubsystemFault
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NamespaceError:
		return "NamespaceError"
	case QueryError:
		return "QueryError"
	case SubsystemFault:
		return "SubsystemFault"
	default:
		return "Unknown"
	}
}

// Error lets a kind act as an errors.Is target.
func (k ErrorKind) Error() string { return k.String() }

// ParseErrorKind converts a kind name back to an ErrorKind.
func ParseErrorKind(s string) (ErrorKind, bool) {
	for _, k := range []ErrorKind{InvalidArgument, NamespaceError, QueryError, SubsystemFault} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// =============================================================================
// BridgeError
// =============================================================================

// BridgeError is the only error type returned across the bridge boundary.
type BridgeError struct {
	Kind    ErrorKind
	Message string
	// Cause is the underlying native diagnostic, if any.
	Cause error
}

// NewError builds a BridgeError. When cause is non-nil its text is appended
// to the message so the subsystem's diagnostic stays visible.
func NewError(kind ErrorKind, cause error, format string, args ...any) *BridgeError {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	return &BridgeError{Kind: kind, Message: msg, Cause: cause}
}

func (e *BridgeError) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// Unwrap returns the native cause.
func (e *BridgeError) Unwrap() error { return e.Cause }

// Is matches an ErrorKind target.
func (e *BridgeError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// KindOf returns the kind of a BridgeError anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// =============================================================================
// Native faults
// =============================================================================

// Native fault sentinels. Adapters wrap these so the bridge can classify
// subsystem failures without knowing the subsystem.
var (
	ErrInvalidNamespace = errors.New("invalid namespace")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrInvalidClass     = errors.New("invalid class")
	ErrNotSupported     = errors.New("this OS is not supported")
)

// NativeError carries a subsystem status code and its diagnostic text.
type NativeError struct {
	// Op is the subsystem operation that failed (e.g. "ConnectServer", "ExecQuery").
	Op string
	// Code is the subsystem status code (an HRESULT for WMI), 0 if none.
	Code uint32
	// Message is the subsystem's own description.
	Message string
	// Err is one of the native sentinels, or nil when the fault is unclassified.
	Err error
}

func (e *NativeError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (0x%08X)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap returns the sentinel, if any.
func (e *NativeError) Unwrap() error { return e.Err }
