// Package errs defines the typed error taxonomy shared by every indexing
// and resolution component, so callers branch on Kind() rather than on
// string-matching error messages.
package errs

import "fmt"

// Kind enumerates the error categories named in the pipeline's error
// handling design.
type Kind string

const (
	KindTransientNetwork Kind = "transient_network"
	KindRateLimited      Kind = "rate_limited"
	KindTimeout          Kind = "timeout"
	KindRPCError         Kind = "rpc_error"
	KindDecode           Kind = "decode"
	KindNotFound         Kind = "not_found"
	KindBadConfig        Kind = "bad_config"
	KindFatal            Kind = "fatal"
)

// Error is a typed error carrying a Kind plus optional RPC code and a
// wrapped cause.
type Error struct {
	Kind    Kind
	Where   string
	Code    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Where != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Where, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause.Error())
	}
	return string(e.Kind)
}

// Unwrap allows errors.Is/errors.As to traverse into the wrapped cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target shares the same Kind, so callers can write
// errors.Is(err, &errs.Error{Kind: errs.KindNotFound}).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// New builds a typed error with a message.
func New(kind Kind, where, message string) *Error {
	return &Error{Kind: kind, Where: where, Message: message}
}

// Wrap builds a typed error wrapping an underlying cause.
func Wrap(kind Kind, where string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Where: where, Cause: cause}
}

// RPCError builds a KindRPCError carrying the remote error code.
func RPCError(where string, code int, msg string) *Error {
	return &Error{Kind: KindRPCError, Where: where, Code: code, Message: msg}
}

// NotFound is the canonical not-found sentinel kind, comparable via errors.Is.
var NotFound = &Error{Kind: KindNotFound}

// Fatal wraps a cause as a startup-time configuration bug.
func Fatal(where string, cause error) *Error {
	return &Error{Kind: KindFatal, Where: where, Cause: cause}
}
