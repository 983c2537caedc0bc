package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure for the poller's health machine and
// the HTTP status mapping.
type Kind string

const (
	KindTimeout        Kind = "timeout"
	KindUnreachable    Kind = "unreachable"
	KindAuthentication Kind = "authentication"
	KindParse          Kind = "parse"
	KindRefused        Kind = "refused"
	KindUnknown        Kind = "unknown"
)

// Error is the typed failure every transport operation returns. Op names
// the operation ("snmp get", "serial login"), Err carries the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("transport: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError wraps err with a kind and operation name.
func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind from any error chain; non-transport
// errors classify as unknown.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}
