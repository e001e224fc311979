// Package uaerr defines the error type every layer of this module raises
// through: a StatusError pairs a closed set of Kinds with the
// ua.StatusCode the wire protocol actually carries, and supports
// errors.Is/errors.As so callers can match on either the Kind or a
// wrapped lower-level cause.
package uaerr

import (
	"errors"
	"fmt"

	"github.com/opcuacore/opcuacore/pkg/ua"
)

// Kind classifies a StatusError independently of the numeric StatusCode it
// carries, so callers can branch in Go without switching on magic
// uint32s. This set is closed: add a case here and to kindStatus together.
type Kind int

const (
	KindInvalidParameters Kind = iota
	KindInvalidState
	KindInvalidReceivedParameter
	KindEncodingError
	KindDecodingError
	KindTooLarge
	KindCertificateValidationFailed
	KindTimeout
	KindDisconnected
)

var kindNames = map[Kind]string{
	KindInvalidParameters:           "invalid_parameters",
	KindInvalidState:                "invalid_state",
	KindInvalidReceivedParameter:    "invalid_received_parameter",
	KindEncodingError:               "encoding_error",
	KindDecodingError:               "decoding_error",
	KindTooLarge:                    "too_large",
	KindCertificateValidationFailed: "certificate_validation_failed",
	KindTimeout:                     "timeout",
	KindDisconnected:                "disconnected",
}

// kindStatus maps each Kind to the StatusCode reported on the wire. Most
// Kinds can arise from more than one concrete situation (e.g. TooLarge
// covers both an oversized request and an oversized response); the caller
// picks the precise StatusCode at the raise site via WithStatus when the
// default isn't right.
var kindStatus = map[Kind]ua.StatusCode{
	KindInvalidParameters:           ua.BadInvalidArgument,
	KindInvalidState:                ua.BadInvalidState,
	KindInvalidReceivedParameter:    ua.BadTcpMessageTypeInvalid,
	KindEncodingError:               ua.BadEncodingError,
	KindDecodingError:               ua.BadDecodingError,
	KindTooLarge:                    ua.BadRequestTooLarge,
	KindCertificateValidationFailed: ua.BadSecurityChecksFailed,
	KindTimeout:                     ua.BadTimeout,
	KindDisconnected:                ua.BadConnectionClosed,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// StatusError is this module's ProtocolError: it carries a Kind, the wire
// StatusCode that Kind maps to (or an explicit override), a human-readable
// message, and an optional wrapped cause.
type StatusError struct {
	kind    Kind
	status  ua.StatusCode
	message string
	cause   error
}

// New builds a StatusError of the given Kind with its default StatusCode.
func New(kind Kind, message string) *StatusError {
	return &StatusError{kind: kind, status: kindStatus[kind], message: message}
}

// Wrap builds a StatusError that also carries cause, reachable via
// errors.Unwrap/errors.Is.
func Wrap(kind Kind, message string, cause error) *StatusError {
	return &StatusError{kind: kind, status: kindStatus[kind], message: message, cause: cause}
}

// WithStatus overrides the StatusCode a Kind would otherwise default to —
// used where the protocol distinguishes several StatusCodes for what this
// package treats as one Kind (e.g. BadResponseTooLarge vs
// BadRequestTooLarge, both KindTooLarge).
func (e *StatusError) WithStatus(status ua.StatusCode) *StatusError {
	e.status = status
	return e
}

// Code returns the numeric StatusCode this error maps to on the wire.
func (e *StatusError) Code() uint32 { return uint32(e.status) }

// Status returns the StatusCode this error maps to on the wire.
func (e *StatusError) Status() ua.StatusCode { return e.status }

// Kind returns the error's classification.
func (e *StatusError) Kind() Kind { return e.kind }

// Message returns the human-readable description.
func (e *StatusError) Message() string { return e.message }

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("uaerr: %s (%s): %s: %v", e.kind, e.status, e.message, e.cause)
	}
	return fmt.Sprintf("uaerr: %s (%s): %s", e.kind, e.status, e.message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *StatusError) Unwrap() error { return e.cause }

// Is reports whether target is a StatusError of the same Kind, so callers
// can write errors.Is(err, uaerr.New(uaerr.KindTimeout, "")) as a
// Kind-match test without caring about the message or cause.
func (e *StatusError) Is(target error) bool {
	var other *StatusError
	if !errors.As(target, &other) {
		return false
	}
	return e.kind == other.kind
}
