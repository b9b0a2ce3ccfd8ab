// Package apperr classifies remote-call failures into the kinds the client
// engine reacts to.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

type Kind int

const (
	Unknown Kind = iota
	AuthenticationRequired
	ValidationFailed
	ServerUnavailable
	NetworkTransient
	UnknownStatus
	ActionNotImplemented
)

func (k Kind) String() string {
	switch k {
	case AuthenticationRequired:
		return "authentication_required"
	case ValidationFailed:
		return "validation_failed"
	case ServerUnavailable:
		return "server_unavailable"
	case NetworkTransient:
		return "network_transient"
	case UnknownStatus:
		return "unknown_status"
	case ActionNotImplemented:
		return "action_not_implemented"
	default:
		return "unknown"
	}
}

// Informational kinds are surfaced as notices rather than errors.
func (k Kind) Informational() bool {
	return k == ActionNotImplemented || k == UnknownStatus
}

// Error is a classified failure.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same call may succeed.
func (e *Error) Temporary() bool {
	return e.Kind == NetworkTransient
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// FromStatus builds the error for a non-2xx HTTP response.
func FromStatus(op string, statusCode int, message string) *Error {
	return &Error{Kind: kindForStatus(statusCode), Op: op, StatusCode: statusCode, Message: message}
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized:
		return AuthenticationRequired
	case code == http.StatusUnprocessableEntity:
		return ValidationFailed
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return NetworkTransient
	case code >= 500:
		return ServerUnavailable
	default:
		return Unknown
	}
}

// KindOf returns the kind of a classified error, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Classify turns an arbitrary failure into an *Error. Transport failures such as
// refused connections, resets, timeouts and truncated bodies are NetworkTransient.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" && op != "" {
			named := *e
			named.Op = op
			return &named
		}
		return e
	}

	if isNetwork(err) {
		return Wrap(NetworkTransient, op, err)
	}
	return Wrap(Unknown, op, err)
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Errorf is a shortcut for an Unknown error with a formatted message.
func Errorf(op, format string, args ...any) *Error {
	return New(Unknown, op, fmt.Sprintf(format, args...))
}
