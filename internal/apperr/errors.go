// Package apperr provides the domain error kinds returned by the challenge
// service and their mapping onto gRPC statuses.
package apperr

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the error domain attached to gRPC error details.
const Domain = "challenges.habitica"

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindInternal      Kind = "INTERNAL"
	KindNotFound      Kind = "NOT_FOUND"
	KindAuthorization Kind = "NOT_AUTHORIZED"
	KindValidation    Kind = "VALIDATION"
)

// GRPCCode maps a kind to its gRPC status code.
func (k Kind) GRPCCode() codes.Code {
	switch k {
	case KindNotFound:
		return codes.NotFound
	case KindAuthorization:
		return codes.PermissionDenied
	case KindValidation:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// Error is the domain error type.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrNotFound)
// holds for every NotFound error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Kind-only sentinels for errors.Is.
var (
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrValidation    = &Error{Kind: KindValidation}
)

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or KindInternal when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ToGRPCStatus converts err to a gRPC status error with an ErrorInfo detail.
// Internal errors never expose their message to the caller.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = Internal("internal error", err)
	}
	message := e.Message
	if e.Kind == KindInternal {
		message = "internal error"
	}

	st := status.New(e.Kind.GRPCCode(), message)
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(e.Kind),
		Domain: Domain,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// FromGRPCStatus recovers the kind and message of a status produced by
// ToGRPCStatus. Unknown statuses become internal errors.
func FromGRPCStatus(err error) *Error {
	st, ok := status.FromError(err)
	if !ok {
		return Internal("transport error", err)
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == Domain {
			return &Error{Kind: Kind(info.Reason), Message: st.Message()}
		}
	}
	return &Error{Kind: KindInternal, Message: st.Message()}
}
