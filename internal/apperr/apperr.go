// Package apperr defines the error taxonomy shared by the HTTP layer, the
// message-bus RPC layer, and the domain services. Errors cross the bus as
// (code, message) pairs; Code and FromWire are the only translation points.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized        = errors.New("user is not authorized")
	ErrForbidden           = errors.New("operation is forbidden for user")
	ErrEventNotFound       = errors.New("event not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrInsufficientTickets = errors.New("insufficient tickets")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrLockNotAcquired     = errors.New("lock not acquired")
	ErrTimeout             = errors.New("request timed out")
	ErrNotConnected        = errors.New("message bus is not connected")
)

// ValidationError reports bad input or state. It is surfaced to the caller
// as-is and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Wire codes carried in RPC error replies.
const (
	CodeValidation          = "VALIDATION"
	CodeForbidden           = "FORBIDDEN"
	CodeEventNotFound       = "EVENT_NOT_FOUND"
	CodeBookingNotFound     = "BOOKING_NOT_FOUND"
	CodeInsufficientTickets = "INSUFFICIENT_TICKETS"
	CodeRateLimited         = "RATE_LIMITED"
	CodeLockNotAcquired     = "LOCK_NOT_ACQUIRED"
	CodeTimeout             = "TIMEOUT"
	CodeInternal            = "INTERNAL"
)

// Code maps an error to its wire code.
func Code(err error) string {
	switch {
	case IsValidation(err):
		return CodeValidation
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthorized):
		return CodeForbidden
	case errors.Is(err, ErrEventNotFound):
		return CodeEventNotFound
	case errors.Is(err, ErrBookingNotFound):
		return CodeBookingNotFound
	case errors.Is(err, ErrInsufficientTickets):
		return CodeInsufficientTickets
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrLockNotAcquired):
		return CodeLockNotAcquired
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// FromWire rebuilds a local error from an RPC error reply.
func FromWire(code, message string) error {
	switch code {
	case CodeValidation:
		return &ValidationError{Reason: message}
	case CodeForbidden:
		return ErrForbidden
	case CodeEventNotFound:
		return ErrEventNotFound
	case CodeBookingNotFound:
		return ErrBookingNotFound
	case CodeInsufficientTickets:
		return ErrInsufficientTickets
	case CodeRateLimited:
		return ErrRateLimited
	case CodeLockNotAcquired:
		return ErrLockNotAcquired
	case CodeTimeout:
		return ErrTimeout
	default:
		if message == "" {
			message = "internal error"
		}
		return errors.New(message)
	}
}
