package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{Validation("bad quantity"), CodeValidation},
		{ErrForbidden, CodeForbidden},
		{ErrUnauthorized, CodeForbidden},
		{ErrEventNotFound, CodeEventNotFound},
		{ErrBookingNotFound, CodeBookingNotFound},
		{ErrInsufficientTickets, CodeInsufficientTickets},
		{ErrRateLimited, CodeRateLimited},
		{ErrLockNotAcquired, CodeLockNotAcquired},
		{ErrTimeout, CodeTimeout},
		{errors.New("disk on fire"), CodeInternal},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, Code(tc.err), "error %v", tc.err)
	}
}

func TestCodeSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("reserve for event 3: %w", ErrInsufficientTickets)
	assert.Equal(t, CodeInsufficientTickets, Code(wrapped))
}

func TestFromWireRoundTrip(t *testing.T) {
	sentinels := []error{
		ErrForbidden,
		ErrEventNotFound,
		ErrBookingNotFound,
		ErrInsufficientTickets,
		ErrRateLimited,
		ErrLockNotAcquired,
		ErrTimeout,
	}

	for _, sentinel := range sentinels {
		rebuilt := FromWire(Code(sentinel), sentinel.Error())
		assert.True(t, errors.Is(rebuilt, sentinel), "code %s", Code(sentinel))
	}
}

func TestFromWireValidationKeepsMessage(t *testing.T) {
	err := FromWire(CodeValidation, "ticket quantity must be at least 1")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "ticket quantity must be at least 1", err.Error())
}

func TestFromWireUnknownCode(t *testing.T) {
	err := FromWire("SOMETHING_NEW", "upstream exploded")
	assert.Equal(t, "upstream exploded", err.Error())

	err = FromWire(CodeInternal, "")
	assert.Equal(t, "internal error", err.Error())
}

func TestValidationDetection(t *testing.T) {
	assert.True(t, IsValidation(Validation("nope")))
	assert.True(t, IsValidation(fmt.Errorf("context: %w", Validation("nope"))))
	assert.False(t, IsValidation(ErrForbidden))
}
