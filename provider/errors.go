package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrPasswordRequired is returned by [Client.SignIn] when the account
	// has a second factor enabled and no password was supplied. Callers
	// must re-prompt, never retry blindly.
	ErrPasswordRequired = errors.New("two-factor password required")
	// ErrNotConnected is returned when an operation is attempted before
	// the transport is established.
	ErrNotConnected = errors.New("provider client not connected")
)

// RetryAfterSeconds is implemented by provider errors that carry an
// explicit server-mandated backoff. Normalize consults it before falling
// back to message-text extraction.
type RetryAfterSeconds interface {
	RetryAfterSeconds() int
}

// FloodWaitError is the provider's rate-limit rejection. Seconds is the
// mandatory wait before the same operation may be retried.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait of %d seconds required", e.Seconds)
}

// RetryAfterSeconds reports the server-mandated backoff.
func (e *FloodWaitError) RetryAfterSeconds() int { return e.Seconds }

// ResendUnavailableError indicates the provider refused to resend the
// login code: all alternate delivery channels are exhausted.
type ResendUnavailableError struct {
	Message string
}

func (e *ResendUnavailableError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "code resend unavailable"
}

// CodeInvalidError indicates the submitted one-time code was wrong.
type CodeInvalidError struct{}

func (*CodeInvalidError) Error() string { return "the confirmation code is invalid" }

// CodeExpiredError indicates the one-time code expired before sign-in.
type CodeExpiredError struct{}

func (*CodeExpiredError) Error() string { return "the confirmation code has expired" }

// PasswordInvalidError indicates the two-factor password was wrong.
type PasswordInvalidError struct{}

func (*PasswordInvalidError) Error() string { return "the two-factor password is invalid" }
