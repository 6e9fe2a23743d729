package stores

import (
	"encoding/json"
	"errors"
)

// Action names the operations the queue worker dispatches on.
type Action string

const (
	ActionStart  Action = "start"
	ActionResend Action = "resend"
	ActionVerify Action = "verify"
	ActionStatus Action = "status"
)

// ResponseStatus is the outcome field of an [ActionResponse].
type ResponseStatus string

const (
	StatusOK    ResponseStatus = "ok"
	StatusError ResponseStatus = "error"
)

// Worker-side failure reasons. These complement the provider-derived
// reasons and mark failures the provider never saw.
const (
	// ReasonExpired: the per-phone login context is gone, so the step
	// has no valid code hash to act on.
	ReasonExpired = "expired"
	// ReasonPasswordRequired: the account has two-factor auth enabled
	// and the request carried no password.
	ReasonPasswordRequired = "password_required"
	// ReasonRateLimited: the local throttle denied the attempt before
	// it reached the provider.
	ReasonRateLimited = "rate_limited"
)

// ActionRequest is one unit of work on the action queue. It is created by
// a caller, consumed exactly once by the worker, and never mutated.
type ActionRequest struct {
	RequestID     string `json:"request_id"`
	Action        Action `json:"action"`
	Phone         string `json:"phone"`
	Code          string `json:"code,omitempty"`
	PhoneCodeHash string `json:"phone_code_hash,omitempty"`
	Password      string `json:"password,omitempty"`
}

// ActionResponse is written once by the worker into the response table,
// keyed by request id, and consumed at most once by the waiting caller.
type ActionResponse struct {
	Status        ResponseStatus `json:"status"`
	Message       string         `json:"message,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	RetryAfter    *int           `json:"retry_after,omitempty"`
	PhoneCodeHash string         `json:"phone_code_hash,omitempty"`
	Timeout       int            `json:"timeout,omitempty"`
	Authorized    bool           `json:"authorized,omitempty"`
}

// LoginContext is the per-phone ephemeral record created by a successful
// start, replaced by resend, and deleted on verify or logout. Its
// presence is the precondition for resend and verify.
type LoginContext struct {
	PhoneCodeHash string `json:"phone_code_hash"`
	Timeout       int    `json:"timeout"`
	Type          string `json:"type"`
}

// LookupResponse is the envelope written for a completed non-auth lookup.
// Result carries the handler's JSON payload untouched.
type LookupResponse struct {
	Status     ResponseStatus  `json:"status"`
	Message    string          `json:"message,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	RetryAfter *int            `json:"retry_after,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// CorrelationRecord marks an in-flight non-auth lookup.
type CorrelationRecord struct {
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
}

// WorkerStatus is the single shared record overwritten by the worker on
// every state transition. Readers use it as a cheap authorization check
// without a bridge round trip.
type WorkerStatus struct {
	Authorized bool   `json:"authorized"`
	Status     string `json:"status"`
	TS         int64  `json:"ts"`
}

var (
	// ErrStoreUnavailable wraps every Redis transport failure.
	ErrStoreUnavailable = errors.New("shared store unavailable")
	// ErrQueueEmpty is returned by a queue pop that timed out with no item.
	ErrQueueEmpty = errors.New("action queue empty")
	// ErrResponseNotFound means no response record exists (yet) for the id.
	ErrResponseNotFound = errors.New("response not found")
	// ErrLoginContextNotFound means the per-phone login context is absent
	// or expired; callers surface this as a distinct expired outcome.
	ErrLoginContextNotFound = errors.New("login context not found")
	// ErrStatusNotFound means no worker-status record is currently live.
	ErrStatusNotFound = errors.New("worker status not found")
	// ErrLockHeld means another holder owns the single-flight lock.
	ErrLockHeld = errors.New("lock already held")
	// ErrLockNotHeld is returned when releasing a lock with a stale token.
	ErrLockNotHeld = errors.New("lock not held by this token")
)
