package goBridge

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is an exported constant or variable used by the bridge engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLoginExpired is an exported constant or variable used by the bridge engine.
	ErrLoginExpired = errors.New("login context expired")
	// ErrPasswordRequired is an exported constant or variable used by the bridge engine.
	ErrPasswordRequired = errors.New("two-factor password required")
	// ErrFloodWait is an exported constant or variable used by the bridge engine.
	ErrFloodWait = errors.New("provider flood wait")
	// ErrRateLimited is an exported constant or variable used by the bridge engine.
	ErrRateLimited = errors.New("request rate limited")
	// ErrUpstreamRejected is an exported constant or variable used by the bridge engine.
	ErrUpstreamRejected = errors.New("upstream rejected request")
	// ErrStoreUnavailable is an exported constant or variable used by the bridge engine.
	ErrStoreUnavailable = errors.New("shared store unavailable")
	// ErrBridgeTimeout is an exported constant or variable used by the bridge engine.
	ErrBridgeTimeout = errors.New("bridge did not answer within budget")
	// ErrBridgeNotReady is an exported constant or variable used by the bridge engine.
	ErrBridgeNotReady = errors.New("bridge not initialized")
	// ErrLookupUnknown is an exported constant or variable used by the bridge engine.
	ErrLookupUnknown = errors.New("unknown lookup kind")
	// ErrConfirmTokenInvalid is an exported constant or variable used by the bridge engine.
	ErrConfirmTokenInvalid = errors.New("invalid confirmation token")
	// ErrConfirmInFlight is an exported constant or variable used by the bridge engine.
	ErrConfirmInFlight = errors.New("confirmation already in flight")
)

// FloodWaitError carries the provider-mandated backoff. It unwraps to
// [ErrFloodWait] so callers can branch with errors.Is.
type FloodWaitError struct {
	Seconds int
	Message string
}

func (e *FloodWaitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s", ErrFloodWait, e.Message)
	}
	return fmt.Sprintf("%v: retry after %d seconds", ErrFloodWait, e.Seconds)
}

func (e *FloodWaitError) Unwrap() error { return ErrFloodWait }

// RetryAfterSeconds implements the provider backoff accessor.
func (e *FloodWaitError) RetryAfterSeconds() int { return e.Seconds }

// RetryAfter extracts a backoff hint from any error in the chain.
// Returns (0, false) when the error carries none.
func RetryAfter(err error) (int, bool) {
	var carrier interface{ RetryAfterSeconds() int }
	if errors.As(err, &carrier) {
		return carrier.RetryAfterSeconds(), true
	}
	return 0, false
}
