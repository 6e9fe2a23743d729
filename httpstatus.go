package goBridge

import (
	"errors"
	"net/http"
)

// StatusCode maps a bridge error to the HTTP status an embedding server
// should answer with. nil maps to 200; an unrecognized error maps to 500.
//
//	200 success
//	400 missing or invalid input (including a required 2FA password)
//	409 confirmation already in flight
//	410 expired login context
//	429 provider flood wait or local rate limit (see [RetryAfter])
//	502 upstream rejected the request
//	503 bridge or store unavailable
//	504 upstream did not answer within budget
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrPasswordRequired),
		errors.Is(err, ErrLookupUnknown),
		errors.Is(err, ErrConfirmTokenInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfirmInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrLoginExpired):
		return http.StatusGone
	case errors.Is(err, ErrFloodWait), errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstreamRejected):
		return http.StatusBadGateway
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrBridgeNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBridgeTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
