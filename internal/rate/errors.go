package rate

import "errors"

var (
	// ErrRateLimited is returned by a policy that denies the operation.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps limiter backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
