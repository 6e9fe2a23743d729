package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy is consulted before every provider-affecting operation. Check
// returns [ErrRateLimited] to deny; Observe records that the operation
// ran so window counters stay accurate.
type Policy interface {
	Check(ctx context.Context, phone, action string) error
	Observe(ctx context.Context, phone, action string) error
}

// AllowAll is the active default policy: every operation is permitted
// and nothing is recorded.
type AllowAll struct{}

func (AllowAll) Check(context.Context, string, string) error   { return nil }
func (AllowAll) Observe(context.Context, string, string) error { return nil }

// Config holds limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter is a per-phone, per-action fixed-window [Policy] backed by
// Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a [Limiter] under the given key prefix.
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	if prefix == "" {
		prefix = "bridge:rl"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

func (l *Limiter) key(phone, action string) string {
	return l.prefix + ":" + action + ":" + phone
}

// Check denies the operation once the window counter exceeds the budget.
func (l *Limiter) Check(ctx context.Context, phone, action string) error {
	count, err := l.redis.Get(ctx, l.key(phone, action)).Int64()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Observe records one attempt for the phone+action pair.
func (l *Limiter) Observe(ctx context.Context, phone, action string) error {
	count, err := l.redis.Incr(ctx, l.key(phone, action)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(phone, action), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return nil
}
