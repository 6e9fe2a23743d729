package stores

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginContextStore keeps the per-phone login context as a Redis hash
// whose TTL tracks the provider code validity window.
type LoginContextStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewLoginContextStore creates a [LoginContextStore] under the given
// prefix. ttl is the fallback window used when the provider does not
// report a code timeout.
func NewLoginContextStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *LoginContextStore {
	if prefix == "" {
		prefix = "bridge:login"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LoginContextStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *LoginContextStore) key(phone string) string {
	return s.prefix + ":" + phone
}

// Save writes (or replaces) the login context for a phone. The record TTL
// follows the provider-reported code timeout when positive, otherwise the
// configured fallback.
//
//	Performance: 2 Redis commands (HSET + EXPIRE) in one pipeline.
func (s *LoginContextStore) Save(ctx context.Context, phone string, record *LoginContext) error {
	ttl := s.ttl
	if record.Timeout > 0 {
		ttl = time.Duration(record.Timeout) * time.Second
	}

	key := s.key(phone)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"phone_code_hash", record.PhoneCodeHash,
			"timeout", record.Timeout,
			"type", record.Type,
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the live login context for a phone, or
// [ErrLoginContextNotFound] when it is absent or expired.
//
//	Performance: 1 Redis HGETALL.
func (s *LoginContextStore) Get(ctx context.Context, phone string) (*LoginContext, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(phone)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrLoginContextNotFound
	}

	timeout, _ := strconv.Atoi(fields["timeout"])
	return &LoginContext{
		PhoneCodeHash: fields["phone_code_hash"],
		Timeout:       timeout,
		Type:          fields["type"],
	}, nil
}

// Delete removes the login context for a phone. Deleting a missing record
// is not an error.
func (s *LoginContextStore) Delete(ctx context.Context, phone string) error {
	if err := s.redis.Del(ctx, s.key(phone)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Purge removes every live login context. Logout carries no phone, so
// it clears the whole namespace rather than leaving in-flight contexts
// to TTL-expire.
//
//	Performance: SCAN over the namespace + batched DEL.
func (s *LoginContextStore) Purge(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+":*", 100).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if len(keys) > 0 {
			if err := s.redis.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
