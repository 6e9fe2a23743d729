package stores

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// WorkerStatusStore holds the single worker-status record. The worker
// overwrites it on every transition; the short TTL makes a dead worker
// visible as an absent record rather than a stale "authorized".
type WorkerStatusStore struct {
	redis  redis.UniversalClient
	key    string
	ttl    time.Duration
	prefix string
}

// NewWorkerStatusStore creates a [WorkerStatusStore]. prefix also scopes
// the per-phone login progress markers.
func NewWorkerStatusStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *WorkerStatusStore {
	if prefix == "" {
		prefix = "bridge:worker"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &WorkerStatusStore{
		redis:  redisClient,
		key:    prefix + ":status",
		ttl:    ttl,
		prefix: prefix,
	}
}

// Set overwrites the worker-status record.
//
//	Performance: 2 Redis commands (HSET + EXPIRE) in one pipeline.
func (s *WorkerStatusStore) Set(ctx context.Context, status *WorkerStatus) error {
	authorized := "0"
	if status.Authorized {
		authorized = "1"
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key,
			"authorized", authorized,
			"status", status.Status,
			"ts", status.TS,
		)
		pipe.Expire(ctx, s.key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the live worker status, or [ErrStatusNotFound] when the
// record expired (worker down or wedged).
func (s *WorkerStatusStore) Get(ctx context.Context) (*WorkerStatus, error) {
	fields, err := s.redis.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrStatusNotFound
	}

	ts, _ := strconv.ParseInt(fields["ts"], 10, 64)
	return &WorkerStatus{
		Authorized: fields["authorized"] == "1",
		Status:     fields["status"],
		TS:         ts,
	}, nil
}

func (s *WorkerStatusStore) progressKey(phone string) string {
	return s.prefix + ":progress:" + phone
}

// SetProgress records the UI-visible login progress stage for a phone.
func (s *WorkerStatusStore) SetProgress(ctx context.Context, phone, stage string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if err := s.redis.Set(ctx, s.progressKey(phone), stage, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ClearProgress drops any stale progress marker for a phone so the UI
// cannot show results from an earlier attempt.
func (s *WorkerStatusStore) ClearProgress(ctx context.Context, phone string) error {
	if err := s.redis.Del(ctx, s.progressKey(phone)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
