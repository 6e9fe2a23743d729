package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CorrelationStore tracks in-flight non-auth lookups: a request record
// per correlation id plus a pub/sub notification that wakes the owning
// process. Response records live in a [ResponseTable] with the lookup
// namespace.
type CorrelationStore struct {
	redis   redis.UniversalClient
	prefix  string
	channel string
	ttl     time.Duration
}

// LookupNotice is the pub/sub payload published on submit.
type LookupNotice struct {
	Kind      string          `json:"kind"`
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewCorrelationStore creates a [CorrelationStore]. channel is the
// pub/sub channel lookups are announced on.
func NewCorrelationStore(redisClient redis.UniversalClient, prefix, channel string, ttl time.Duration) *CorrelationStore {
	if prefix == "" {
		prefix = "bridge:lookup"
	}
	if channel == "" {
		channel = "bridge:lookup:notify"
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &CorrelationStore{
		redis:   redisClient,
		prefix:  prefix,
		channel: channel,
		ttl:     ttl,
	}
}

func (s *CorrelationStore) key(kind, requestID string) string {
	return s.prefix + ":" + kind + ":" + requestID
}

// SaveRequest writes the correlation record and announces it on the
// lookup channel. The record expires on its own if no one ever answers.
//
//	Performance: 1 Redis SET with TTL + 1 PUBLISH.
func (s *CorrelationStore) SaveRequest(ctx context.Context, kind string, record *CorrelationRecord, payload []byte) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(kind, record.RequestID), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	notice, err := json.Marshal(LookupNotice{
		Kind:      kind,
		RequestID: record.RequestID,
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	if err := s.redis.Publish(ctx, s.channel, notice).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// TakeRequest atomically claims the request record for a correlation id.
// The worker uses it so a notice that raced with record expiry is simply
// skipped. Returns [ErrResponseNotFound] when the record is gone.
func (s *CorrelationStore) TakeRequest(ctx context.Context, kind, requestID string) (*CorrelationRecord, error) {
	raw, err := s.redis.GetDel(ctx, s.key(kind, requestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResponseNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record := &CorrelationRecord{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteRequest is the caller-side cleanup after a wait times out.
// Best-effort; a missing record is fine.
func (s *CorrelationStore) DeleteRequest(ctx context.Context, kind, requestID string) error {
	if err := s.redis.Del(ctx, s.key(kind, requestID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Subscribe returns a pub/sub subscription on the lookup channel. The
// caller owns the subscription and must close it.
func (s *CorrelationStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.redis.Subscribe(ctx, s.channel)
}
