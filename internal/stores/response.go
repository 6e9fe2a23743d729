package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseTable holds worker-produced responses keyed by request id, each
// with a short absolute expiry so an orphaned response a slow caller never
// reads cannot go stale-but-live.
type ResponseTable struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewResponseTable creates a [ResponseTable] under the given key prefix.
func NewResponseTable(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *ResponseTable {
	if prefix == "" {
		prefix = "bridge:resp"
	}
	if ttl <= 0 {
		ttl = 120 * time.Second
	}
	return &ResponseTable{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (t *ResponseTable) key(requestID string) string {
	return t.prefix + ":" + requestID
}

// Save writes the response for a request id. Written exactly once per id;
// a reused id simply overwrites, which is why consumers must delete after
// reading.
//
//	Performance: 1 Redis SET with TTL.
func (t *ResponseTable) Save(ctx context.Context, requestID string, response *ActionResponse) error {
	encoded, err := json.Marshal(response)
	if err != nil {
		return err
	}
	if err := t.redis.Set(ctx, t.key(requestID), encoded, t.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// SaveRaw writes an arbitrary JSON payload for a request id. Used by the
// lookup path, whose response shapes are caller-defined.
func (t *ResponseTable) SaveRaw(ctx context.Context, requestID string, payload []byte) error {
	if err := t.redis.Set(ctx, t.key(requestID), payload, t.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Take atomically reads and deletes the response for a request id,
// enforcing single consumption. Returns [ErrResponseNotFound] when no
// record exists.
//
//	Performance: 1 Redis GETDEL.
func (t *ResponseTable) Take(ctx context.Context, requestID string) (*ActionResponse, error) {
	raw, err := t.TakeRaw(ctx, requestID)
	if err != nil {
		return nil, err
	}

	response := &ActionResponse{}
	if err := json.Unmarshal(raw, response); err != nil {
		return nil, err
	}
	return response, nil
}

// TakeRaw is [ResponseTable.Take] without decoding.
func (t *ResponseTable) TakeRaw(ctx context.Context, requestID string) ([]byte, error) {
	raw, err := t.redis.GetDel(ctx, t.key(requestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResponseNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return raw, nil
}
