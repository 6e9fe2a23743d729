package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActionQueue is the work queue the bridge feeds and the worker drains.
// Items carry no TTL; an item is gone the moment it is popped.
type ActionQueue struct {
	redis redis.UniversalClient
	key   string
}

// NewActionQueue creates an [ActionQueue] on the given key.
func NewActionQueue(redisClient redis.UniversalClient, key string) *ActionQueue {
	if key == "" {
		key = "bridge:queue"
	}
	return &ActionQueue{
		redis: redisClient,
		key:   key,
	}
}

// Push appends a request to the queue.
//
//	Performance: 1 Redis LPUSH.
func (q *ActionQueue) Push(ctx context.Context, request *ActionRequest) error {
	encoded, err := json.Marshal(request)
	if err != nil {
		return err
	}
	if err := q.redis.LPush(ctx, q.key, encoded).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Pop blocks for up to timeout waiting for the next item and returns its
// raw payload. Decoding is left to the worker so a malformed item can be
// logged and dropped without failing the pop. Returns [ErrQueueEmpty]
// when the timeout elapses with no item, and the context error when ctx
// is canceled mid-pop.
func (q *ActionQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	values, err := q.redis.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// BRPOP returns [key, value].
	if len(values) != 2 {
		return nil, fmt.Errorf("%w: unexpected BRPOP reply length %d", ErrStoreUnavailable, len(values))
	}
	return []byte(values[1]), nil
}

// Remove deletes one queued copy of the request if the worker has not
// popped it yet. Best-effort cleanup for callers whose wait timed out.
//
//	Performance: 1 Redis LREM.
func (q *ActionQueue) Remove(ctx context.Context, request *ActionRequest) error {
	encoded, err := json.Marshal(request)
	if err != nil {
		return err
	}
	if err := q.redis.LRem(ctx, q.key, 1, encoded).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Len returns the current queue depth.
func (q *ActionQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.redis.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}
