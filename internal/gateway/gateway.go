package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goBridge/internal/stores"
	"github.com/google/uuid"
)

var (
	// ErrTimeout means no response arrived within the wait budget. It is
	// never returned for a response that carried an error status.
	ErrTimeout = errors.New("no bridge response within budget")
)

// Config holds the wait budgets. Lookup waits are longer than action
// waits because upstream entity fetches can be slow.
type Config struct {
	ActionWait   time.Duration
	LookupWait   time.Duration
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ActionWait <= 0 {
		c.ActionWait = 15 * time.Second
	}
	if c.LookupWait <= 0 {
		c.LookupWait = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Millisecond
	}
	return c
}

// Gateway is the submit/await correlation helper shared by the login
// flow and every non-auth lookup.
type Gateway struct {
	queue           *stores.ActionQueue
	responses       *stores.ResponseTable
	lookups         *stores.CorrelationStore
	lookupResponses *stores.ResponseTable
	config          Config
}

// New creates a [Gateway] over the bridge's store families.
func New(
	queue *stores.ActionQueue,
	responses *stores.ResponseTable,
	lookups *stores.CorrelationStore,
	lookupResponses *stores.ResponseTable,
	cfg Config,
) *Gateway {
	return &Gateway{
		queue:           queue,
		responses:       responses,
		lookups:         lookups,
		lookupResponses: lookupResponses,
		config:          cfg.withDefaults(),
	}
}

// SubmitAction pushes an action request onto the work queue and returns
// its correlation id. A store failure surfaces immediately; the caller
// must not start polling for a request that was never queued.
func (g *Gateway) SubmitAction(ctx context.Context, request *stores.ActionRequest) (string, error) {
	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}
	if err := g.queue.Push(ctx, request); err != nil {
		return "", err
	}
	return request.RequestID, nil
}

// AwaitAction polls for the worker's response to the request. The first
// successful read consumes the response; on timeout the queued request
// is best-effort removed and [ErrTimeout] is returned.
func (g *Gateway) AwaitAction(ctx context.Context, request *stores.ActionRequest) (*stores.ActionResponse, error) {
	response, err := g.await(ctx, g.config.ActionWait, func(ctx context.Context) (*stores.ActionResponse, error) {
		return g.responses.Take(ctx, request.RequestID)
	})
	if errors.Is(err, ErrTimeout) {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = g.queue.Remove(cleanupCtx, request)
	}
	return response, err
}

// SubmitLookup writes a correlation record for a non-auth lookup,
// announces it on the lookup channel, and returns the correlation id.
func (g *Gateway) SubmitLookup(ctx context.Context, kind string, payload []byte) (string, error) {
	record := &stores.CorrelationRecord{
		RequestID: uuid.NewString(),
		Timestamp: time.Now().Unix(),
	}
	if err := g.lookups.SaveRequest(ctx, kind, record, payload); err != nil {
		return "", err
	}
	return record.RequestID, nil
}

// AwaitLookup polls for the raw lookup response. Consumes on success;
// on timeout the request record is best-effort deleted and [ErrTimeout]
// is returned.
func (g *Gateway) AwaitLookup(ctx context.Context, kind, requestID string) ([]byte, error) {
	raw, err := g.awaitRaw(ctx, g.config.LookupWait, func(ctx context.Context) ([]byte, error) {
		return g.lookupResponses.TakeRaw(ctx, requestID)
	})
	if errors.Is(err, ErrTimeout) {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = g.lookups.DeleteRequest(cleanupCtx, kind, requestID)
	}
	return raw, err
}

func (g *Gateway) await(
	ctx context.Context,
	budget time.Duration,
	take func(ctx context.Context) (*stores.ActionResponse, error),
) (*stores.ActionResponse, error) {
	deadline := time.Now().Add(budget)
	for {
		response, err := take(ctx)
		if err == nil {
			return response, nil
		}
		if !errors.Is(err, stores.ErrResponseNotFound) {
			return nil, err
		}
		if err := g.sleep(ctx, deadline); err != nil {
			return nil, err
		}
	}
}

func (g *Gateway) awaitRaw(
	ctx context.Context,
	budget time.Duration,
	take func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	deadline := time.Now().Add(budget)
	for {
		raw, err := take(ctx)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, stores.ErrResponseNotFound) {
			return nil, err
		}
		if err := g.sleep(ctx, deadline); err != nil {
			return nil, err
		}
	}
}

// sleep waits one poll interval, bounded by the budget deadline and ctx.
func (g *Gateway) sleep(ctx context.Context, deadline time.Time) error {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return ErrTimeout
	}

	interval := g.config.PollInterval
	if interval > remaining {
		interval = remaining
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
