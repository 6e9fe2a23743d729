package goBridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goBridge/confirm"
	"github.com/MrEthical07/goBridge/internal/audit"
	"github.com/MrEthical07/goBridge/internal/gateway"
	"github.com/MrEthical07/goBridge/internal/stores"
	"github.com/MrEthical07/goBridge/internal/worker"
	"github.com/MrEthical07/goBridge/provider"
	"github.com/MrEthical07/goBridge/session"
)

// Bridge defines a public type used by goBridge APIs.
//
// Bridge instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Bridge struct {
	config Config

	session       *session.Session
	gateway       *gateway.Gateway
	worker        *worker.Worker
	loginContexts *stores.LoginContextStore
	status        *stores.WorkerStatusStore
	confirm       *confirm.Manager
	lookupKinds   map[string]worker.LookupHandler

	audit   *audit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
}

// RunWorker runs the queue loop and the lookup subscriber until ctx is
// canceled, then flushes the audit dispatcher. Exactly one RunWorker per
// provider session may be live; callers in other processes use only the
// Login* and Lookup operations.
func (b *Bridge) RunWorker(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lookupDone := make(chan struct{})
	go func() {
		defer close(lookupDone)
		if err := b.worker.RunLookups(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("lookup loop exited", "err", err)
		}
	}()

	err := b.worker.Run(ctx)

	cancel()
	<-lookupDone
	b.audit.Close()
	return err
}

// Session exposes the wrapped exclusive session for worker-process code
// that needs direct, serialized client access via [session.Session.Do].
func (b *Bridge) Session() *session.Session {
	return b.session
}

// Metrics describes the metrics operation and its observable behavior.
//
// Metrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Bridge) Metrics() *Metrics {
	return b.metrics
}

// MetricsSnapshot is the exporter-facing snapshot accessor.
func (b *Bridge) MetricsSnapshot() MetricsSnapshot {
	return b.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (b *Bridge) AuditDropped() uint64 {
	return b.audit.Dropped()
}

func (b *Bridge) workerHooks() worker.Hooks {
	return worker.Hooks{
		OnProcessed: func(action string, ok bool) {
			b.metrics.Inc(actionMetric(action, ok))
		},
		OnDropped:   func() { b.metrics.Inc(MetricQueueDropped) },
		OnPollError: func() { b.metrics.Inc(MetricQueuePollError) },
		OnFloodWait: func(int) { b.metrics.Inc(MetricFloodWait) },
		OnLookup: func(_ string, ok bool) {
			if ok {
				b.metrics.Inc(MetricLookupSuccess)
			} else {
				b.metrics.Inc(MetricLookupFailure)
			}
		},
	}
}

func actionMetric(action string, ok bool) MetricID {
	switch stores.Action(action) {
	case stores.ActionStart:
		if ok {
			return MetricStartSuccess
		}
		return MetricStartFailure
	case stores.ActionResend:
		if ok {
			return MetricResendSuccess
		}
		return MetricResendFailure
	case stores.ActionVerify:
		if ok {
			return MetricVerifySuccess
		}
		return MetricVerifyFailure
	default:
		return MetricStatusQuery
	}
}

// UpstreamError carries the provider's rejection detail. It unwraps to
// [ErrUpstreamRejected].
type UpstreamError struct {
	Reason     string
	Message    string
	RetryAfter int
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s", ErrUpstreamRejected, e.Message)
	}
	return fmt.Sprintf("%v: %s", ErrUpstreamRejected, e.Reason)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamRejected }

// RetryAfterSeconds implements the backoff accessor; 0 means no hint.
func (e *UpstreamError) RetryAfterSeconds() int { return e.RetryAfter }

// responseError translates a worker response into the public error
// vocabulary. An ok response translates to nil.
func (b *Bridge) responseError(response *stores.ActionResponse) error {
	if response.Status == stores.StatusOK {
		return nil
	}

	switch response.Reason {
	case string(provider.ReasonFloodWait):
		seconds := 0
		if response.RetryAfter != nil {
			seconds = *response.RetryAfter
		}
		return &FloodWaitError{Seconds: seconds, Message: response.Message}
	case stores.ReasonExpired:
		return fmt.Errorf("%w: %s", ErrLoginExpired, response.Message)
	case stores.ReasonPasswordRequired:
		return ErrPasswordRequired
	case stores.ReasonRateLimited:
		b.metrics.Inc(MetricRateLimited)
		return fmt.Errorf("%w: %s", ErrRateLimited, response.Message)
	default:
		retryAfter := 0
		if response.RetryAfter != nil {
			retryAfter = *response.RetryAfter
		}
		return &UpstreamError{
			Reason:     response.Reason,
			Message:    response.Message,
			RetryAfter: retryAfter,
		}
	}
}

// transportError translates gateway and store failures.
func (b *Bridge) transportError(err error) error {
	switch {
	case errors.Is(err, gateway.ErrTimeout):
		b.metrics.Inc(MetricCallerTimeout)
		return fmt.Errorf("%w: %v", ErrBridgeTimeout, err)
	case errors.Is(err, stores.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

func (b *Bridge) observeAction(start time.Time) {
	b.metrics.Observe(MetricActionLatency, time.Since(start))
}
