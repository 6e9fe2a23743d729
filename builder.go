package goBridge

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goBridge/confirm"
	"github.com/MrEthical07/goBridge/internal/audit"
	"github.com/MrEthical07/goBridge/internal/gateway"
	"github.com/MrEthical07/goBridge/internal/rate"
	"github.com/MrEthical07/goBridge/internal/stores"
	"github.com/MrEthical07/goBridge/internal/worker"
	"github.com/MrEthical07/goBridge/provider"
	"github.com/MrEthical07/goBridge/session"
)

// Builder defines a public type used by goBridge APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	client provider.Client
	keeper provider.SessionKeeper

	logger    *slog.Logger
	auditSink audit.Sink
	observers []session.Observer
	lookups   map[string]worker.LookupHandler

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config:  defaultConfig(),
		lookups: map[string]worker.LookupHandler{},
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithProvider describes the withprovider operation and its observable behavior.
//
// WithProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithProvider(client provider.Client, keeper provider.SessionKeeper) *Builder {
	b.client = client
	b.keeper = keeper
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	return b
}

// WithObserver registers a callback invoked after every successful
// authorization, in registration order.
func (b *Builder) WithObserver(observer session.Observer) *Builder {
	b.observers = append(b.observers, observer)
	return b
}

// WithLookupHandler registers the handler answering lookup requests of
// the given kind. Registering the same kind twice keeps the last handler.
func (b *Builder) WithLookupHandler(kind string, handler worker.LookupHandler) *Builder {
	b.lookups[kind] = handler
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Bridge, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.client == nil {
		return nil, errors.New("provider client required")
	}
	if b.keeper == nil {
		return nil, errors.New("session keeper required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	prefix := cfg.Store.KeyPrefix
	metrics := NewMetrics(cfg.Metrics)

	// -------- STORES --------
	queue := stores.NewActionQueue(b.redis, prefix+":queue")
	responses := stores.NewResponseTable(b.redis, prefix+":resp", cfg.Store.ResponseTTL)
	loginContexts := stores.NewLoginContextStore(b.redis, prefix+":login", cfg.Store.LoginContextTTL)
	lookups := stores.NewCorrelationStore(b.redis, prefix+":lookup", prefix+":lookup:notify", cfg.Store.LookupTTL)
	lookupResponses := stores.NewResponseTable(b.redis, prefix+":lookup:resp", cfg.Store.ResponseTTL)
	status := stores.NewWorkerStatusStore(b.redis, prefix+":status", cfg.Store.StatusTTL)

	// -------- SESSION --------
	var policy rate.Policy = rate.AllowAll{}
	if cfg.Security.EnablePhoneThrottle {
		policy = rate.New(b.redis, prefix+":rl", rate.Config{
			MaxAttempts: cfg.Security.MaxAttempts,
			Window:      cfg.Security.Window,
		})
	}

	observers := make([]session.Observer, 0, len(b.observers)+1)
	observers = append(observers, func(context.Context, provider.Identity) error {
		metrics.Inc(MetricAuthorized)
		return nil
	})
	observers = append(observers, b.observers...)

	sess := session.New(b.client, session.Options{
		Keeper:    b.keeper,
		Policy:    policy,
		Logger:    logger,
		Observers: observers,
	})

	// -------- ENGINE --------
	bridge := &Bridge{
		config:        cfg,
		session:       sess,
		loginContexts: loginContexts,
		status:        status,
		metrics:       metrics,
		logger:        logger,
	}

	bridge.gateway = gateway.New(queue, responses, lookups, lookupResponses, gateway.Config{
		ActionWait:   cfg.Gateway.ActionWait,
		LookupWait:   cfg.Gateway.LookupWait,
		PollInterval: cfg.Gateway.PollInterval,
	})
	bridge.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger)

	handlers := make(map[string]worker.LookupHandler, len(b.lookups))
	for kind, handler := range b.lookups {
		handlers[kind] = handler
	}
	bridge.lookupKinds = handlers

	bridge.worker = worker.New(worker.Deps{
		Queue:           queue,
		Responses:       responses,
		LoginContexts:   loginContexts,
		Lookups:         lookups,
		LookupResponses: lookupResponses,
		Status:          status,
		Session:         sess,
		LookupHandlers:  handlers,
		Logger:          logger,
		Audit:           bridge.audit,
		Hooks:           bridge.workerHooks(),
	}, worker.Config{
		PollTimeout:  cfg.Worker.PollTimeout,
		ErrorBackoff: cfg.Worker.ErrorBackoff,
		ProgressTTL:  cfg.Worker.ProgressTTL,
	})

	if cfg.Confirm.Enabled {
		manager, err := confirm.NewManager(confirm.Config{
			Secret:   cfg.Confirm.Secret,
			TokenTTL: cfg.Confirm.TokenTTL,
			LockTTL:  cfg.Confirm.LockTTL,
		}, stores.NewSingleFlightLock(b.redis, prefix+":confirm"))
		if err != nil {
			return nil, err
		}
		bridge.confirm = manager
	}

	b.built = true

	return bridge, nil
}
