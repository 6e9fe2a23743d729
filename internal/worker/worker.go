package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goBridge/internal/audit"
	"github.com/MrEthical07/goBridge/internal/rate"
	"github.com/MrEthical07/goBridge/internal/stores"
	"github.com/MrEthical07/goBridge/provider"
)

// ErrLookupsClosed means the pub/sub subscription delivering lookup
// notices closed while the worker context was still live.
var ErrLookupsClosed = errors.New("lookup subscription closed")

// AuthSession is the slice of the session the worker dispatches to.
type AuthSession interface {
	Start(ctx context.Context, phone string) (provider.CodeSent, error)
	Resend(ctx context.Context, phone, phoneCodeHash string) (provider.CodeSent, error)
	Verify(ctx context.Context, phone, code, phoneCodeHash, password string) error
	Authorized() bool
}

// LookupHandler answers one non-auth lookup kind. The returned value is
// JSON-marshaled into the response envelope.
type LookupHandler func(ctx context.Context, payload []byte) (any, error)

// Hooks are optional observation points the engine wires to its metrics.
// Nil funcs are skipped.
type Hooks struct {
	OnProcessed func(action string, ok bool)
	OnDropped   func()
	OnFloodWait func(seconds int)
	OnLookup    func(kind string, ok bool)
	OnPollError func()
}

// Config tunes the loop.
type Config struct {
	PollTimeout  time.Duration
	ErrorBackoff time.Duration
	ProgressTTL  time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollTimeout <= 0 {
		c.PollTimeout = 5 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = time.Second
	}
	if c.ProgressTTL <= 0 {
		c.ProgressTTL = 2 * time.Minute
	}
	return c
}

// Deps are the collaborators the worker consumes. Everything is injected
// so tests can swap the session for a scripted double.
type Deps struct {
	Queue           *stores.ActionQueue
	Responses       *stores.ResponseTable
	LoginContexts   *stores.LoginContextStore
	Lookups         *stores.CorrelationStore
	LookupResponses *stores.ResponseTable
	Status          *stores.WorkerStatusStore
	Session         AuthSession
	LookupHandlers  map[string]LookupHandler
	Logger          *slog.Logger
	Audit           *audit.Dispatcher
	Hooks           Hooks
}

// Worker consumes the action queue and the lookup channel, serializing
// everything against the one live session.
type Worker struct {
	deps   Deps
	config Config
	logger *slog.Logger
}

// New creates a [Worker].
func New(deps Deps, cfg Config) *Worker {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{
		deps:   deps,
		config: cfg.withDefaults(),
		logger: logger,
	}
}

// Run drains the action queue until ctx is canceled. Always returns
// ctx.Err(); a queue failure is retried, never propagated.
func (w *Worker) Run(ctx context.Context) error {
	w.heartbeat(ctx, "idle")
	defer w.shutdownStatus()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := w.deps.Queue.Pop(ctx, w.config.PollTimeout)
		switch {
		case err == nil:
			w.handleItem(ctx, raw)
		case errors.Is(err, stores.ErrQueueEmpty):
			w.heartbeat(ctx, "idle")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return ctx.Err()
		default:
			w.logger.Error("queue poll failed", "err", err)
			if w.deps.Hooks.OnPollError != nil {
				w.deps.Hooks.OnPollError()
			}
			if sleepErr := sleepCtx(ctx, w.config.ErrorBackoff); sleepErr != nil {
				return sleepErr
			}
		}
	}
}

// RunLookups serves the pub/sub lookup channel until ctx is canceled.
// Returns [ErrLookupsClosed] when the subscription dies while ctx is
// still live, so a dead subscriber never fails silently.
func (w *Worker) RunLookups(ctx context.Context) error {
	sub := w.deps.Lookups.Subscribe(ctx)
	defer func() { _ = sub.Close() }()

	return w.consumeLookups(ctx, sub.Channel())
}

func (w *Worker) consumeLookups(ctx context.Context, ch <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				w.logger.Error("lookup subscription closed unexpectedly")
				return ErrLookupsClosed
			}
			w.handleLookupNotice(ctx, []byte(msg.Payload))
		}
	}
}

func (w *Worker) handleItem(ctx context.Context, raw []byte) {
	request := &stores.ActionRequest{}
	if err := json.Unmarshal(raw, request); err != nil {
		w.logger.Error("dropping malformed queue item", "err", err)
		if w.deps.Hooks.OnDropped != nil {
			w.deps.Hooks.OnDropped()
		}
		return
	}
	if request.RequestID == "" {
		// No correlation id means no response is possible: log and drop.
		w.logger.Error("dropping queue item without request_id", "action", request.Action, "phone", request.Phone)
		if w.deps.Hooks.OnDropped != nil {
			w.deps.Hooks.OnDropped()
		}
		return
	}

	// Stale progress from an earlier attempt must not leak into this one.
	if request.Phone != "" {
		if err := w.deps.Status.ClearProgress(ctx, request.Phone); err != nil {
			w.logger.Warn("clearing progress marker failed", "phone", request.Phone, "err", err)
		}
	}

	w.heartbeat(ctx, "processing")

	response := w.dispatch(ctx, request)

	if err := w.deps.Responses.Save(ctx, request.RequestID, response); err != nil {
		// The caller will see a timeout; nothing else can be done here.
		w.logger.Error("writing response failed", "request_id", request.RequestID, "err", err)
	}

	ok := response.Status == stores.StatusOK
	if w.deps.Hooks.OnProcessed != nil {
		w.deps.Hooks.OnProcessed(string(request.Action), ok)
	}
	w.audit(ctx, request, response)
	w.heartbeat(ctx, "idle")
}

// dispatch maps one request to one response. It never returns nil and
// never lets a panic escape.
func (w *Worker) dispatch(ctx context.Context, request *stores.ActionRequest) (response *stores.ActionResponse) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("dispatch panicked", "request_id", request.RequestID, "action", request.Action, "panic", r)
			response = w.failureResponse(fmt.Errorf("internal worker failure: %v", r))
		}
	}()

	switch request.Action {
	case stores.ActionStart:
		return w.handleStart(ctx, request)
	case stores.ActionResend:
		return w.handleResend(ctx, request)
	case stores.ActionVerify:
		return w.handleVerify(ctx, request)
	case stores.ActionStatus:
		return &stores.ActionResponse{
			Status:     stores.StatusOK,
			Authorized: w.deps.Session.Authorized(),
		}
	default:
		return &stores.ActionResponse{
			Status:  stores.StatusError,
			Reason:  string(provider.ReasonServerError),
			Message: fmt.Sprintf("unknown action %q", request.Action),
		}
	}
}

func (w *Worker) handleStart(ctx context.Context, request *stores.ActionRequest) *stores.ActionResponse {
	sent, err := w.deps.Session.Start(ctx, request.Phone)
	if err != nil {
		return w.failureResponse(err)
	}

	record := &stores.LoginContext{
		PhoneCodeHash: sent.PhoneCodeHash,
		Timeout:       sent.Timeout,
		Type:          sent.DeliveryType,
	}
	if err := w.deps.LoginContexts.Save(ctx, request.Phone, record); err != nil {
		return w.failureResponse(err)
	}
	if err := w.deps.Status.SetProgress(ctx, request.Phone, "code_sent", w.config.ProgressTTL); err != nil {
		w.logger.Warn("setting progress marker failed", "phone", request.Phone, "err", err)
	}

	return &stores.ActionResponse{
		Status:        stores.StatusOK,
		PhoneCodeHash: sent.PhoneCodeHash,
		Timeout:       sent.Timeout,
	}
}

func (w *Worker) handleResend(ctx context.Context, request *stores.ActionRequest) *stores.ActionResponse {
	hash, err := w.resolveHash(ctx, request)
	if err != nil {
		if errors.Is(err, stores.ErrLoginContextNotFound) {
			return expiredResponse()
		}
		return w.failureResponse(err)
	}

	sent, err := w.deps.Session.Resend(ctx, request.Phone, hash)
	if err != nil {
		return w.failureResponse(err)
	}

	record := &stores.LoginContext{
		PhoneCodeHash: sent.PhoneCodeHash,
		Timeout:       sent.Timeout,
		Type:          sent.DeliveryType,
	}
	if err := w.deps.LoginContexts.Save(ctx, request.Phone, record); err != nil {
		return w.failureResponse(err)
	}

	return &stores.ActionResponse{
		Status:        stores.StatusOK,
		PhoneCodeHash: sent.PhoneCodeHash,
		Timeout:       sent.Timeout,
	}
}

func (w *Worker) handleVerify(ctx context.Context, request *stores.ActionRequest) *stores.ActionResponse {
	hash, err := w.resolveHash(ctx, request)
	if err != nil {
		if errors.Is(err, stores.ErrLoginContextNotFound) {
			return expiredResponse()
		}
		return w.failureResponse(err)
	}

	err = w.deps.Session.Verify(ctx, request.Phone, request.Code, hash, request.Password)
	if err != nil {
		if errors.Is(err, provider.ErrPasswordRequired) {
			return &stores.ActionResponse{
				Status:  stores.StatusError,
				Reason:  stores.ReasonPasswordRequired,
				Message: "two-factor password required",
			}
		}
		return w.failureResponse(err)
	}

	if err := w.deps.LoginContexts.Delete(ctx, request.Phone); err != nil {
		w.logger.Warn("deleting login context failed", "phone", request.Phone, "err", err)
	}
	if err := w.deps.Status.SetProgress(ctx, request.Phone, "authorized", w.config.ProgressTTL); err != nil {
		w.logger.Warn("setting progress marker failed", "phone", request.Phone, "err", err)
	}

	return &stores.ActionResponse{
		Status:     stores.StatusOK,
		Authorized: true,
	}
}

// resolveHash prefers the hash carried in the request and falls back to
// the live login context. A missing context surfaces as
// [stores.ErrLoginContextNotFound]; a store outage must not — the
// caller would restart a login flow that never expired.
func (w *Worker) resolveHash(ctx context.Context, request *stores.ActionRequest) (string, error) {
	if request.PhoneCodeHash != "" {
		return request.PhoneCodeHash, nil
	}

	record, err := w.deps.LoginContexts.Get(ctx, request.Phone)
	if err != nil {
		return "", err
	}
	return record.PhoneCodeHash, nil
}

func (w *Worker) handleLookupNotice(ctx context.Context, payload []byte) {
	notice := &stores.LookupNotice{}
	if err := json.Unmarshal(payload, notice); err != nil {
		w.logger.Error("dropping malformed lookup notice", "err", err)
		return
	}
	if notice.RequestID == "" {
		w.logger.Error("dropping lookup notice without request_id", "kind", notice.Kind)
		return
	}

	// Claim the request record; a notice that raced with expiry (or a
	// duplicate delivery) is skipped.
	if _, err := w.deps.Lookups.TakeRequest(ctx, notice.Kind, notice.RequestID); err != nil {
		if !errors.Is(err, stores.ErrResponseNotFound) {
			w.logger.Error("claiming lookup request failed", "request_id", notice.RequestID, "err", err)
		}
		return
	}

	envelope := w.runLookup(ctx, notice)
	encoded, err := json.Marshal(envelope)
	if err != nil {
		w.logger.Error("encoding lookup response failed", "request_id", notice.RequestID, "err", err)
		return
	}
	if err := w.deps.LookupResponses.SaveRaw(ctx, notice.RequestID, encoded); err != nil {
		w.logger.Error("writing lookup response failed", "request_id", notice.RequestID, "err", err)
	}

	if w.deps.Hooks.OnLookup != nil {
		w.deps.Hooks.OnLookup(notice.Kind, envelope.Status == stores.StatusOK)
	}
}

func (w *Worker) runLookup(ctx context.Context, notice *stores.LookupNotice) (envelope *stores.LookupResponse) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("lookup handler panicked", "kind", notice.Kind, "panic", r)
			failure := provider.Normalize(fmt.Errorf("internal lookup failure: %v", r))
			envelope = lookupFailure(failure)
		}
	}()

	handler, ok := w.deps.LookupHandlers[notice.Kind]
	if !ok {
		return &stores.LookupResponse{
			Status:  stores.StatusError,
			Reason:  string(provider.ReasonServerError),
			Message: fmt.Sprintf("unknown lookup kind %q", notice.Kind),
		}
	}

	result, err := handler(ctx, notice.Payload)
	if err != nil {
		return lookupFailure(provider.Normalize(err))
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return lookupFailure(provider.Normalize(err))
	}
	return &stores.LookupResponse{
		Status: stores.StatusOK,
		Result: encoded,
	}
}

// failureResponse normalizes any provider or store failure into an error
// response. Provider messages pass through verbatim.
func (w *Worker) failureResponse(err error) *stores.ActionResponse {
	if errors.Is(err, rate.ErrRateLimited) {
		return &stores.ActionResponse{
			Status:  stores.StatusError,
			Reason:  stores.ReasonRateLimited,
			Message: err.Error(),
		}
	}

	failure := provider.Normalize(err)
	if failure.Reason == provider.ReasonFloodWait && w.deps.Hooks.OnFloodWait != nil && failure.RetryAfter != nil {
		w.deps.Hooks.OnFloodWait(*failure.RetryAfter)
	}
	return &stores.ActionResponse{
		Status:     stores.StatusError,
		Reason:     string(failure.Reason),
		Message:    failure.Message,
		RetryAfter: failure.RetryAfter,
	}
}

func expiredResponse() *stores.ActionResponse {
	return &stores.ActionResponse{
		Status:  stores.StatusError,
		Reason:  stores.ReasonExpired,
		Message: "login context expired",
	}
}

func lookupFailure(failure provider.Failure) *stores.LookupResponse {
	return &stores.LookupResponse{
		Status:     stores.StatusError,
		Reason:     string(failure.Reason),
		Message:    failure.Message,
		RetryAfter: failure.RetryAfter,
	}
}

func (w *Worker) heartbeat(ctx context.Context, status string) {
	authorized := false
	if w.deps.Session != nil {
		authorized = w.deps.Session.Authorized()
	}
	if authorized && status == "idle" {
		status = "authorized"
	}

	if err := w.deps.Status.Set(ctx, &stores.WorkerStatus{
		Authorized: authorized,
		Status:     status,
		TS:         time.Now().Unix(),
	}); err != nil {
		w.logger.Warn("worker status heartbeat failed", "err", err)
	}
}

// shutdownStatus runs with a fresh context because the loop context is
// already canceled by the time we get here.
func (w *Worker) shutdownStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.heartbeat(ctx, "stopped")
}

func (w *Worker) audit(ctx context.Context, request *stores.ActionRequest, response *stores.ActionResponse) {
	if w.deps.Audit == nil {
		return
	}
	event := audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: "bridge.action",
		Action:    string(request.Action),
		Phone:     request.Phone,
		RequestID: request.RequestID,
		Success:   response.Status == stores.StatusOK,
	}
	if response.Status != stores.StatusOK {
		event.Reason = response.Reason
		event.Error = response.Message
		if response.RetryAfter != nil {
			event.RetryAfter = *response.RetryAfter
		}
	}
	w.deps.Audit.Emit(ctx, event)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
