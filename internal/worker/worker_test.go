package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goBridge/internal/stores"
	"github.com/MrEthical07/goBridge/provider"
)

type fakeSession struct {
	authorized bool

	startErr  error
	resendErr error
	verifyErr error
	sent      provider.CodeSent

	startCalls  []string
	resendHash  []string
	verifyCalls []string
}

func (f *fakeSession) Start(_ context.Context, phone string) (provider.CodeSent, error) {
	f.startCalls = append(f.startCalls, phone)
	if f.startErr != nil {
		return provider.CodeSent{}, f.startErr
	}
	return f.sent, nil
}

func (f *fakeSession) Resend(_ context.Context, _, phoneCodeHash string) (provider.CodeSent, error) {
	f.resendHash = append(f.resendHash, phoneCodeHash)
	if f.resendErr != nil {
		return provider.CodeSent{}, f.resendErr
	}
	return f.sent, nil
}

func (f *fakeSession) Verify(_ context.Context, phone, _, _, _ string) error {
	f.verifyCalls = append(f.verifyCalls, phone)
	if f.verifyErr != nil {
		return f.verifyErr
	}
	f.authorized = true
	return nil
}

func (f *fakeSession) Authorized() bool { return f.authorized }

type testRig struct {
	worker  *Worker
	session *fakeSession
	deps    Deps
	mr      *miniredis.Miniredis
}

func newTestWorker(t *testing.T) *testRig {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	session := &fakeSession{sent: provider.CodeSent{
		PhoneCodeHash: "hash-1",
		Timeout:       120,
		DeliveryType:  "app",
	}}

	deps := Deps{
		Queue:           stores.NewActionQueue(client, "test:queue"),
		Responses:       stores.NewResponseTable(client, "test:resp", 30*time.Second),
		LoginContexts:   stores.NewLoginContextStore(client, "test:login", time.Minute),
		Lookups:         stores.NewCorrelationStore(client, "test:lookup", "test:lookup:notify", time.Minute),
		LookupResponses: stores.NewResponseTable(client, "test:lookup:resp", 30*time.Second),
		Status:          stores.NewWorkerStatusStore(client, "test:status", time.Minute),
		Session:         session,
	}

	return &testRig{
		worker:  New(deps, Config{PollTimeout: 100 * time.Millisecond}),
		session: session,
		deps:    deps,
		mr:      mr,
	}
}

func (r *testRig) takeResponse(t *testing.T, requestID string) *stores.ActionResponse {
	t.Helper()
	response, err := r.deps.Responses.Take(context.Background(), requestID)
	if err != nil {
		t.Fatalf("Take(%q) failed: %v", requestID, err)
	}
	return response
}

func TestWorkerStartSuccess(t *testing.T) {
	rig := newTestWorker(t)
	ctx := context.Background()

	rig.worker.handleItem(ctx, mustMarshal(t, &stores.ActionRequest{
		RequestID: "req-1",
		Action:    stores.ActionStart,
		Phone:     "+15550001",
	}))

	response := rig.takeResponse(t, "req-1")
	if response.Status != stores.StatusOK {
		t.Fatalf("status = %q, want ok (%s)", response.Status, response.Message)
	}
	if response.PhoneCodeHash != "hash-1" || response.Timeout != 120 {
		t.Fatalf("unexpected response payload: %+v", response)
	}

	record, err := rig.deps.LoginContexts.Get(ctx, "+15550001")
	if err != nil {
		t.Fatalf("login context missing after start: %v", err)
	}
	if record.PhoneCodeHash != "hash-1" {
		t.Fatalf("login context hash = %q, want hash-1", record.PhoneCodeHash)
	}
}

func TestWorkerStartFloodWait(t *testing.T) {
	rig := newTestWorker(t)
	rig.session.startErr = &provider.FloodWaitError{Seconds: 42}

	var observed int
	rig.worker.deps.Hooks.OnFloodWait = func(seconds int) { observed = seconds }

	rig.worker.handleItem(context.Background(), mustMarshal(t, &stores.ActionRequest{
		RequestID: "req-1",
		Action:    stores.ActionStart,
		Phone:     "+15550001",
	}))

	response := rig.takeResponse(t, "req-1")
	if response.Status != stores.StatusError || response.Reason != string(provider.ReasonFloodWait) {
		t.Fatalf("unexpected response: %+v", response)
	}
	if response.RetryAfter == nil || *response.RetryAfter != 42 {
		t.Fatalf("retry_after = %v, want 42", response.RetryAfter)
	}
	if observed != 42 {
		t.Fatalf("flood wait hook saw %d, want 42", observed)
	}
}

func TestWorkerResendWithoutContextExpires(t *testing.T) {
	rig := newTestWorker(t)

	rig.worker.handleItem(context.Background(), mustMarshal(t, &stores.ActionRequest{
		RequestID: "req-1",
		Action:    stores.ActionResend,
		Phone:     "+15550001",
	}))

	response := rig.takeResponse(t, "req-1")
	if response.Reason != stores.ReasonExpired {
		t.Fatalf("reason = %q, want %q", response.Reason, stores.ReasonExpired)
	}
	if len(rig.session.resendHash) != 0 {
		t.Fatal("resend must not reach the session without a login context")
	}
}

func TestWorkerResendUsesStoredHash(t *testing.T) {
	rig := newTestWorker(t)
	ctx := context.Background()

	if err := rig.deps.LoginContexts.Save(ctx, "+15550001", &stores.LoginContext{
		PhoneCodeHash: "stored-hash",
		Timeout:       120,
	}); err != nil {
		t.Fatalf("seeding login context: %v", err)
	}
	rig.session.sent.PhoneCodeHash = "hash-2"

	rig.worker.handleItem(ctx, mustMarshal(t, &stores.ActionRequest{
		RequestID: "req-1",
		Action:    stores.ActionResend,
		Phone:     "+15550001",
	}))

	if len(rig.session.resendHash) != 1 || rig.session.resendHash[0] != "stored-hash" {
		t.Fatalf("resend hash = %v, want [stored-hash]", rig.session.resendHash)
	}

	record, err := rig.deps.LoginContexts.Get(ctx, "+15550001")
	if err != nil {
		t.Fatalf("login context missing after resend: %v", err)
	}
	if record.PhoneCodeHash != "hash-2" {
		t.Fatalf("login context not replaced, hash = %q", record.PhoneCodeHash)
	}
}

func TestWorkerVerifySuccess(t *testing.T) {
	rig := newTestWorker(t)
	ctx := context.Background()

	if err := rig.deps.LoginContexts.Save(ctx, "+15550001", &stores.LoginContext{
		PhoneCodeHash: "stored-hash",
	}); err != nil {
		t.Fatalf("seeding login context: %v", err)
	}

	rig.worker.handleItem(ctx, mustMarshal(t, &stores.ActionRequest{
		RequestID: "req-1",
		Action:    stores.ActionVerify,
		Phone:     "+15550001",
		Code:      "12345",
	}))

	response := rig.takeResponse(t, "req-1")
	if response.Status != stores.StatusOK || !response.Authorized {
		t.Fatalf("unexpected response: %+v", response)
	}
	if _, err := rig.deps.LoginContexts.Get(ctx, "+15550001"); !errors.Is(err, stores.ErrLoginContextNotFound) {
		t.Fatalf("login context must be deleted after verify, got %v", err)
	}
}

func TestWorkerVerifyPasswordRequired(t *testing.T) {
	rig := newTestWorker(t)
	rig.session.verifyErr = provider.ErrPasswordRequired

	rig.worker.handleItem(context.Background(), mustMarshal(t, &stores.ActionRequest{
		RequestID:     "req-1",
		Action:        stores.ActionVerify,
		Phone:         "+15550001",
		Code:          "12345",
		PhoneCodeHash: "hash-1",
	}))

	response := rig.takeResponse(t, "req-1")
	if response.Reason != stores.ReasonPasswordRequired {
		t.Fatalf("reason = %q, want %q", response.Reason, stores.ReasonPasswordRequired)
	}
}

func TestWorkerDropsItemsWithoutRequestID(t *testing.T) {
	rig := newTestWorker(t)

	var dropped int
	rig.worker.deps.Hooks.OnDropped = func() { dropped++ }

	rig.worker.handleItem(context.Background(), []byte("{not json"))
	rig.worker.handleItem(context.Background(), mustMarshal(t, &stores.ActionRequest{
		Action: stores.ActionStart,
		Phone:  "+15550001",
	}))

	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if len(rig.session.startCalls) != 0 {
		t.Fatal("dropped items must not reach the session")
	}
}

func TestWorkerPanicStillAnswers(t *testing.T) {
	rig := newTestWorker(t)
	rig.deps.Session = nil // Authorized() call inside dispatch panics
	rig.worker.deps.Session = nil

	rig.worker.handleItem(context.Background(), mustMarshal(t, &stores.ActionRequest{
		RequestID: "req-1",
		Action:    stores.ActionStatus,
	}))

	response := rig.takeResponse(t, "req-1")
	if response.Status != stores.StatusError || response.Reason != string(provider.ReasonServerError) {
		t.Fatalf("unexpected response after panic: %+v", response)
	}
}

func TestWorkerUnknownAction(t *testing.T) {
	rig := newTestWorker(t)

	rig.worker.handleItem(context.Background(), mustMarshal(t, &stores.ActionRequest{
		RequestID: "req-1",
		Action:    "reboot",
	}))

	response := rig.takeResponse(t, "req-1")
	if response.Status != stores.StatusError || response.Reason != string(provider.ReasonServerError) {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	rig := newTestWorker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rig.worker.Run(ctx) }()

	if err := rig.deps.Queue.Push(ctx, &stores.ActionRequest{
		RequestID: "req-1",
		Action:    stores.ActionStart,
		Phone:     "+15550001",
	}); err != nil {
		t.Fatalf("push: %v", err)
	}

	response := awaitResponse(t, rig.deps.Responses, "req-1")
	if response.Status != stores.StatusOK {
		t.Fatalf("status = %q, want ok (%s)", response.Status, response.Message)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorkerLookupRoundtrip(t *testing.T) {
	rig := newTestWorker(t)
	rig.worker.deps.LookupHandlers = map[string]LookupHandler{
		"profile": func(_ context.Context, payload []byte) (any, error) {
			var in struct {
				Username string `json:"username"`
			}
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, err
			}
			return map[string]string{"username": in.Username, "name": "Test User"}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rig.worker.RunLookups(ctx) }()

	// Give the subscriber time to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	if err := rig.deps.Lookups.SaveRequest(ctx, "profile", &stores.CorrelationRecord{
		RequestID: "look-1",
		Timestamp: time.Now().Unix(),
	}, []byte(`{"username":"alice"}`)); err != nil {
		t.Fatalf("SaveRequest: %v", err)
	}

	raw := awaitRawResponse(t, rig.deps.LookupResponses, "look-1")
	envelope := &stores.LookupResponse{}
	if err := json.Unmarshal(raw, envelope); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if envelope.Status != stores.StatusOK {
		t.Fatalf("lookup status = %q (%s)", envelope.Status, envelope.Message)
	}
	var result map[string]string
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result["username"] != "alice" {
		t.Fatalf("result = %v", result)
	}
}

func TestWorkerLookupUnknownKind(t *testing.T) {
	rig := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rig.worker.RunLookups(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := rig.deps.Lookups.SaveRequest(ctx, "nope", &stores.CorrelationRecord{
		RequestID: "look-1",
		Timestamp: time.Now().Unix(),
	}, nil); err != nil {
		t.Fatalf("SaveRequest: %v", err)
	}

	raw := awaitRawResponse(t, rig.deps.LookupResponses, "look-1")
	envelope := &stores.LookupResponse{}
	if err := json.Unmarshal(raw, envelope); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if envelope.Status != stores.StatusError || envelope.Reason != string(provider.ReasonServerError) {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestWorkerHeartbeatReflectsAuthorization(t *testing.T) {
	rig := newTestWorker(t)
	ctx := context.Background()

	rig.worker.heartbeat(ctx, "idle")
	status, err := rig.deps.Status.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status.Authorized || status.Status != "idle" {
		t.Fatalf("unexpected status: %+v", status)
	}

	rig.session.authorized = true
	rig.worker.heartbeat(ctx, "idle")
	status, err = rig.deps.Status.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !status.Authorized || status.Status != "authorized" {
		t.Fatalf("unexpected status after auth: %+v", status)
	}
}

func TestWorkerStoreOutageIsNotExpired(t *testing.T) {
	rig := newTestWorker(t)
	ctx := context.Background()

	record := &stores.LoginContext{PhoneCodeHash: "hash-1", Timeout: 60, Type: "app"}
	if err := rig.deps.LoginContexts.Save(ctx, "+15550001", record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A Redis outage mid-flow must answer server_error, never expired:
	// the caller's login context is still live and must not be restarted.
	rig.mr.Close()

	for _, action := range []stores.Action{stores.ActionVerify, stores.ActionResend} {
		response := rig.worker.dispatch(ctx, &stores.ActionRequest{
			RequestID: "req-1",
			Action:    action,
			Phone:     "+15550001",
			Code:      "12345",
		})
		if response.Reason == stores.ReasonExpired {
			t.Fatalf("%s during outage answered expired", action)
		}
		if response.Status != stores.StatusError || response.Reason != string(provider.ReasonServerError) {
			t.Fatalf("%s during outage = %+v, want server_error", action, response)
		}
	}
	if len(rig.session.verifyCalls)+len(rig.session.resendHash) != 0 {
		t.Fatal("session reached despite store outage")
	}
}

func TestWorkerLookupChannelCloseSurfaces(t *testing.T) {
	rig := newTestWorker(t)

	ch := make(chan *redis.Message)
	close(ch)
	if err := rig.worker.consumeLookups(context.Background(), ch); !errors.Is(err, ErrLookupsClosed) {
		t.Fatalf("consumeLookups on closed channel = %v, want ErrLookupsClosed", err)
	}

	// A canceled context still wins over the closed channel.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch = make(chan *redis.Message)
	close(ch)
	if err := rig.worker.consumeLookups(ctx, ch); !errors.Is(err, context.Canceled) {
		t.Fatalf("consumeLookups with canceled ctx = %v, want context.Canceled", err)
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func awaitResponse(t *testing.T, table *stores.ResponseTable, requestID string) *stores.ActionResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		response, err := table.Take(context.Background(), requestID)
		if err == nil {
			return response
		}
		if !errors.Is(err, stores.ErrResponseNotFound) {
			t.Fatalf("Take(%q) failed: %v", requestID, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no response for %q within deadline", requestID)
	return nil
}

func awaitRawResponse(t *testing.T, table *stores.ResponseTable, requestID string) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		raw, err := table.TakeRaw(context.Background(), requestID)
		if err == nil {
			return raw
		}
		if !errors.Is(err, stores.ErrResponseNotFound) {
			t.Fatalf("TakeRaw(%q) failed: %v", requestID, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no response for %q within deadline", requestID)
	return nil
}
