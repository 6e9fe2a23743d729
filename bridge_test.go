package goBridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goBridge/provider"
)

type fakeClient struct {
	signInErr      error
	passwordErr    error
	sendCodeErr    error
	resendErr      error
	identity       provider.Identity
	signedOut      bool
	passwordChecks int
}

func (f *fakeClient) Connect(context.Context) error { return nil }

func (f *fakeClient) SendCode(context.Context, string) (provider.CodeSent, error) {
	if f.sendCodeErr != nil {
		return provider.CodeSent{}, f.sendCodeErr
	}
	return provider.CodeSent{PhoneCodeHash: "hash-1", Timeout: 120, DeliveryType: "app"}, nil
}

func (f *fakeClient) ResendCode(context.Context, string, string) (provider.CodeSent, error) {
	if f.resendErr != nil {
		return provider.CodeSent{}, f.resendErr
	}
	return provider.CodeSent{PhoneCodeHash: "hash-2", Timeout: 120, DeliveryType: "sms"}, nil
}

func (f *fakeClient) SignIn(context.Context, string, string, string) error {
	return f.signInErr
}

func (f *fakeClient) SignInWithPassword(context.Context, string) error {
	f.passwordChecks++
	return f.passwordErr
}

func (f *fakeClient) Self(context.Context) (provider.Identity, error) {
	return f.identity, nil
}

func (f *fakeClient) SignOut(context.Context) error {
	f.signedOut = true
	return nil
}

type fakeKeeper struct{ saves int }

func (f *fakeKeeper) SaveSession(context.Context) error {
	f.saves++
	return nil
}

type bridgeRig struct {
	bridge *Bridge
	client *fakeClient
	keeper *fakeKeeper
	mr     *miniredis.Miniredis
}

func newTestBridge(t *testing.T, mutate func(*Builder)) *bridgeRig {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	client := &fakeClient{identity: provider.Identity{UserID: 7, Username: "tester"}}
	keeper := &fakeKeeper{}

	cfg := defaultConfig()
	cfg.Gateway.ActionWait = 3 * time.Second
	cfg.Gateway.LookupWait = 3 * time.Second
	cfg.Gateway.PollInterval = 10 * time.Millisecond
	cfg.Worker.PollTimeout = 50 * time.Millisecond

	builder := New().
		WithConfig(cfg).
		WithRedis(redisClient).
		WithProvider(client, keeper)
	if mutate != nil {
		mutate(builder)
	}

	bridge, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return &bridgeRig{bridge: bridge, client: client, keeper: keeper, mr: mr}
}

// startWorker runs the bridge worker for the duration of the test.
func (r *bridgeRig) startWorker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.bridge.RunWorker(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("worker did not stop")
		}
	})
	// Let the lookup subscriber attach.
	time.Sleep(50 * time.Millisecond)
}

func TestLoginEndToEnd(t *testing.T) {
	rig := newTestBridge(t, nil)
	rig.startWorker(t)
	ctx := context.Background()

	result, err := rig.bridge.LoginStart(ctx, "+15550001")
	if err != nil {
		t.Fatalf("LoginStart: %v", err)
	}
	if result.PhoneCodeHash != "hash-1" || result.Timeout != 120 {
		t.Fatalf("unexpected start result: %+v", result)
	}

	if err := rig.bridge.LoginVerify(ctx, "+15550001", "12345", ""); err != nil {
		t.Fatalf("LoginVerify: %v", err)
	}
	if rig.keeper.saves != 1 {
		t.Fatalf("session persisted %d times, want 1", rig.keeper.saves)
	}

	status, err := rig.bridge.LoginStatus(ctx)
	if err != nil {
		t.Fatalf("LoginStatus: %v", err)
	}
	if !status.Authorized {
		t.Fatal("status not authorized after verify")
	}

	// The login context is single-use: a second verify must fast-fail.
	if err := rig.bridge.LoginVerify(ctx, "+15550001", "12345", ""); !errors.Is(err, ErrLoginExpired) {
		t.Fatalf("verify after success = %v, want ErrLoginExpired", err)
	}
}

func TestLoginResendWithoutStartFastFails(t *testing.T) {
	rig := newTestBridge(t, nil)
	// No worker running: the precondition check must answer alone.

	began := time.Now()
	_, err := rig.bridge.LoginResend(context.Background(), "+15550001")
	if !errors.Is(err, ErrLoginExpired) {
		t.Fatalf("LoginResend = %v, want ErrLoginExpired", err)
	}
	if elapsed := time.Since(began); elapsed > 500*time.Millisecond {
		t.Fatalf("fast-fail took %v", elapsed)
	}
	if StatusCode(err) != http.StatusGone {
		t.Fatalf("StatusCode = %d, want 410", StatusCode(err))
	}
}

func TestLoginStartFloodWait(t *testing.T) {
	rig := newTestBridge(t, nil)
	rig.client.sendCodeErr = &provider.FloodWaitError{Seconds: 42}
	rig.startWorker(t)

	_, err := rig.bridge.LoginStart(context.Background(), "+15550001")
	if !errors.Is(err, ErrFloodWait) {
		t.Fatalf("LoginStart = %v, want ErrFloodWait", err)
	}
	seconds, ok := RetryAfter(err)
	if !ok || seconds != 42 {
		t.Fatalf("RetryAfter = %d,%v, want 42,true", seconds, ok)
	}
	if StatusCode(err) != http.StatusTooManyRequests {
		t.Fatalf("StatusCode = %d, want 429", StatusCode(err))
	}
}

func TestLoginVerifyPasswordRequired(t *testing.T) {
	rig := newTestBridge(t, nil)
	rig.client.signInErr = provider.ErrPasswordRequired
	rig.startWorker(t)
	ctx := context.Background()

	if _, err := rig.bridge.LoginStart(ctx, "+15550001"); err != nil {
		t.Fatalf("LoginStart: %v", err)
	}

	err := rig.bridge.LoginVerify(ctx, "+15550001", "12345", "")
	if !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("LoginVerify = %v, want ErrPasswordRequired", err)
	}
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("StatusCode = %d, want 400", StatusCode(err))
	}

	if err := rig.bridge.LoginVerify(ctx, "+15550001", "12345", "hunter2"); err != nil {
		t.Fatalf("LoginVerify with password: %v", err)
	}
	if rig.client.passwordChecks != 1 {
		t.Fatalf("password checked %d times, want 1", rig.client.passwordChecks)
	}
}

func TestLoginInputValidation(t *testing.T) {
	rig := newTestBridge(t, nil)
	ctx := context.Background()

	if _, err := rig.bridge.LoginStart(ctx, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank phone accepted: %v", err)
	}
	if err := rig.bridge.LoginVerify(ctx, "+15550001", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank code accepted: %v", err)
	}
}

func TestLookupEndToEnd(t *testing.T) {
	rig := newTestBridge(t, func(b *Builder) {
		b.WithLookupHandler("user", func(_ context.Context, payload []byte) (any, error) {
			var in struct {
				Username string `json:"username"`
			}
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, err
			}
			return map[string]any{"username": in.Username, "id": 7}, nil
		})
	})
	rig.startWorker(t)

	raw, err := rig.bridge.Lookup(context.Background(), "user", map[string]string{"username": "alice"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	var result struct {
		Username string `json:"username"`
		ID       int    `json:"id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Username != "alice" || result.ID != 7 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestLookupUnknownKindFailsFast(t *testing.T) {
	rig := newTestBridge(t, nil)

	_, err := rig.bridge.Lookup(context.Background(), "nope", nil)
	if !errors.Is(err, ErrLookupUnknown) {
		t.Fatalf("Lookup = %v, want ErrLookupUnknown", err)
	}
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("StatusCode = %d, want 400", StatusCode(err))
	}
}

func TestLogoutWithConfirmation(t *testing.T) {
	rig := newTestBridge(t, func(b *Builder) {
		cfg := b.config
		cfg.Confirm.Enabled = true
		cfg.Confirm.Secret = []byte(strings.Repeat("s", 32))
		b.WithConfig(cfg)
	})
	ctx := context.Background()

	if err := rig.bridge.Logout(ctx, "garbage"); !errors.Is(err, ErrConfirmTokenInvalid) {
		t.Fatalf("Logout with garbage token = %v", err)
	}

	token, err := rig.bridge.ConfirmLogout()
	if err != nil {
		t.Fatalf("ConfirmLogout: %v", err)
	}
	if err := rig.bridge.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !rig.client.signedOut {
		t.Fatal("provider SignOut not called")
	}
}

func TestLogoutClearsLoginContexts(t *testing.T) {
	rig := newTestBridge(t, nil)
	rig.startWorker(t)
	ctx := context.Background()

	if _, err := rig.bridge.LoginStart(ctx, "+15550001"); err != nil {
		t.Fatalf("LoginStart: %v", err)
	}
	if _, err := rig.bridge.loginContexts.Get(ctx, "+15550001"); err != nil {
		t.Fatalf("no login context after start: %v", err)
	}

	if err := rig.bridge.Logout(ctx, ""); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// The in-flight login died with the session: resend must fast-fail.
	if _, err := rig.bridge.LoginResend(ctx, "+15550001"); !errors.Is(err, ErrLoginExpired) {
		t.Fatalf("LoginResend after logout = %v, want ErrLoginExpired", err)
	}
}

func TestBuilderValidation(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	if _, err := New().Build(); err == nil {
		t.Fatal("Build without redis succeeded")
	}
	if _, err := New().WithRedis(redisClient).Build(); err == nil {
		t.Fatal("Build without provider succeeded")
	}

	builder := New().
		WithRedis(redisClient).
		WithProvider(&fakeClient{}, &fakeKeeper{})
	if _, err := builder.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := builder.Build(); err == nil {
		t.Fatal("builder reuse succeeded")
	}
}

func TestStatusCodeContract(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrPasswordRequired, http.StatusBadRequest},
		{ErrLoginExpired, http.StatusGone},
		{&FloodWaitError{Seconds: 5}, http.StatusTooManyRequests},
		{ErrRateLimited, http.StatusTooManyRequests},
		{&UpstreamError{Reason: "server_error"}, http.StatusBadGateway},
		{ErrStoreUnavailable, http.StatusServiceUnavailable},
		{ErrBridgeNotReady, http.StatusServiceUnavailable},
		{ErrBridgeTimeout, http.StatusGatewayTimeout},
		{errors.New("mystery"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := StatusCode(tc.err); got != tc.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMetricsCountActions(t *testing.T) {
	rig := newTestBridge(t, nil)
	rig.startWorker(t)
	ctx := context.Background()

	if _, err := rig.bridge.LoginStart(ctx, "+15550001"); err != nil {
		t.Fatalf("LoginStart: %v", err)
	}
	if err := rig.bridge.LoginVerify(ctx, "+15550001", "12345", ""); err != nil {
		t.Fatalf("LoginVerify: %v", err)
	}

	m := rig.bridge.Metrics()
	if m.Value(MetricStartSuccess) != 1 {
		t.Fatalf("MetricStartSuccess = %d, want 1", m.Value(MetricStartSuccess))
	}
	if m.Value(MetricVerifySuccess) != 1 {
		t.Fatalf("MetricVerifySuccess = %d, want 1", m.Value(MetricVerifySuccess))
	}
	if m.Value(MetricAuthorized) != 1 {
		t.Fatalf("MetricAuthorized = %d, want 1", m.Value(MetricAuthorized))
	}
}
