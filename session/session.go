package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/MrEthical07/goBridge/internal/rate"
	"github.com/MrEthical07/goBridge/provider"
)

// State is the session lifecycle position. Authenticated is terminal for
// the session lifetime; only a logout resets it.
type State uint8

const (
	StateUnauthenticated State = iota
	StateCodeSent
	StatePasswordRequired
	StateAuthenticated
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateCodeSent:
		return "code_sent"
	case StatePasswordRequired:
		return "password_required"
	case StateAuthenticated:
		return "authorized"
	default:
		return "unauthenticated"
	}
}

// Observer is notified after authorization is durably committed.
// Observers run synchronously in registration order; a failing observer
// is logged and does not abort the remaining observers.
type Observer func(ctx context.Context, identity provider.Identity) error

// Options configures a [Session]. All fields are optional except Client.
type Options struct {
	// Keeper persists provider session state after sign-in. When nil,
	// persistence is assumed to be handled by the client itself.
	Keeper provider.SessionKeeper
	// Policy is the rate-limit hook consulted before each operation.
	// Defaults to [rate.AllowAll].
	Policy rate.Policy
	// Logger receives observer failures and identity-refresh warnings.
	Logger *slog.Logger
	// Observers are invoked after each successful authorization.
	Observers []Observer
}

// Session serializes every operation against the single live provider
// client and owns the authorized flag.
type Session struct {
	mu     sync.Mutex
	client provider.Client
	keeper provider.SessionKeeper
	policy rate.Policy
	logger *slog.Logger

	observers []Observer

	state        State
	authorized   bool
	identity     provider.Identity
	identityOK   bool
	authorizedCh chan struct{}
}

// New creates a [Session] wrapping the one live provider client.
func New(client provider.Client, opts Options) *Session {
	policy := opts.Policy
	if policy == nil {
		policy = rate.AllowAll{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Session{
		client:       client,
		keeper:       opts.Keeper,
		policy:       policy,
		logger:       logger,
		observers:    opts.Observers,
		state:        StateUnauthenticated,
		authorizedCh: make(chan struct{}),
	}
}

// Start requests a one-time login code for the phone. On success the
// session moves to code-sent and the returned hash must accompany the
// later verify.
func (s *Session) Start(ctx context.Context, phone string) (provider.CodeSent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.policy.Check(ctx, phone, "start"); err != nil {
		return provider.CodeSent{}, err
	}
	if err := s.client.Connect(ctx); err != nil {
		return provider.CodeSent{}, err
	}

	sent, err := s.client.SendCode(ctx, phone)
	if observeErr := s.policy.Observe(ctx, phone, "start"); observeErr != nil {
		s.logger.Warn("rate observe failed", "action", "start", "err", observeErr)
	}
	if err != nil {
		return provider.CodeSent{}, err
	}

	s.state = StateCodeSent
	return sent, nil
}

// Resend requests the code again via an alternate delivery channel using
// the hash from the previous Start.
func (s *Session) Resend(ctx context.Context, phone, phoneCodeHash string) (provider.CodeSent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.policy.Check(ctx, phone, "resend"); err != nil {
		return provider.CodeSent{}, err
	}
	if err := s.client.Connect(ctx); err != nil {
		return provider.CodeSent{}, err
	}

	sent, err := s.client.ResendCode(ctx, phone, phoneCodeHash)
	if observeErr := s.policy.Observe(ctx, phone, "resend"); observeErr != nil {
		s.logger.Warn("rate observe failed", "action", "resend", "err", observeErr)
	}
	if err != nil {
		return provider.CodeSent{}, err
	}

	s.state = StateCodeSent
	return sent, nil
}

// Verify attempts sign-in with the one-time code. When the account has a
// second factor and password is empty it returns
// [provider.ErrPasswordRequired] without mutating authorized; the caller
// must re-prompt. On success the session state is persisted, the cached
// identity snapshot is refreshed (best effort), authorized flips true,
// observers run, and in-process waiters wake. On any failure the state
// is unchanged.
func (s *Session) Verify(ctx context.Context, phone, code, phoneCodeHash, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.policy.Check(ctx, phone, "verify"); err != nil {
		return err
	}
	if err := s.client.Connect(ctx); err != nil {
		return err
	}

	err := s.client.SignIn(ctx, phone, code, phoneCodeHash)
	if observeErr := s.policy.Observe(ctx, phone, "verify"); observeErr != nil {
		s.logger.Warn("rate observe failed", "action", "verify", "err", observeErr)
	}
	if err != nil {
		if !errors.Is(err, provider.ErrPasswordRequired) {
			return err
		}
		if password == "" {
			s.state = StatePasswordRequired
			return provider.ErrPasswordRequired
		}
		if err := s.client.SignInWithPassword(ctx, password); err != nil {
			return err
		}
	}

	if s.keeper != nil {
		if err := s.keeper.SaveSession(ctx); err != nil {
			return fmt.Errorf("persist session state: %w", err)
		}
	}

	// Identity refresh is best effort: a failure here downgrades to a
	// minimal authorized signal, it never rolls back the sign-in.
	if identity, err := s.client.Self(ctx); err != nil {
		s.identityOK = false
		s.logger.Warn("identity refresh failed after sign-in", "phone", phone, "err", err)
	} else {
		s.identity = identity
		s.identityOK = true
	}

	s.state = StateAuthenticated
	if !s.authorized {
		s.authorized = true
		close(s.authorizedCh)
	}

	s.notifyObservers(ctx)
	return nil
}

// Logout terminates the provider-side session and resets the state
// machine to unauthenticated.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.SignOut(ctx); err != nil {
		return err
	}

	if s.authorized {
		s.authorizedCh = make(chan struct{})
	}
	s.authorized = false
	s.identityOK = false
	s.state = StateUnauthenticated
	return nil
}

// Do runs fn with exclusive access to the live client. Every in-process
// path that needs the client — entity lookups, background refreshers —
// must go through Do so provider calls never overlap.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context, client provider.Client) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Connect(ctx); err != nil {
		return err
	}
	return fn(ctx, s.client)
}

// Authorized reports whether the current login cycle completed.
func (s *Session) Authorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the cached identity snapshot, when one was captured
// at sign-in.
func (s *Session) Identity() (provider.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.identityOK
}

// WaitAuthorized blocks until the session becomes authorized or ctx
// expires. The channel observed is the one live at call time; a logout
// after this call returns does not un-signal past waiters.
func (s *Session) WaitAuthorized(ctx context.Context) error {
	s.mu.Lock()
	ch := s.authorizedCh
	authorized := s.authorized
	s.mu.Unlock()

	if authorized {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) notifyObservers(ctx context.Context) {
	for i, observer := range s.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("authorization observer panicked", "observer", i, "panic", r)
				}
			}()
			if err := observer(ctx, s.identity); err != nil {
				s.logger.Warn("authorization observer failed", "observer", i, "err", err)
			}
		}()
	}
}
