package goBridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goBridge/confirm"
	"github.com/MrEthical07/goBridge/internal/audit"
	"github.com/MrEthical07/goBridge/internal/stores"
)

// LoginStart submits a code-send request for phone and waits for the
// worker's answer. On success the provider has sent a login code and a
// fresh LoginContext exists for the phone.
func (b *Bridge) LoginStart(ctx context.Context, phone string) (*LoginResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone required", ErrInvalidInput)
	}

	defer b.observeAction(time.Now())

	response, err := b.roundTrip(ctx, &stores.ActionRequest{
		Action: stores.ActionStart,
		Phone:  phone,
	})
	if err != nil {
		return nil, err
	}
	if err := b.responseError(response); err != nil {
		return nil, err
	}

	return &LoginResult{
		PhoneCodeHash: response.PhoneCodeHash,
		Timeout:       response.Timeout,
	}, nil
}

// LoginResend asks the provider to re-deliver the code for an in-flight
// login. The LoginContext created by a prior LoginStart is a hard
// precondition; without one the call fails immediately with
// [ErrLoginExpired] and never touches the queue.
func (b *Bridge) LoginResend(ctx context.Context, phone string) (*LoginResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone required", ErrInvalidInput)
	}
	if err := b.requireLoginContext(ctx, phone); err != nil {
		return nil, err
	}

	defer b.observeAction(time.Now())

	response, err := b.roundTrip(ctx, &stores.ActionRequest{
		Action: stores.ActionResend,
		Phone:  phone,
	})
	if err != nil {
		return nil, err
	}
	if err := b.responseError(response); err != nil {
		return nil, err
	}

	return &LoginResult{
		PhoneCodeHash: response.PhoneCodeHash,
		Timeout:       response.Timeout,
	}, nil
}

// LoginVerify submits the received code (and, for 2FA accounts, the
// account password). nil means the session is authorized and persisted.
// [ErrPasswordRequired] means the code was accepted but the account
// needs its password; retry with the password set.
func (b *Bridge) LoginVerify(ctx context.Context, phone, code, password string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: phone and code required", ErrInvalidInput)
	}
	if err := b.requireLoginContext(ctx, phone); err != nil {
		return err
	}

	defer b.observeAction(time.Now())

	response, err := b.roundTrip(ctx, &stores.ActionRequest{
		Action:   stores.ActionVerify,
		Phone:    phone,
		Code:     code,
		Password: password,
	})
	if err != nil {
		return err
	}
	return b.responseError(response)
}

// LoginStatus answers the authorization question. The worker heartbeat
// record answers without a queue round trip; only when no heartbeat is
// live does the call fall back to a queued status action.
func (b *Bridge) LoginStatus(ctx context.Context) (*StatusResult, error) {
	status, err := b.status.Get(ctx)
	if err == nil {
		return &StatusResult{Authorized: status.Authorized, Worker: status}, nil
	}
	if !errors.Is(err, stores.ErrStatusNotFound) {
		return nil, b.transportError(err)
	}

	response, err := b.roundTrip(ctx, &stores.ActionRequest{Action: stores.ActionStatus})
	if err != nil {
		if errors.Is(err, ErrBridgeTimeout) {
			return nil, fmt.Errorf("%w: no worker heartbeat and no queue answer", ErrBridgeNotReady)
		}
		return nil, err
	}
	if err := b.responseError(response); err != nil {
		return nil, err
	}
	return &StatusResult{Authorized: response.Authorized}, nil
}

// Logout tears down the live session. When confirmation is enabled the
// caller must present a token from [Bridge.ConfirmLogout]; concurrent
// logouts are serialized by a single-flight lock.
func (b *Bridge) Logout(ctx context.Context, confirmToken string) error {
	if b.confirm != nil {
		if err := b.confirm.Verify(confirmToken, "logout", ""); err != nil {
			return fmt.Errorf("%w: %v", ErrConfirmTokenInvalid, err)
		}
		release, err := b.confirm.Begin(ctx, "logout")
		if err != nil {
			if errors.Is(err, confirm.ErrInFlight) {
				return ErrConfirmInFlight
			}
			return b.transportError(err)
		}
		defer release()
	}

	if err := b.session.Logout(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamRejected, err)
	}

	// Logout invalidates every in-flight login, not just the phone that
	// signed in; no phone is carried here, so clear the namespace.
	if err := b.loginContexts.Purge(ctx); err != nil {
		b.logger.Warn("purging login contexts on logout failed", "err", err)
	}

	b.metrics.Inc(MetricLogout)
	b.audit.Emit(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: "bridge.logout",
		Success:   true,
	})
	return nil
}

// ConfirmLogout issues the confirmation token Logout requires. Returns
// [ErrBridgeNotReady] when confirmation is disabled.
func (b *Bridge) ConfirmLogout() (string, error) {
	if b.confirm == nil {
		return "", fmt.Errorf("%w: confirmation disabled", ErrBridgeNotReady)
	}
	token, err := b.confirm.Issue("logout", "")
	if err != nil {
		b.metrics.Inc(MetricConfirmRejected)
		return "", err
	}
	b.metrics.Inc(MetricConfirmIssued)
	return token, nil
}

// roundTrip submits one action and waits for its single response.
func (b *Bridge) roundTrip(ctx context.Context, request *stores.ActionRequest) (*stores.ActionResponse, error) {
	if _, err := b.gateway.SubmitAction(ctx, request); err != nil {
		return nil, b.transportError(err)
	}
	response, err := b.gateway.AwaitAction(ctx, request)
	if err != nil {
		return nil, b.transportError(err)
	}
	return response, nil
}

// requireLoginContext is the caller-side precondition for resend and
// verify: fail in milliseconds when the context is gone instead of
// burning a queue round trip.
func (b *Bridge) requireLoginContext(ctx context.Context, phone string) error {
	_, err := b.loginContexts.Get(ctx, phone)
	if err == nil {
		return nil
	}
	if errors.Is(err, stores.ErrLoginContextNotFound) {
		b.metrics.Inc(MetricExpiredFastFail)
		return fmt.Errorf("%w: no active login for this phone", ErrLoginExpired)
	}
	return b.transportError(err)
}
