package provider

import "context"

// CodeSent is returned by [Client.SendCode] and [Client.ResendCode]. It
// carries the opaque hash that must accompany the later sign-in attempt,
// the provider-reported validity window in seconds, and the delivery
// channel used ("app", "sms", "call").
type CodeSent struct {
	PhoneCodeHash string
	Timeout       int
	DeliveryType  string
}

// Identity is a snapshot of the account behind the live session, cached
// after a successful sign-in. All fields are optional except UserID.
type Identity struct {
	UserID    int64
	Username  string
	FirstName string
	Phone     string
}

// Client is the single live provider client owned by the session. All
// methods may block on network I/O and must honor ctx cancellation.
// Implementations are not required to be safe for concurrent use; the
// session serializes every call under its mutex.
type Client interface {
	// Connect establishes the transport if it is not already up.
	// Idempotent.
	Connect(ctx context.Context) error

	// SendCode requests a one-time login code for the phone number.
	SendCode(ctx context.Context, phone string) (CodeSent, error)

	// ResendCode requests the code again via an alternate delivery
	// channel, using the hash from the previous SendCode.
	ResendCode(ctx context.Context, phone, phoneCodeHash string) (CodeSent, error)

	// SignIn attempts to complete login with the one-time code. When the
	// account is protected by a second factor it returns
	// [ErrPasswordRequired] and the caller must follow up with
	// SignInWithPassword.
	SignIn(ctx context.Context, phone, code, phoneCodeHash string) error

	// SignInWithPassword completes a second-factor login.
	SignInWithPassword(ctx context.Context, password string) error

	// Self returns the identity behind the authenticated session.
	Self(ctx context.Context) (Identity, error)

	// SignOut terminates the provider-side session.
	SignOut(ctx context.Context) error
}

// SessionKeeper persists provider session state durably so the one live
// session survives process restarts. Implementations typically write the
// provider's own session blob to disk or a database.
type SessionKeeper interface {
	SaveSession(ctx context.Context) error
}
