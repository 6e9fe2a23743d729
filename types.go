package goBridge

import (
	"github.com/MrEthical07/goBridge/internal/audit"
	"github.com/MrEthical07/goBridge/internal/stores"
	"github.com/MrEthical07/goBridge/internal/worker"
	"github.com/MrEthical07/goBridge/provider"
	"github.com/MrEthical07/goBridge/session"
)

// Wire records are defined next to the Redis stores that persist them
// and re-exported here so embedding servers never import internal
// packages.
type (
	// Action is an exported type alias used by goBridge APIs.
	Action = stores.Action
	// ActionRequest is an exported type alias used by goBridge APIs.
	ActionRequest = stores.ActionRequest
	// ActionResponse is an exported type alias used by goBridge APIs.
	ActionResponse = stores.ActionResponse
	// LoginContext is an exported type alias used by goBridge APIs.
	LoginContext = stores.LoginContext
	// WorkerStatus is an exported type alias used by goBridge APIs.
	WorkerStatus = stores.WorkerStatus
	// LookupResponse is an exported type alias used by goBridge APIs.
	LookupResponse = stores.LookupResponse
)

const (
	// ActionStart is an exported constant used by the bridge engine.
	ActionStart = stores.ActionStart
	// ActionResend is an exported constant used by the bridge engine.
	ActionResend = stores.ActionResend
	// ActionVerify is an exported constant used by the bridge engine.
	ActionVerify = stores.ActionVerify
	// ActionStatus is an exported constant used by the bridge engine.
	ActionStatus = stores.ActionStatus
)

// Session surface re-exports.
type (
	// SessionState is an exported type alias used by goBridge APIs.
	SessionState = session.State
	// SessionObserver is an exported type alias used by goBridge APIs.
	SessionObserver = session.Observer
	// Identity is an exported type alias used by goBridge APIs.
	Identity = provider.Identity
)

// Audit surface re-exports.
type (
	// AuditEvent is an exported type alias used by goBridge APIs.
	AuditEvent = audit.Event
	// AuditSink is an exported type alias used by goBridge APIs.
	AuditSink = audit.Sink
)

// LookupHandler is an exported type alias used by goBridge APIs.
type LookupHandler = worker.LookupHandler

// LoginResult is the outcome of a successful start or resend: the code
// hash the caller must echo back on verify, and the provider's code
// timeout in seconds.
type LoginResult struct {
	PhoneCodeHash string
	Timeout       int
}

// StatusResult is the outcome of a status query.
type StatusResult struct {
	Authorized bool
	Worker     *WorkerStatus
}
