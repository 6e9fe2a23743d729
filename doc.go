// Package goBridge turns one exclusive, stateful messaging-provider
// session into a shared service: many short-lived callers submit login
// steps and lookups through Redis, and a single resident worker executes
// them against the one live session, answering every request exactly once.
//
// The package is transport-agnostic. It exposes a builder, typed
// operations (LoginStart, LoginResend, LoginVerify, LoginStatus, Lookup)
// and an HTTP status mapping for embedding into any server framework; it
// never opens a listener itself.
//
// # Architecture boundaries
//
// goBridge owns queueing, correlation, response delivery, session
// lifecycle, rate limiting, auditing and metrics. It does NOT implement
// the provider protocol: callers hand it a [provider.Client] and the
// bridge serializes all access to it.
//
// # What this package must NOT do
//
//   - Serve HTTP or any other transport.
//   - Hold more than one provider session per process.
//   - Answer a request twice, or leave a queued request unanswered.
package goBridge
