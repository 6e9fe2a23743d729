// Package gateway implements the correlate-and-wait primitive every
// bridge caller goes through: submit a request record into the shared
// store, then poll for the matching response within a bounded budget.
//
// # Design
//
// A timeout is deliberately a different outcome than a provider error:
// "no one answered" and "someone answered with an error" must never look
// alike to a caller. On timeout the gateway best-effort deletes the
// leftover request so a late worker does not burn provider budget on an
// abandoned call; an orphaned response simply expires via TTL.
//
// # What this package must NOT do
//
//   - Retry a timed-out submit; resubmission is the caller's decision.
//   - Interpret response payloads beyond decoding.
package gateway
