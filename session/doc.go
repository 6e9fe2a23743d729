// Package session owns the single live provider client and the
// authorized/unauthenticated state machine around it.
//
// # Design
//
// [Session] holds the only reference to the provider client and an
// exclusivity mutex; every provider-affecting call — whether it arrives
// through the queue worker or through [Session.Do] from another
// in-process path — runs under that mutex, so "one live client" holds
// even with multiple trigger paths. The authorized flag is monotonic
// within a login cycle and resets on logout.
//
// Observers registered at construction are invoked synchronously in
// registration order after a successful sign-in is durably committed;
// an observer failure is logged and never aborts the remaining
// observers or the authorization transition.
//
// # What this package must NOT do
//
//   - Touch Redis; ephemeral bridge state belongs to internal/stores.
//   - Normalize provider errors; callers use provider.Normalize.
//   - Retry flood waits or sleep on behalf of the caller.
package session
