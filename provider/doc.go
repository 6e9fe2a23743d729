// Package provider defines the contract between goBridge and the upstream
// messaging provider client, plus the error normalization that turns
// arbitrary provider failures into the small closed vocabulary the rest of
// the bridge branches on.
//
// # Architecture boundaries
//
// This package owns the [Client] interface that integrators implement and
// the [Failure] classification consumed by the queue worker. It never
// touches Redis and never imports goBridge or any sibling package.
//
// # What this package must NOT do
//
//   - Hold the live client or serialize calls to it (that is session's job).
//   - Retry or sleep on flood waits; it only reports them.
package provider
