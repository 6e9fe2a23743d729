// Package stores contains the Redis-backed key families the bridge is
// built on: the action queue, the action-response table, per-phone login
// contexts, generic correlation records, the worker-status record, and
// single-flight locks.
//
// # Design
//
// Each key family gets its own store type with an explicit prefix and TTL.
// Records are JSON on the wire because the peers on the other side of the
// bridge are not Go processes. Every store wraps Redis transport failures
// in [ErrStoreUnavailable] so callers can distinguish "store down" from
// "record gone".
//
// # What this package must NOT do
//
//   - Interpret record contents beyond encoding/decoding.
//   - Retry, sleep, or apply policy; lifecycle decisions belong to the
//     gateway and the worker.
//   - Import goBridge or any sibling package.
package stores
