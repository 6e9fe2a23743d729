// Package internal groups machinery that is intentionally private to goBridge.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - gateway — submit/await correlation over the shared store
//   - rate — Redis-backed fixed-window throttle behind a policy seam
//   - stores — the Redis store families (queue, responses, login
//     contexts, lookups, worker status, locks)
//   - worker — the resident queue consumer and lookup subscriber
//
// # What this package must NOT do
//
//   - Export types that appear in the public goBridge API (wire records
//     are re-exported through root aliases instead).
//   - Be imported by any package outside the goBridge module.
package internal
