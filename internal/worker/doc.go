// Package worker turns the action queue into a guaranteed-response
// service: every popped item that carries a request id gets exactly one
// response record, no matter what the provider, the session, or the
// handler itself does.
//
// # Design
//
// The loop blocks on the queue pop with a short timeout so shutdown is
// observed promptly even when idle; the pop itself is context-aware, so
// cancellation interrupts an in-flight wait. Failures are contained per
// item: a panic or error inside one dispatch is recovered, normalized,
// and answered — it never kills the loop. Queue transport errors are
// logged and retried after a short backoff.
//
// # What this package must NOT do
//
//   - Talk to the provider client directly; all calls go through the
//     session's exclusive mutex.
//   - Let an item with a request id go unanswered past its writer's
//     timeout budget.
package worker
