// Package audit provides the bridge's asynchronous audit event pipeline.
//
// # Design
//
// The [Dispatcher] decouples bridge operations from sink latency: events
// are buffered on a channel and forwarded by a single goroutine. A full
// buffer either blocks (default) or drops with a counter, depending on
// configuration. Close drains the buffer before returning.
//
// # What this package must NOT do
//
//   - Touch Redis or the provider client.
//   - Block a bridge operation on sink I/O when DropIfFull is set.
package audit
