// Package prometheus renders goBridge metrics in Prometheus text exposition
// format without depending on the Prometheus client library.
//
// [PrometheusExporter.Handler] serves a /metrics-style endpoint; [PrometheusExporter.Render]
// produces the same payload as a string for embedding into existing handlers.
//
// # What this package must NOT do
//
//   - Open a listener — callers mount the handler.
//   - Mutate bridge state.
package prometheus
