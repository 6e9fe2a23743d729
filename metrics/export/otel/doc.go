// Package otel feeds the bridge's internal counters into an
// OpenTelemetry pipeline.
//
// The exporter is pull-based: it registers observable instruments on a
// caller-supplied Meter and reads one metrics snapshot per collection
// cycle, so no bridge code path ever blocks on telemetry. The action
// latency histogram surfaces as one gauge per cumulative bucket plus a
// count gauge, because the snapshot carries raw bucket counts rather
// than OTel histogram aggregates.
//
// # What this package must NOT do
//
//   - Own the MeterProvider lifecycle — callers supply the Meter and
//     decide when the pipeline shuts down.
//   - Mutate bridge state.
package otel
