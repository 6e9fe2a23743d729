package internaldefs

import (
	goBridge "github.com/MrEthical07/goBridge"
)

// CounterDef defines a public type used by goBridge APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goBridge.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goBridge APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goBridge.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the bridge engine.
var CounterDefs = []CounterDef{
	{ID: goBridge.MetricStartSuccess, Name: "gobridge_start_success_total", Help: "Successful login start actions."},
	{ID: goBridge.MetricStartFailure, Name: "gobridge_start_failure_total", Help: "Failed login start actions."},
	{ID: goBridge.MetricResendSuccess, Name: "gobridge_resend_success_total", Help: "Successful code resend actions."},
	{ID: goBridge.MetricResendFailure, Name: "gobridge_resend_failure_total", Help: "Failed code resend actions."},
	{ID: goBridge.MetricVerifySuccess, Name: "gobridge_verify_success_total", Help: "Successful code verify actions."},
	{ID: goBridge.MetricVerifyFailure, Name: "gobridge_verify_failure_total", Help: "Failed code verify actions."},
	{ID: goBridge.MetricStatusQuery, Name: "gobridge_status_query_total", Help: "Queued status queries answered by the worker."},
	{ID: goBridge.MetricFloodWait, Name: "gobridge_flood_wait_total", Help: "Provider flood-wait rejections."},
	{ID: goBridge.MetricExpiredFastFail, Name: "gobridge_expired_fast_fail_total", Help: "Resend or verify calls rejected for a missing login context."},
	{ID: goBridge.MetricRateLimited, Name: "gobridge_rate_limited_total", Help: "Attempts denied by the local throttle."},
	{ID: goBridge.MetricCallerTimeout, Name: "gobridge_caller_timeout_total", Help: "Caller waits that expired before a worker answer."},
	{ID: goBridge.MetricQueueDropped, Name: "gobridge_queue_dropped_total", Help: "Malformed or uncorrelatable queue items dropped."},
	{ID: goBridge.MetricQueuePollError, Name: "gobridge_queue_poll_error_total", Help: "Queue polls that failed on the store transport."},
	{ID: goBridge.MetricLookupSuccess, Name: "gobridge_lookup_success_total", Help: "Successful lookup requests."},
	{ID: goBridge.MetricLookupFailure, Name: "gobridge_lookup_failure_total", Help: "Failed lookup requests."},
	{ID: goBridge.MetricAuthorized, Name: "gobridge_authorized_total", Help: "Successful session authorizations."},
	{ID: goBridge.MetricLogout, Name: "gobridge_logout_total", Help: "Session logout operations."},
	{ID: goBridge.MetricConfirmIssued, Name: "gobridge_confirm_issued_total", Help: "Confirmation tokens issued."},
	{ID: goBridge.MetricConfirmRejected, Name: "gobridge_confirm_rejected_total", Help: "Confirmation token issuance failures."},
}

// HistogramDefs is an exported constant or variable used by the bridge engine.
var HistogramDefs = []HistogramDef{
	{ID: goBridge.MetricActionLatency, Name: "gobridge_action_latency_seconds", Help: "Caller-observed action round-trip latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the bridge engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the bridge engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
