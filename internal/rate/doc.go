// Package rate holds the bridge's rate-limit policy seam.
//
// The session takes a [Policy] through its constructor and consults it
// before every provider-affecting operation. The active default is
// [AllowAll]; [Limiter] is a per-phone, per-action fixed-window policy
// backed by Redis counters that can be wired in without touching call
// sites when a real limit is reintroduced.
package rate
