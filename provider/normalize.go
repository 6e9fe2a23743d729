package provider

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Reason is the closed failure vocabulary the bridge branches on. Every
// provider error maps to exactly one reason.
type Reason string

const (
	// ReasonFloodWait is an explicit provider rate limit with a backoff.
	ReasonFloodWait Reason = "flood_wait"
	// ReasonResendUnavailable means code resend channels are exhausted.
	ReasonResendUnavailable Reason = "resend_unavailable"
	// ReasonServerError is every failure that fits no other reason.
	ReasonServerError Reason = "server_error"
)

// Failure is the normalized form of a provider error. RetryAfter is nil
// unless a backoff was found (explicit or extracted from message text).
type Failure struct {
	Reason     Reason
	Message    string
	RetryAfter *int
}

// defaultResendBackoff is synthesized when the provider reports resend
// exhaustion without naming a wait.
const defaultResendBackoff = 60

var waitSecondsPattern = regexp.MustCompile(`wait of (\d+) second`)

// Normalize classifies a provider error into a [Failure]. Extraction
// order for RetryAfter: the [RetryAfterSeconds] adapter first, then a
// "wait of N seconds" match in the error text, otherwise none.
func Normalize(err error) Failure {
	if err == nil {
		return Failure{Reason: ReasonServerError, Message: "unknown provider error"}
	}

	message := err.Error()
	retryAfter := extractRetryAfter(err, message)

	if retryAfter != nil && *retryAfter > 0 {
		return Failure{
			Reason:     ReasonFloodWait,
			Message:    message,
			RetryAfter: retryAfter,
		}
	}

	var resend *ResendUnavailableError
	if errors.As(err, &resend) || mentionsResendExhaustion(message) {
		if retryAfter == nil {
			backoff := defaultResendBackoff
			retryAfter = &backoff
		}
		return Failure{
			Reason:     ReasonResendUnavailable,
			Message:    message,
			RetryAfter: retryAfter,
		}
	}

	return Failure{Reason: ReasonServerError, Message: message}
}

func extractRetryAfter(err error, message string) *int {
	var adapter RetryAfterSeconds
	if errors.As(err, &adapter) {
		seconds := adapter.RetryAfterSeconds()
		return &seconds
	}

	match := waitSecondsPattern.FindStringSubmatch(message)
	if match == nil {
		return nil
	}
	seconds, convErr := strconv.Atoi(match[1])
	if convErr != nil {
		return nil
	}
	return &seconds
}

func mentionsResendExhaustion(message string) bool {
	lower := strings.ToLower(message)
	if !strings.Contains(lower, "resend") {
		return false
	}
	return strings.Contains(lower, "unavailable") ||
		strings.Contains(lower, "exhausted") ||
		strings.Contains(lower, "not available")
}
