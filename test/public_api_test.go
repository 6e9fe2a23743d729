package test

import (
	"context"
	"encoding/json"
	"testing"

	goBridge "github.com/MrEthical07/goBridge"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goBridge.New

	var _ *goBridge.Bridge
	var _ goBridge.Config
	var _ goBridge.LoginResult
	var _ goBridge.StatusResult
	var _ goBridge.ActionRequest
	var _ goBridge.ActionResponse
	var _ goBridge.LookupResponse
	var _ goBridge.AuditSink
	var _ goBridge.LookupHandler

	var _ error = goBridge.ErrInvalidInput
	var _ error = goBridge.ErrLoginExpired
	var _ error = goBridge.ErrPasswordRequired
	var _ error = goBridge.ErrFloodWait
	var _ error = goBridge.ErrUpstreamRejected
	var _ error = goBridge.ErrStoreUnavailable
	var _ error = goBridge.ErrBridgeTimeout

	var _ func(error) int = goBridge.StatusCode
	var _ func(error) (int, bool) = goBridge.RetryAfter

	var _ func(*goBridge.Bridge, context.Context, string) (*goBridge.LoginResult, error) = (*goBridge.Bridge).LoginStart
	var _ func(*goBridge.Bridge, context.Context, string) (*goBridge.LoginResult, error) = (*goBridge.Bridge).LoginResend
	var _ func(*goBridge.Bridge, context.Context, string, string, string) error = (*goBridge.Bridge).LoginVerify
	var _ func(*goBridge.Bridge, context.Context) (*goBridge.StatusResult, error) = (*goBridge.Bridge).LoginStatus
	var _ func(*goBridge.Bridge, context.Context, string, any) (json.RawMessage, error) = (*goBridge.Bridge).Lookup
	var _ func(*goBridge.Bridge, context.Context) error = (*goBridge.Bridge).RunWorker
}
