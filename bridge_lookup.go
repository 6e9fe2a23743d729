package goBridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/goBridge/internal/stores"
)

// Lookup runs a registered read-only lookup through the worker process
// and returns the handler's raw JSON result. kind must match a handler
// registered at build time; payload is marshaled as the handler input.
func (b *Bridge) Lookup(ctx context.Context, kind string, payload any) (json.RawMessage, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: lookup kind required", ErrInvalidInput)
	}
	if _, ok := b.lookupKinds[kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrLookupUnknown, kind)
	}

	var encoded []byte
	if payload != nil {
		var err error
		if encoded, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	requestID, err := b.gateway.SubmitLookup(ctx, kind, encoded)
	if err != nil {
		return nil, b.transportError(err)
	}

	raw, err := b.gateway.AwaitLookup(ctx, kind, requestID)
	if err != nil {
		return nil, b.transportError(err)
	}

	envelope := &stores.LookupResponse{}
	if err := json.Unmarshal(raw, envelope); err != nil {
		return nil, fmt.Errorf("%w: malformed lookup response", ErrUpstreamRejected)
	}
	if envelope.Status != stores.StatusOK {
		return nil, b.responseError(&stores.ActionResponse{
			Status:     envelope.Status,
			Message:    envelope.Message,
			Reason:     envelope.Reason,
			RetryAfter: envelope.RetryAfter,
		})
	}
	return envelope.Result, nil
}
