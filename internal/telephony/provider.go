package telephony

import (
	"context"
	"errors"
)

// Gateway is the provider-agnostic outbound calling contract used by the
// call lifecycle. Provider SDK calls stay inside implementations.
type Gateway interface {
	Mode() Mode
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlacedCall, error)
	FetchStatus(ctx context.Context, providerCallSID string) (ProviderStatus, error)
	EndCall(ctx context.Context, providerCallSID string) error
}

type Mode string

const (
	ModeLive      Mode = "live"
	ModeSimulated Mode = "simulated"
)

// PlaceCallRequest carries an already normalized destination.
type PlaceCallRequest struct {
	// CallID is the internal call id, echoed on provider callbacks.
	CallID string
	To     string
}

type PlacedCall struct {
	SID    string `json:"callSid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
	Mode   Mode   `json:"mode"`
}

// ProviderStatus is the provider's view of a placed call.
type ProviderStatus struct {
	CallSID   string `json:"callSid"`
	Status    string `json:"status"`
	Duration  int    `json:"duration"`
	Direction string `json:"direction,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	Mode      Mode   `json:"mode"`
}

var (
	ErrUnknownCall = errors.New("telephony: unknown provider call")
	ErrRejected    = errors.New("telephony: call rejected by provider")
)
