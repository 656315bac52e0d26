package telephony

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"expertassist/internal/config"
	"expertassist/pkg/logger"
)

type stubGateway struct {
	placeErr error
	fetched  []string
	ended    []string
}

func (s *stubGateway) Mode() Mode { return ModeLive }

func (s *stubGateway) PlaceCall(context.Context, PlaceCallRequest) (PlacedCall, error) {
	if s.placeErr != nil {
		return PlacedCall{}, s.placeErr
	}
	return PlacedCall{SID: "CA1", Status: "queued", Mode: ModeLive}, nil
}

func (s *stubGateway) FetchStatus(_ context.Context, sid string) (ProviderStatus, error) {
	s.fetched = append(s.fetched, sid)
	return ProviderStatus{CallSID: sid, Status: "ringing", Mode: ModeLive}, nil
}

func (s *stubGateway) EndCall(_ context.Context, sid string) error {
	s.ended = append(s.ended, sid)
	return nil
}

func TestFallbackGateway_DegradesOnTransportError(t *testing.T) {
	live := &stubGateway{placeErr: errors.New("connection reset")}
	g := NewFallbackGateway(live, NewSimulatedGateway(""), logger.Nop())

	placed, err := g.PlaceCall(context.Background(), PlaceCallRequest{CallID: "c1", To: "+1"})
	if err != nil {
		t.Fatalf("expected fallback, got %v", err)
	}
	if placed.Mode != ModeSimulated || !IsSimulatedSID(placed.SID) {
		t.Fatalf("expected simulated placement, got %+v", placed)
	}

	if _, err := g.FetchStatus(context.Background(), placed.SID); err != nil {
		t.Fatalf("fetch simulated: %v", err)
	}
	if len(live.fetched) != 0 {
		t.Fatalf("simulated sid must not reach live gateway")
	}
}

func TestFallbackGateway_PropagatesRejection(t *testing.T) {
	live := &stubGateway{placeErr: fmt.Errorf("create call: %w", ErrRejected)}
	g := NewFallbackGateway(live, NewSimulatedGateway(""), logger.Nop())

	if _, err := g.PlaceCall(context.Background(), PlaceCallRequest{To: "+1"}); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestFallbackGateway_RoutesLiveSIDs(t *testing.T) {
	live := &stubGateway{}
	g := NewFallbackGateway(live, NewSimulatedGateway(""), logger.Nop())

	if _, err := g.FetchStatus(context.Background(), "CA9"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := g.EndCall(context.Background(), "CA9"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(live.fetched) != 1 || len(live.ended) != 1 {
		t.Fatalf("expected live gateway to serve CA sids")
	}
}

func TestNewGateway_SelectsMode(t *testing.T) {
	live := config.TwilioConfig{AccountSID: "AC123", AuthToken: "tok", PhoneNumber: "+1", RequestTimeout: time.Second}

	cases := []struct {
		name string
		cfg  config.TwilioConfig
		want Mode
	}{
		{"demo", config.TwilioConfig{DemoMode: true, AccountSID: "AC1", AuthToken: "t"}, ModeSimulated},
		{"unconfigured", config.TwilioConfig{}, ModeSimulated},
		{"bad sid", config.TwilioConfig{AccountSID: "XX1", AuthToken: "t"}, ModeSimulated},
		{"live", live, ModeLive},
	}
	for _, tc := range cases {
		if got := NewGateway(tc.cfg, "https://api.example.com", logger.Nop()).Mode(); got != tc.want {
			t.Fatalf("%s: mode %q, want %q", tc.name, got, tc.want)
		}
		if got := DescribeConfig(tc.cfg).Mode; got != tc.want {
			t.Fatalf("%s: described mode %q, want %q", tc.name, got, tc.want)
		}
	}
}
