package telephony

import (
	"context"
	"errors"
	"log/slog"

	"expertassist/internal/config"
	"expertassist/pkg/logger"
)

// FallbackGateway fronts a live gateway with a simulator. Simulated SIDs are
// always served by the simulator. A placement that fails for a reason other
// than a provider rejection degrades to simulation so a flaky network does
// not fail the user's call outright.
type FallbackGateway struct {
	live Gateway
	sim  *SimulatedGateway
	log  *slog.Logger
}

func NewFallbackGateway(live Gateway, sim *SimulatedGateway, log *slog.Logger) *FallbackGateway {
	return &FallbackGateway{live: live, sim: sim, log: logger.Or(log)}
}

func (g *FallbackGateway) Mode() Mode { return g.live.Mode() }

func (g *FallbackGateway) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlacedCall, error) {
	placed, err := g.live.PlaceCall(ctx, req)
	if err == nil {
		return placed, nil
	}
	if errors.Is(err, ErrRejected) || ctx.Err() != nil {
		return PlacedCall{}, err
	}
	g.log.Warn("live call placement failed; falling back to simulation", "call_id", req.CallID, "err", err)
	return g.sim.PlaceCall(ctx, req)
}

func (g *FallbackGateway) FetchStatus(ctx context.Context, sid string) (ProviderStatus, error) {
	if IsSimulatedSID(sid) {
		return g.sim.FetchStatus(ctx, sid)
	}
	return g.live.FetchStatus(ctx, sid)
}

func (g *FallbackGateway) EndCall(ctx context.Context, sid string) error {
	if IsSimulatedSID(sid) {
		return g.sim.EndCall(ctx, sid)
	}
	return g.live.EndCall(ctx, sid)
}

// NewGateway picks the gateway for cfg. It never fails: without usable
// credentials, or in demo mode, calls are simulated.
func NewGateway(cfg config.TwilioConfig, publicBaseURL string, log *slog.Logger) Gateway {
	log = logger.Or(log)
	sim := NewSimulatedGateway(cfg.PhoneNumber)

	switch {
	case cfg.DemoMode:
		log.Info("telephony running in demo mode")
		return sim
	case !cfg.Configured():
		log.Warn("twilio credentials missing; calls will be simulated")
		return sim
	case !cfg.ValidAccountSID():
		log.Warn("twilio account sid is malformed; calls will be simulated")
		return sim
	}
	return NewFallbackGateway(NewTwilioGateway(cfg, publicBaseURL, log), sim, log)
}

// ConfigReport describes how the gateway was chosen, without secrets.
type ConfigReport struct {
	DemoMode         bool   `json:"demoMode"`
	TwilioConfigured bool   `json:"twilioConfigured"`
	ValidAccountSID  bool   `json:"validAccountSid"`
	HasPhoneNumber   bool   `json:"hasPhoneNumber"`
	Mode             Mode   `json:"mode"`
	Message          string `json:"message"`
}

func DescribeConfig(cfg config.TwilioConfig) ConfigReport {
	r := ConfigReport{
		DemoMode:         cfg.DemoMode,
		TwilioConfigured: cfg.Configured(),
		ValidAccountSID:  cfg.ValidAccountSID(),
		HasPhoneNumber:   cfg.PhoneNumber != "",
		Mode:             ModeSimulated,
	}
	switch {
	case r.DemoMode:
		r.Message = "Demo mode is enabled. Calls are simulated."
	case !r.TwilioConfigured:
		r.Message = "Twilio credentials are not configured. Calls are simulated."
	case !r.ValidAccountSID:
		r.Message = "Twilio account SID is invalid. Calls are simulated."
	default:
		r.Mode = ModeLive
		r.Message = "Twilio is configured. Calls are placed live."
	}
	return r
}
