package telephony

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	simulatedSIDPrefix = "demo-call-"
	simulatedFrom      = "+15551234567"
	simulatedTo        = "+15559876543"
	simulatedDirection = "outbound-api"
)

// IsSimulatedSID reports whether sid was issued by a SimulatedGateway.
func IsSimulatedSID(sid string) bool {
	return strings.HasPrefix(sid, simulatedSIDPrefix)
}

// SimulatedGateway fakes an outbound call whose provider status advances with
// wall time: queued, then ringing after 5s, in-progress after 15s and
// completed after 30s. The placement time is encoded in the SID so status can
// be derived after a restart.
type SimulatedGateway struct {
	from  string
	clock func() time.Time

	mu     sync.Mutex
	lastMS int64
	to     map[string]string
}

func NewSimulatedGateway(from string) *SimulatedGateway {
	if strings.TrimSpace(from) == "" {
		from = simulatedFrom
	}
	return &SimulatedGateway{from: from, clock: time.Now, to: map[string]string{}}
}

// WithClock overrides the time source. Intended for tests.
func (g *SimulatedGateway) WithClock(clock func() time.Time) *SimulatedGateway {
	g.clock = clock
	return g
}

func (g *SimulatedGateway) Mode() Mode { return ModeSimulated }

func (g *SimulatedGateway) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlacedCall, error) {
	if err := ctx.Err(); err != nil {
		return PlacedCall{}, err
	}

	g.mu.Lock()
	ms := g.clock().UnixMilli()
	if ms <= g.lastMS {
		ms = g.lastMS + 1
	}
	g.lastMS = ms
	sid := simulatedSIDPrefix + strconv.FormatInt(ms, 10)
	g.to[sid] = req.To
	g.mu.Unlock()

	return PlacedCall{SID: sid, Status: "queued", To: req.To, From: g.from, Mode: ModeSimulated}, nil
}

func (g *SimulatedGateway) FetchStatus(ctx context.Context, sid string) (ProviderStatus, error) {
	if err := ctx.Err(); err != nil {
		return ProviderStatus{}, err
	}
	placedAt, err := simulatedPlacedAt(sid)
	if err != nil {
		return ProviderStatus{}, err
	}

	g.mu.Lock()
	to, ok := g.to[sid]
	g.mu.Unlock()
	if !ok {
		to = simulatedTo
	}

	elapsed := g.clock().Sub(placedAt)
	st := ProviderStatus{
		CallSID:   sid,
		Status:    simulatedStatus(elapsed),
		Direction: simulatedDirection,
		From:      g.from,
		To:        to,
		StartTime: placedAt.UTC().Format(time.RFC3339),
		Mode:      ModeSimulated,
	}
	if st.Status == "completed" {
		st.Duration = int(elapsed / time.Second)
		st.EndTime = g.clock().UTC().Format(time.RFC3339)
	}
	return st, nil
}

// EndCall always succeeds; there is no remote leg to hang up.
func (g *SimulatedGateway) EndCall(ctx context.Context, sid string) error {
	if !IsSimulatedSID(sid) {
		return ErrUnknownCall
	}
	return ctx.Err()
}

func simulatedStatus(elapsed time.Duration) string {
	switch {
	case elapsed > 30*time.Second:
		return "completed"
	case elapsed > 15*time.Second:
		return "in-progress"
	case elapsed > 5*time.Second:
		return "ringing"
	default:
		return "queued"
	}
}

func simulatedPlacedAt(sid string) (time.Time, error) {
	if !IsSimulatedSID(sid) {
		return time.Time{}, ErrUnknownCall
	}
	ms, err := strconv.ParseInt(strings.TrimPrefix(sid, simulatedSIDPrefix), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, fmt.Errorf("%w: malformed sid %q", ErrUnknownCall, sid)
	}
	return time.UnixMilli(ms), nil
}
