package telephony

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSimulatedGateway_StatusProgression(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	g := NewSimulatedGateway("").WithClock(func() time.Time { return now })
	ctx := context.Background()

	placed, err := g.PlaceCall(ctx, PlaceCallRequest{CallID: "c1", To: "+15550001111"})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !IsSimulatedSID(placed.SID) || placed.Status != "queued" || placed.Mode != ModeSimulated {
		t.Fatalf("unexpected placement: %+v", placed)
	}

	steps := []struct {
		after  time.Duration
		status string
	}{
		{0, "queued"},
		{6 * time.Second, "ringing"},
		{16 * time.Second, "in-progress"},
		{31 * time.Second, "completed"},
	}
	for _, s := range steps {
		now = start.Add(s.after)
		st, err := g.FetchStatus(ctx, placed.SID)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if st.Status != s.status {
			t.Fatalf("after %s: status %q, want %q", s.after, st.Status, s.status)
		}
		if st.To != "+15550001111" || st.From != simulatedFrom || st.Direction != "outbound-api" {
			t.Fatalf("unexpected parties: %+v", st)
		}
		if s.status == "completed" {
			if st.Duration != 31 || st.EndTime == "" {
				t.Fatalf("expected duration and end time on completion: %+v", st)
			}
		} else if st.Duration != 0 || st.EndTime != "" {
			t.Fatalf("expected no duration before completion: %+v", st)
		}
	}
}

func TestSimulatedGateway_UniqueSIDs(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := NewSimulatedGateway("+15550000000").WithClock(func() time.Time { return fixed })

	a, _ := g.PlaceCall(context.Background(), PlaceCallRequest{To: "+1"})
	b, _ := g.PlaceCall(context.Background(), PlaceCallRequest{To: "+1"})
	if a.SID == b.SID {
		t.Fatalf("expected distinct sids, got %q twice", a.SID)
	}
}

func TestSimulatedGateway_RejectsForeignSID(t *testing.T) {
	g := NewSimulatedGateway("")
	if _, err := g.FetchStatus(context.Background(), "CA123"); !errors.Is(err, ErrUnknownCall) {
		t.Fatalf("expected ErrUnknownCall, got %v", err)
	}
	if _, err := g.FetchStatus(context.Background(), "demo-call-abc"); !errors.Is(err, ErrUnknownCall) {
		t.Fatalf("expected ErrUnknownCall for malformed sid, got %v", err)
	}
	if err := g.EndCall(context.Background(), "demo-call-1"); err != nil {
		t.Fatalf("expected end to succeed, got %v", err)
	}
}
