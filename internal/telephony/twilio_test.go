package telephony

import (
	"context"
	"errors"
	"testing"

	"expertassist/pkg/logger"

	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeCallsAPI struct {
	created *openapi.CreateCallParams
	updated *openapi.UpdateCallParams
	call    *openapi.ApiV2010Call
	err     error
}

func (f *fakeCallsAPI) CreateCall(p *openapi.CreateCallParams) (*openapi.ApiV2010Call, error) {
	f.created = p
	return f.call, f.err
}

func (f *fakeCallsAPI) FetchCall(sid string, _ *openapi.FetchCallParams) (*openapi.ApiV2010Call, error) {
	return f.call, f.err
}

func (f *fakeCallsAPI) UpdateCall(sid string, p *openapi.UpdateCallParams) (*openapi.ApiV2010Call, error) {
	f.updated = p
	return f.call, f.err
}

func strp(s string) *string { return &s }

func TestTwilioGateway_PlaceCallWiresCallbacks(t *testing.T) {
	api := &fakeCallsAPI{call: &openapi.ApiV2010Call{Sid: strp("CA1"), Status: strp("queued")}}
	g := newTwilioGateway(api, "+15550000000", "https://api.example.com/", logger.Nop())

	placed, err := g.PlaceCall(context.Background(), PlaceCallRequest{CallID: "c1", To: "+15551112222"})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if placed.SID != "CA1" || placed.Mode != ModeLive {
		t.Fatalf("unexpected placement: %+v", placed)
	}
	p := api.created
	if *p.To != "+15551112222" || *p.From != "+15550000000" {
		t.Fatalf("unexpected parties: %s %s", *p.To, *p.From)
	}
	if *p.Url != "https://api.example.com/webhooks/twilio/voice?callId=c1" {
		t.Fatalf("unexpected voice url: %s", *p.Url)
	}
	if p.StatusCallback == nil || *p.StatusCallback != "https://api.example.com/webhooks/twilio/status" {
		t.Fatalf("expected status callback")
	}
	if p.Record == nil || !*p.Record {
		t.Fatalf("expected recording enabled")
	}
}

func TestTwilioGateway_LocalBaseURLUsesDemoVoice(t *testing.T) {
	api := &fakeCallsAPI{call: &openapi.ApiV2010Call{Sid: strp("CA1")}}
	g := newTwilioGateway(api, "+15550000000", "http://localhost:8080", logger.Nop())

	if _, err := g.PlaceCall(context.Background(), PlaceCallRequest{CallID: "c1", To: "+1555"}); err != nil {
		t.Fatalf("place: %v", err)
	}
	if *api.created.Url != demoVoiceURL {
		t.Fatalf("expected demo url, got %s", *api.created.Url)
	}
	if api.created.StatusCallback != nil {
		t.Fatalf("expected no status callback for local base url")
	}
}

func TestTwilioGateway_ErrorsAreClassified(t *testing.T) {
	api := &fakeCallsAPI{err: &client.TwilioRestError{Code: 21211, Status: 400, Message: "invalid To"}}
	g := newTwilioGateway(api, "+1", "https://api.example.com", logger.Nop())

	_, err := g.PlaceCall(context.Background(), PlaceCallRequest{To: "+1"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	api.err = &client.TwilioRestError{Code: 20404, Status: 404, Message: "not found"}
	if _, err := g.FetchStatus(context.Background(), "CA404"); !errors.Is(err, ErrUnknownCall) {
		t.Fatalf("expected ErrUnknownCall, got %v", err)
	}

	api.err = errors.New("dial tcp: timeout")
	_, err = g.PlaceCall(context.Background(), PlaceCallRequest{To: "+1"})
	if err == nil || errors.Is(err, ErrRejected) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestTwilioGateway_FetchAndEnd(t *testing.T) {
	api := &fakeCallsAPI{call: &openapi.ApiV2010Call{
		Sid:       strp("CA1"),
		Status:    strp("completed"),
		Duration:  strp("42"),
		Direction: strp("outbound-api"),
	}}
	g := newTwilioGateway(api, "+1", "https://api.example.com", logger.Nop())

	st, err := g.FetchStatus(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if st.Status != "completed" || st.Duration != 42 || st.Mode != ModeLive {
		t.Fatalf("unexpected status: %+v", st)
	}

	if err := g.EndCall(context.Background(), "CA1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if api.updated == nil || *api.updated.Status != "completed" {
		t.Fatalf("expected status=completed update")
	}
}
