package telephony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"expertassist/internal/config"
	"expertassist/pkg/logger"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// demoVoiceURL is served by Twilio and used when our own webhooks are not
// reachable from the internet.
const demoVoiceURL = "https://demo.twilio.com/welcome/voice/"

const (
	VoiceWebhookPath     = "/webhooks/twilio/voice"
	StatusWebhookPath    = "/webhooks/twilio/status"
	RecordingWebhookPath = "/webhooks/twilio/recording"
)

// callsAPI is the subset of the Twilio 2010 API used here. *openapi.ApiService
// satisfies it.
type callsAPI interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
	FetchCall(sid string, params *openapi.FetchCallParams) (*openapi.ApiV2010Call, error)
	UpdateCall(sid string, params *openapi.UpdateCallParams) (*openapi.ApiV2010Call, error)
}

// TwilioGateway places real calls through the Twilio REST API.
type TwilioGateway struct {
	api     callsAPI
	from    string
	baseURL string
	log     *slog.Logger
}

func NewTwilioGateway(cfg config.TwilioConfig, publicBaseURL string, log *slog.Logger) *TwilioGateway {
	rc := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	if cfg.RequestTimeout > 0 {
		rc.SetTimeout(cfg.RequestTimeout)
	}
	return newTwilioGateway(rc.Api, cfg.PhoneNumber, publicBaseURL, log)
}

func newTwilioGateway(api callsAPI, from, publicBaseURL string, log *slog.Logger) *TwilioGateway {
	return &TwilioGateway{
		api:     api,
		from:    from,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		log:     logger.Or(log),
	}
}

func (g *TwilioGateway) Mode() Mode { return ModeLive }

func (g *TwilioGateway) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlacedCall, error) {
	if err := ctx.Err(); err != nil {
		return PlacedCall{}, err
	}
	if req.To == "" {
		return PlacedCall{}, fmt.Errorf("%w: destination required", ErrRejected)
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(g.from)
	params.SetRecord(true)

	if g.publiclyReachable() {
		params.SetUrl(g.voiceURL(req.CallID))
		params.SetStatusCallback(g.baseURL + StatusWebhookPath)
		params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
		params.SetStatusCallbackMethod("POST")
		params.SetRecordingStatusCallback(g.baseURL + RecordingWebhookPath)
	} else {
		g.log.Warn("public base url is local; using twilio demo voice url", "base_url", g.baseURL)
		params.SetUrl(demoVoiceURL)
	}

	resp, err := g.api.CreateCall(params)
	if err != nil {
		return PlacedCall{}, wrapTwilioErr("create call", err)
	}
	sid := deref(resp.Sid)
	if sid == "" {
		return PlacedCall{}, fmt.Errorf("%w: empty call sid", ErrRejected)
	}
	return PlacedCall{
		SID:    sid,
		Status: deref(resp.Status),
		To:     req.To,
		From:   g.from,
		Mode:   ModeLive,
	}, nil
}

func (g *TwilioGateway) FetchStatus(ctx context.Context, sid string) (ProviderStatus, error) {
	if err := ctx.Err(); err != nil {
		return ProviderStatus{}, err
	}
	resp, err := g.api.FetchCall(sid, &openapi.FetchCallParams{})
	if err != nil {
		return ProviderStatus{}, wrapTwilioErr("fetch call", err)
	}
	duration, _ := strconv.Atoi(deref(resp.Duration))
	return ProviderStatus{
		CallSID:   deref(resp.Sid),
		Status:    deref(resp.Status),
		Duration:  duration,
		Direction: deref(resp.Direction),
		From:      deref(resp.From),
		To:        deref(resp.To),
		StartTime: deref(resp.StartTime),
		EndTime:   deref(resp.EndTime),
		Mode:      ModeLive,
	}, nil
}

func (g *TwilioGateway) EndCall(ctx context.Context, sid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &openapi.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := g.api.UpdateCall(sid, params); err != nil {
		return wrapTwilioErr("end call", err)
	}
	return nil
}

func (g *TwilioGateway) voiceURL(callID string) string {
	u := g.baseURL + VoiceWebhookPath
	if callID != "" {
		u += "?callId=" + url.QueryEscape(callID)
	}
	return u
}

func (g *TwilioGateway) publiclyReachable() bool {
	u, err := url.Parse(g.baseURL)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return false
	}
	return true
}

// wrapTwilioErr maps API rejections onto ErrRejected. Anything else is
// treated as a transport failure and returned as is.
func wrapTwilioErr(op string, err error) error {
	var apiErr *client.TwilioRestError
	if errors.As(err, &apiErr) {
		if apiErr.Status == 404 {
			return fmt.Errorf("%s: %w: %s", op, ErrUnknownCall, apiErr.Message)
		}
		return fmt.Errorf("%s: %w: %d %s", op, ErrRejected, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
