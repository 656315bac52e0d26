package telephony

import (
	"context"
	"errors"
	"net/http"

	"expertassist/internal/calls"
	"expertassist/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RecordingStore attaches a recording to the call placed under a provider SID.
type RecordingStore interface {
	SetRecordingURL(ctx context.Context, providerCallSID, url string) (calls.Call, error)
}

// CallbackObserver is told about every provider status callback.
type CallbackObserver interface {
	ProviderCallback(status string)
}

// WebhookHandler serves Twilio voice, status and recording callbacks.
// Provider callbacks are informational: lifecycle progress is owned by the
// orchestrator, so a status callback never moves a call.
type WebhookHandler struct {
	Recordings RecordingStore
	Observer   CallbackObserver

	// Verifier is optional; when nil signatures are not checked.
	Verifier *SignatureVerifier
}

func (h WebhookHandler) Register(rg gin.IRoutes) {
	rg.POST(VoiceWebhookPath, h.verify, h.HandleVoice)
	rg.POST(StatusWebhookPath, h.verify, h.HandleStatus)
	rg.POST(RecordingWebhookPath, h.verify, h.HandleRecording)
}

func (h WebhookHandler) verify(c *gin.Context) {
	if h.Verifier == nil {
		c.Next()
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if !h.Verifier.Verify(c.Request) {
		logger.FromGin(c).Warn("twilio signature rejected", "path", c.FullPath())
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Next()
}

func (h WebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	twiml, err := RenderGreeting()
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	log.Info("twilio voice webhook", "call_id", c.Query("callId"), "call_sid", c.PostForm("CallSid"))
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(twiml))
}

func (h WebhookHandler) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseTwilioCallback(c.Request)
	if err != nil {
		log.Warn("twilio status parse failed", "err", err)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if h.Observer != nil && form.CallStatus != "" {
		h.Observer.ProviderCallback(form.CallStatus)
	}
	mapped, known := TranslateStatus(form.CallStatus)
	log.Info("twilio status callback",
		"call_sid", form.CallSid,
		"provider_status", form.CallStatus,
		"mapped_status", string(mapped),
		"known", known,
		"duration", form.CallDuration,
	)
	c.Status(http.StatusNoContent)
}

func (h WebhookHandler) HandleRecording(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseTwilioCallback(c.Request)
	if err != nil {
		log.Warn("twilio recording parse failed", "err", err)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if form.CallSid == "" || form.RecordingURL == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	if h.Recordings == nil {
		c.Status(http.StatusNoContent)
		return
	}

	call, err := h.Recordings.SetRecordingURL(c.Request.Context(), form.CallSid, form.RecordingURL)
	switch {
	case errors.Is(err, calls.ErrNotFound):
		// Twilio retries non-2xx; an unknown sid will never resolve.
		log.Warn("recording for unknown call", "call_sid", form.CallSid)
	case err != nil:
		log.Error("store recording failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	default:
		log.Info("recording stored", "call_id", call.ID, "call_sid", form.CallSid)
	}
	c.Status(http.StatusNoContent)
}
