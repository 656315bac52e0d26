package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/twilio/twilio-go/client"
)

// TwilioCallbackForm captures the callback fields we act on.
// Twilio sends application/x-www-form-urlencoded.
type TwilioCallbackForm struct {
	CallSid           string
	AccountSid        string
	CallStatus        string
	CallDuration      int
	RecordingSid      string
	RecordingURL      string
	RecordingStatus   string
	RecordingDuration int
}

func ParseTwilioCallback(r *http.Request) (TwilioCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioCallbackForm{}, err
	}
	f := TwilioCallbackForm{
		CallSid:         strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:      r.PostFormValue("AccountSid"),
		CallStatus:      strings.ToLower(strings.TrimSpace(r.PostFormValue("CallStatus"))),
		RecordingSid:    r.PostFormValue("RecordingSid"),
		RecordingURL:    strings.TrimSpace(r.PostFormValue("RecordingUrl")),
		RecordingStatus: r.PostFormValue("RecordingStatus"),
	}
	f.CallDuration, _ = strconv.Atoi(r.PostFormValue("CallDuration"))
	f.RecordingDuration, _ = strconv.Atoi(r.PostFormValue("RecordingDuration"))
	return f, nil
}

// SignatureVerifier checks the X-Twilio-Signature header.
type SignatureVerifier struct {
	validator client.RequestValidator
	baseURL   string
}

func NewSignatureVerifier(authToken, publicBaseURL string) *SignatureVerifier {
	return &SignatureVerifier{
		validator: client.NewRequestValidator(authToken),
		baseURL:   strings.TrimRight(publicBaseURL, "/"),
	}
}

// Verify must run after the form has been parsed. The URL Twilio signed is
// the public one, so it is rebuilt from the configured base.
func (v *SignatureVerifier) Verify(r *http.Request) bool {
	sig := r.Header.Get("X-Twilio-Signature")
	if sig == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.validator.Validate(v.baseURL+r.URL.RequestURI(), params, sig)
}
