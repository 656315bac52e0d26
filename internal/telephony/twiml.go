package telephony

import (
	"bytes"
	"encoding/xml"
)

const (
	greetingVoice    = "Polly.Matthew"
	greetingLanguage = "en-US"
	greetingText     = "Hello! This is an automated call from Expert Assist A.I. I am calling to gather some information. Please stay on the line."
	promptText       = "I will now ask you some questions. Please respond clearly."
)

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RenderGreeting returns the TwiML played when the expert answers.
func RenderGreeting() (string, error) {
	return renderTwiML(
		twimlSay{Voice: greetingVoice, Language: greetingLanguage, Text: greetingText},
		twimlPause{Length: 1},
		twimlSay{Voice: greetingVoice, Language: greetingLanguage, Text: promptText},
	)
}

// RenderHangup returns TwiML that ends the call immediately.
func RenderHangup() (string, error) {
	return renderTwiML(twimlHangup{})
}

func renderTwiML(verbs ...any) (string, error) {
	r := twimlResponse{Verbs: verbs}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
