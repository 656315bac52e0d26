package telephony

import (
	"strings"

	"expertassist/internal/calls"
)

// TranslateStatus maps a provider call status onto the call lifecycle.
// ok is false for values the provider might add later.
func TranslateStatus(provider string) (calls.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "queued", "initiated", "ringing":
		return calls.StatusDialing, true
	case "answered", "in-progress":
		return calls.StatusInProgress, true
	case "completed":
		return calls.StatusCompleted, true
	case "busy", "failed", "no-answer", "canceled":
		return calls.StatusFailed, true
	default:
		return "", false
	}
}
