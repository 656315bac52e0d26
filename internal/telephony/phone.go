package telephony

import "strings"

// NormalizePhone converts a user-entered number to E.164.
//
//	"+44 20 7946 0958" -> "+44 20 7946 0958"
//	"(555) 123-4567"   -> "+15551234567"
//	"1-555-123-4567"   -> "+15551234567"
//
// Input that already starts with "+" is returned trimmed but otherwise as
// entered. Any other digit count is assumed to be a North American number
// missing its country code. Input without digits yields an empty string.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(raw, "+"):
		return raw
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	default:
		return "+1" + digits
	}
}
