package model

import "strings"

// Tone is the color family a status renders with.
type Tone int

const (
	ToneNeutral Tone = iota
	TonePositive
	ToneWarning
	ToneNegative
)

func StatusTone(status string) Tone {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "confirmed", "completed", "in_stock", "open", "accepted":
		return TonePositive
	case "on_leave", "scheduled", "in_progress", "low_stock", "draft", "pending":
		return ToneWarning
	case "inactive", "terminated", "cancelled", "out_of_stock", "closed", "expired", "revoked":
		return ToneNegative
	default:
		return ToneNeutral
	}
}

func (t Tone) String() string {
	switch t {
	case TonePositive:
		return "positive"
	case ToneWarning:
		return "warning"
	case ToneNegative:
		return "negative"
	default:
		return "neutral"
	}
}
