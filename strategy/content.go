package strategy

import (
	"strings"

	"collections-backend/model"
)

// DefaultActionContent is the deterministic message template for a single
// action block, used when no completion API is configured or the call fails.
func DefaultActionContent(d model.Details, b Block, userPrompt string) string {
	amount := amountPhrase(d)
	tone := strings.ToLower(b.Tone)
	if tone == "" {
		tone = "friendly"
	}
	source := strings.ToLower(b.Source)
	if source == "" {
		source = "email"
	}

	var prefix, callToAction string
	switch tone {
	case "escalation":
		prefix = "This is an important notice regarding"
		callToAction = "Immediate attention is required to avoid further action."
	case "firm":
		prefix = "This is a reminder regarding"
		callToAction = "Please make the payment or contact us to discuss options."
	case "neutral":
		prefix = "We are writing about"
		callToAction = "Please review your account and complete the payment at your earliest convenience."
	default: // friendly
		prefix = "Just a gentle reminder about"
		callToAction = "If you have already paid, please ignore this message."
	}

	channelPhrase := "this email"
	switch source {
	case "sms":
		channelPhrase = "this message"
	case "call", "phone":
		channelPhrase = "this call"
	}

	extra := ""
	if strings.TrimSpace(userPrompt) != "" {
		extra = " " + strings.TrimSpace(userPrompt)
	}

	return strings.TrimSpace(
		prefix + " " + amount + ". " + callToAction +
			" Please respond to " + channelPhrase + " if you have any questions." + extra,
	)
}
