package strategy

import (
	"strings"

	"collections-backend/model"

	"github.com/shopspring/decimal"
)

// DefaultTimeline is the built-in six-phase escalation template used
// whenever no externally generated timeline is available.
func DefaultTimeline(d model.Details) []TimelineColumn {
	amount := amountPhrase(d)

	return []TimelineColumn{
		{
			Timing: "Day 1-7",
			Blocks: []Block{
				{BlockType: BlockTypeAction, Source: "email", Tone: "friendly", Content: "Gentle reminder about " + amount + "."},
			},
		},
		{
			Timing: "Day 8-14",
			Blocks: []Block{
				{BlockType: BlockTypeAction, Source: "sms", Tone: "neutral", Content: "Follow-up on payment; please contact us to arrange a plan."},
			},
		},
		{
			Timing: "Day 15-30",
			Blocks: []Block{
				{BlockType: BlockTypeAction, Source: "email", Tone: "firm", Content: "Important: Payment is now overdue. Please settle your account."},
				{
					BlockType:       BlockTypeDecision,
					DecisionPrompt:  "Check if user has made any partial payment or contacted us",
					DecisionSources: []string{"payment_history", "communication_log"},
					DecisionOutputs: []DecisionOutput{
						{Condition: "If partial payment received", NextTiming: "Day 31-50", Action: "Send thank you and payment plan"},
						{Condition: "If no response", NextTiming: "Day 31-50", Action: "Escalate to phone call"},
					},
				},
			},
		},
		{
			Timing: "Day 31-50",
			Blocks: []Block{
				{BlockType: BlockTypeAction, Source: "call", Tone: "firm", Content: "Direct call to discuss payment options and resolve outstanding balance."},
			},
		},
		{
			Timing: "Day 51-90",
			Blocks: []Block{
				{BlockType: BlockTypeAction, Source: "email", Tone: "escalation", Content: "Final notice: Account will be escalated to collections if not resolved."},
			},
		},
		{
			Timing: "Day 90+",
			Blocks: []Block{
				{BlockType: BlockTypeAction, Source: "call", Tone: "escalation", Content: "Legal action may be pursued. Immediate payment required."},
			},
		},
	}
}

// FallbackTimeline is the enriched built-in template. The template is valid
// by construction, so no validation pass is needed here.
func FallbackTimeline(d model.Details) []TimelineColumn {
	return Enrich(DefaultTimeline(d), d)
}

// PrepareTimeline enriches a raw timeline with the owner's contact metadata
// and validates the result. Returns a *SchemaError on violations.
func PrepareTimeline(timeline []TimelineColumn, d model.Details) ([]TimelineColumn, error) {
	enriched := Enrich(timeline, d)
	if err := Validate(enriched); err != nil {
		return nil, err
	}
	return enriched, nil
}

// Enrich resolves per-block contact metadata from the owner's details and
// applies structural defaults. It is idempotent: fields already populated
// are never overwritten.
func Enrich(timeline []TimelineColumn, d model.Details) []TimelineColumn {
	enriched := make([]TimelineColumn, 0, len(timeline))
	for _, column := range timeline {
		timing := column.Timing
		if timing == "" {
			timing = "Unscheduled"
		}
		blocks := make([]Block, 0, len(column.Blocks))
		for _, b := range column.Blocks {
			blocks = append(blocks, applyBlockDefaults(b, d))
		}
		enriched = append(enriched, TimelineColumn{Timing: timing, Blocks: blocks})
	}
	return enriched
}

func applyBlockDefaults(b Block, d model.Details) Block {
	b.BlockType = b.Type()

	if b.BlockType == BlockTypeDecision {
		if b.DecisionSources == nil {
			b.DecisionSources = []string{}
		}
		if b.DecisionOutputs == nil {
			b.DecisionOutputs = []DecisionOutput{}
		}
		return b
	}

	var contactValue string
	switch strings.ToLower(b.Source) {
	case "email":
		contactValue = resolveContact(d.ContactMethods, "email")
	case "call", "phone":
		contactValue = resolveContact(d.ContactMethods, "phone")
	case "sms":
		// sms falls back to a phone-typed contact when no sms entry exists
		contactValue = resolveContact(d.ContactMethods, "sms", "phone")
	}

	if contactValue != "" && b.ContactMethodDetail == "" {
		b.ContactMethodDetail = contactValue
	}
	if d.PreferredContact != "" && b.PreferredContact == "" {
		b.PreferredContact = d.PreferredContact
	}
	return b
}

// resolveContact picks the contact method matching any of the candidate
// channels: a preferred-flagged entry wins, otherwise the first match in
// stored order.
func resolveContact(methods []model.ContactMethod, candidates ...string) string {
	matches := func(cm model.ContactMethod) bool {
		m := strings.ToLower(cm.Method)
		for _, c := range candidates {
			if m == c {
				return true
			}
		}
		return false
	}

	for _, cm := range methods {
		if matches(cm) && cm.IsPreferred {
			return cm.Value
		}
	}
	for _, cm := range methods {
		if matches(cm) {
			return cm.Value
		}
	}
	return ""
}

// amountPhrase renders the owed amount with thousands separators, or the
// neutral phrase when the details carry no numeric amount.
func amountPhrase(d model.Details) string {
	if d.AmountOwed == nil {
		return "your outstanding balance"
	}
	return "₹" + formatThousands(*d.AmountOwed)
}

func formatThousands(v float64) string {
	s := decimal.NewFromFloat(v).String()

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	var out strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(r)
	}

	grouped := out.String() + fracPart
	if neg {
		return "-" + grouped
	}
	return grouped
}
