package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

type ContactMethod struct {
	Method      string `json:"method"`
	Value       string `json:"value"`
	Label       string `json:"label,omitempty"`
	IsPreferred bool   `json:"is_preferred"`
}

type Payment struct {
	InstallmentNumber int     `json:"installment_number,omitempty"`
	Amount            float64 `json:"amount"`
	Date              string  `json:"date"`
}

// Details is the parsed view of a user's free-form details blob. Known keys
// land in typed fields; everything else survives in Extra so spreadsheet
// columns are never rejected or dropped.
type Details struct {
	AmountOwed       *float64
	DueDate          string
	PreferredContact string
	ContactMethods   []ContactMethod
	PaymentHistory   []Payment
	TotalPaid        *float64
	HistoryText      string
	Extra            map[string]any
}

// ParseDetails never fails: malformed sub-values are left in Extra untouched.
func ParseDetails(raw datatypes.JSON) Details {
	var d Details
	if len(raw) == 0 {
		return d
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return d
	}

	d.Extra = make(map[string]any)
	for k, v := range m {
		switch k {
		case "amount_owed":
			if f, ok := v.(float64); ok {
				d.AmountOwed = &f
				continue
			}
		case "total_paid":
			if f, ok := v.(float64); ok {
				d.TotalPaid = &f
				continue
			}
		case "due_date":
			if s, ok := v.(string); ok {
				d.DueDate = s
				continue
			}
		case "preferred_contact":
			if s, ok := v.(string); ok {
				d.PreferredContact = s
				continue
			}
		case "history_text":
			if s, ok := v.(string); ok {
				d.HistoryText = s
				continue
			}
		case "contact_methods":
			if cms, ok := decodeInto[[]ContactMethod](v); ok {
				d.ContactMethods = cms
				continue
			}
		case "payment_history":
			if ph, ok := decodeInto[[]Payment](v); ok {
				d.PaymentHistory = ph
				continue
			}
		}
		d.Extra[k] = v
	}
	return d
}

// DetailsMap returns the raw blob as a generic map, for callers that need
// the whole mapping rather than the typed view.
func DetailsMap(raw datatypes.JSON) map[string]any {
	m := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	return m
}

// MergeDetails overlays updates onto the existing blob, last write winning
// per key, and returns the combined blob.
func MergeDetails(existing datatypes.JSON, updates map[string]any) (datatypes.JSON, error) {
	merged := DetailsMap(existing)
	for k, v := range updates {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func decodeInto[T any](v any) (T, bool) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, false
	}
	return out, true
}
