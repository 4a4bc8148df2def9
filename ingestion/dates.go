// Package ingestion turns uploaded spreadsheets and PDFs into user detail
// blobs for the entity store.
package ingestion

import (
	"strings"
	"time"
)

// Accepted upload date layouts, tried in order. Month-first wins on
// ambiguous slash/dash dates, matching the source spreadsheets.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"01-02-2006",
	"02-01-2006",
}

// ParseDate normalizes an upload date cell to ISO YYYY-MM-DD.
func ParseDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	// Datetime cells come through as ISO with a time suffix.
	if len(value) >= 10 {
		if t, err := time.Parse("2006-01-02", value[:10]); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
