package ingestion

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UserRecord is one ingested debtor: a display name plus the open-ended
// detail mapping that lands in the user's details blob.
type UserRecord struct {
	Name    string
	Details map[string]any
}

const maxInstallments = 4

// ExtractUsersFromCSV parses the collections spreadsheet format: one user
// per row with billing, installment, and contact columns. Column names are
// matched case-insensitively.
func ExtractUsersFromCSV(data []byte) ([]UserRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("CSV file is empty")
	}

	header := rows[0]
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	if _, ok := columns["username"]; !ok {
		return nil, errors.New("CSV must contain a 'Username' column")
	}

	cell := func(row []string, column string) string {
		idx, ok := columns[column]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var users []UserRecord
	for _, row := range rows[1:] {
		name := cell(row, "username")
		if name == "" {
			continue
		}

		details := map[string]any{}

		if service := cell(row, "service"); service != "" {
			details["service"] = service
		}
		if bill := cell(row, "bill"); bill != "" {
			if amount, err := strconv.ParseFloat(bill, 64); err == nil {
				details["amount_owed"] = amount
			}
		}
		if due := cell(row, "duedate"); due != "" {
			if iso, ok := ParseDate(due); ok {
				details["due_date"] = iso
			}
		}

		addPaymentHistory(details, row, cell)
		addContactMethods(details, row, cell)
		addCommunicationPreferences(details, header, row, columns)

		users = append(users, UserRecord{Name: name, Details: details})
	}

	if len(users) == 0 {
		return nil, errors.New("no valid users found in CSV file")
	}
	return users, nil
}

func addPaymentHistory(details map[string]any, row []string, cell func([]string, string) string) {
	var history []map[string]any
	totalPaid := 0.0

	for i := 1; i <= maxInstallments; i++ {
		amountRaw := cell(row, fmt.Sprintf("installment%d", i))
		dateRaw := cell(row, fmt.Sprintf("installment%ddate", i))
		if amountRaw == "" || dateRaw == "" {
			continue
		}
		amount, err := strconv.ParseFloat(amountRaw, 64)
		if err != nil || amount <= 0 {
			continue
		}
		iso, ok := ParseDate(dateRaw)
		if !ok {
			continue
		}
		history = append(history, map[string]any{
			"installment_number": i,
			"amount":             amount,
			"date":               iso,
		})
		totalPaid += amount
	}

	if len(history) == 0 {
		return
	}
	details["payment_history"] = history
	details["total_paid"] = totalPaid
	if owed, ok := details["amount_owed"].(float64); ok {
		remaining := owed - totalPaid
		if remaining < 0 {
			remaining = 0
		}
		details["remaining_amount"] = remaining
	}
}

func addContactMethods(details map[string]any, row []string, cell func([]string, string) string) {
	var methods []map[string]any
	phoneCount, emailCount := 0, 0

	addPhone := func(value string) {
		phoneCount++
		methods = append(methods, map[string]any{
			"method":       "phone",
			"value":        value,
			"label":        fmt.Sprintf("Phone %d", phoneCount),
			"is_preferred": false,
		})
	}
	addEmail := func(value string) {
		emailCount++
		methods = append(methods, map[string]any{
			"method":       "email",
			"value":        value,
			"label":        fmt.Sprintf("Email %d", emailCount),
			"is_preferred": false,
		})
	}

	if v := cell(row, "phone"); v != "" {
		addPhone(v)
	}
	if v := cell(row, "phone2"); v != "" {
		addPhone(v)
	}
	if v := cell(row, "email"); v != "" {
		addEmail(v)
	}
	if v := cell(row, "email2"); v != "" {
		addEmail(v)
	}

	// The upstream sheets spell the column either way.
	preferred := strings.ToLower(cell(row, "prefferedcontactmethod"))
	if preferred == "" {
		preferred = strings.ToLower(cell(row, "preferredcontactmethod"))
	}

	if preferred != "" {
		markPreferred(methods, preferred)
		switch {
		case strings.HasPrefix(preferred, "phone"):
			details["preferred_contact"] = "phone"
		case strings.HasPrefix(preferred, "email"):
			details["preferred_contact"] = "email"
		default:
			details["preferred_contact"] = preferred
		}
	}

	if len(methods) > 0 {
		details["contact_methods"] = methods
	}
}

// markPreferred flags the contact entry the preferred-method cell points at,
// e.g. "phone2" flags the entry labeled "Phone 2".
func markPreferred(methods []map[string]any, preferred string) {
	var method, label string
	switch preferred {
	case "phone", "phone1":
		method, label = "phone", "Phone 1"
	case "phone2":
		method, label = "phone", "Phone 2"
	case "email", "email1":
		method, label = "email", "Email 1"
	case "email2":
		method, label = "email", "Email 2"
	default:
		return
	}
	for _, cm := range methods {
		if cm["method"] == method && cm["label"] == label {
			cm["is_preferred"] = true
			return
		}
	}
}

func addCommunicationPreferences(details map[string]any, header []string, row []string, columns map[string]int) {
	prefs := map[string]any{}
	for _, name := range header {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "prefferedcontactmethod" || lower == "preferredcontactmethod" {
			continue
		}
		isPref := strings.Contains(lower, "preference") && !strings.Contains(lower, "preferred")
		if !strings.Contains(lower, "communication") && !isPref {
			continue
		}
		idx := columns[lower]
		if idx >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[idx]); v != "" {
			prefs[lower] = v
		}
	}
	if len(prefs) > 0 {
		details["communication_preferences"] = prefs
	}
}
