package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExtractUserFromExcel reads the first data row of the first sheet: a
// required name column plus arbitrary detail columns. Numeric-looking cells
// are stored as numbers, everything else as strings.
func ExtractUserFromExcel(data []byte) (UserRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return UserRecord{}, fmt.Errorf("failed to read Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return UserRecord{}, errors.New("Excel file is empty")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return UserRecord{}, fmt.Errorf("failed to read Excel file: %w", err)
	}
	if len(rows) < 2 {
		return UserRecord{}, errors.New("Excel file is empty")
	}

	header := rows[0]
	row := rows[1]

	nameIdx := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "name") {
			nameIdx = i
			break
		}
	}
	if nameIdx == -1 || nameIdx >= len(row) || strings.TrimSpace(row[nameIdx]) == "" {
		return UserRecord{}, errors.New("Excel must contain a 'name' column")
	}

	details := map[string]any{}
	for i, col := range header {
		if i == nameIdx || i >= len(row) {
			continue
		}
		key := strings.TrimSpace(col)
		value := strings.TrimSpace(row[i])
		if key == "" || value == "" {
			continue
		}
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			details[key] = n
		} else {
			details[key] = value
		}
	}

	return UserRecord{Name: strings.TrimSpace(row[nameIdx]), Details: details}, nil
}
