package ingest

import (
	"strconv"
	"strings"
)

// parseIntOr parses a string as an integer, returning def if parsing fails
// or the cell is empty.
func parseIntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// parseFloat parses a string as a float64, reporting failure instead of
// substituting a default so callers can choose their own fallback.
func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}

// getCol gets a column value by index, returning empty string when the row
// is short.
func getCol(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// headerEquals reports whether a header row matches the expected columns
// exactly, modulo surrounding whitespace.
func headerEquals(row, want []string) bool {
	if len(row) != len(want) {
		return false
	}
	for i := range row {
		if strings.TrimSpace(row[i]) != want[i] {
			return false
		}
	}
	return true
}
