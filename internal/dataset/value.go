package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/rebeliceyang/listinsight/internal/models"
)

// Row holds one record of the unfiltered snapshot. Cells are nil, int64,
// float64 or string.
type Row []any

// FormatValue returns the display text of a cell. Null cells render empty.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return FormatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// FormatFloat renders a float cell. Integral values keep a ".0" suffix so a
// float column never reads like an integer one.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsRune(s, '.') {
		return s
	}
	return s + ".0"
}

// ParseNumber converts text to an int64 or float64 cell value.
// NaN and infinities are rejected since the query engine cannot express them.
func ParseNumber(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

// isNullText reports whether a raw text cell should load as null
func isNullText(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "NaN", "nan", "NULL", "null", "None":
		return true
	}
	return false
}

// inferColumns decides the declared type of every column from raw text cells
// and converts the cells accordingly. A column is numeric when every non-null
// cell parses as a number and at least one cell is non-null.
func inferColumns(header []string, records [][]string) ([]models.Column, []Row) {
	columns := make([]models.Column, len(header))
	for i, name := range header {
		columns[i] = models.Column{Name: name, Type: models.TypeText}

		numeric, seen := true, false
		for _, rec := range records {
			if i >= len(rec) || isNullText(rec[i]) {
				continue
			}
			seen = true
			if _, ok := ParseNumber(rec[i]); !ok {
				numeric = false
				break
			}
		}
		if numeric && seen {
			columns[i].Type = models.TypeNumeric
		}
	}

	rows := make([]Row, len(records))
	for r, rec := range records {
		row := make(Row, len(columns))
		for c, col := range columns {
			if c >= len(rec) || isNullText(rec[c]) {
				continue
			}
			if col.Type == models.TypeNumeric {
				row[c], _ = ParseNumber(rec[c])
			} else {
				row[c] = rec[c]
			}
		}
		rows[r] = row
	}

	for c, col := range columns {
		if col.Type == models.TypeNumeric {
			promoteFloats(rows, c)
		}
	}

	return columns, rows
}

// promoteFloats turns the integers of column c into floats when the column
// holds at least one fractional value.
func promoteFloats(rows []Row, c int) {
	mixed := false
	for _, row := range rows {
		if _, ok := row[c].(float64); ok {
			mixed = true
			break
		}
	}
	if !mixed {
		return
	}
	for _, row := range rows {
		if i, ok := row[c].(int64); ok {
			row[c] = float64(i)
		}
	}
}

// normalizeHeader fills blank header cells and de-duplicates names so every
// column can be addressed by filters. Names are compared ignoring case, like
// the query engine does.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	taken := map[string]bool{strings.ToLower(positionColumn): true}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		candidate := name
		for n := 1; taken[strings.ToLower(candidate)]; n++ {
			candidate = name + "." + strconv.Itoa(n)
		}
		taken[strings.ToLower(candidate)] = true
		out[i] = candidate
	}
	return out
}
