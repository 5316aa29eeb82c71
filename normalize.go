package main

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Days between the Unix epoch (1970-01-01) and the Excel serial epoch
// (1899-12-30).
const excelEpochOffsetDays = 25569

// Normalize converts a raw parsed spreadsheet cell into its canonical
// form. The output never contains raw nil: only empty, text, number,
// boolean or date values survive. Applying Normalize to an already
// normalized Value is a no-op.
func Normalize(raw any) Value {
	switch c := raw.(type) {
	case nil:
		return Value{}
	case Value:
		switch c.Kind {
		case CellText:
			return normalizeString(c.Text)
		case CellNumber:
			return normalizeNumber(c.Num)
		default:
			return c
		}
	case float64:
		return normalizeNumber(c)
	case float32:
		return normalizeNumber(float64(c))
	case int:
		return normalizeNumber(float64(c))
	case int64:
		return normalizeNumber(float64(c))
	case bool:
		return BoolValue(c)
	case time.Time:
		return TimeValue(c)
	case string:
		return normalizeString(c)
	default:
		return normalizeString(fmt.Sprint(c))
	}
}

// normalizeNumber keeps finite numbers, attempting the Excel serial-date
// interpretation first: integral values strictly between 1 and 100000
// whose day-count date lands strictly inside (1900, 2100) become dates.
// The heuristic is lossy by design; integers in that band cannot be told
// apart from genuine date serials.
func normalizeNumber(n float64) Value {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Value{}
	}
	if n > 1 && n < 100000 && n == math.Trunc(n) {
		t := serialToTime(n)
		if y := t.Year(); y > 1900 && y < 2100 {
			return TimeValue(t)
		}
	}
	return NumberValue(n)
}

func serialToTime(serial float64) time.Time {
	ms := int64((serial - excelEpochOffsetDays) * 86400 * 1000)
	return time.UnixMilli(ms).UTC()
}

// normalizeString trims, collapses sentinel values to empty, and tags
// error-looking and formula-looking text instead of evaluating it.
func normalizeString(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || sentinelValues[trimmed] {
		return Value{}
	}
	if strings.HasPrefix(trimmed, "#") && strings.Contains(trimmed, "!") {
		return TextValue("Error: " + trimmed)
	}
	if strings.HasPrefix(trimmed, "=") {
		return TextValue("Formula: " + trimmed)
	}
	return TextValue(trimmed)
}
