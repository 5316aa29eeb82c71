package main

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// AggregationMode selects how category buckets accumulate.
type AggregationMode string

const (
	AggCount AggregationMode = "count"
	AggSum   AggregationMode = "sum"
)

// CategoryBucket is one entry of a chart-ready series. Display carries
// the shortened axis/legend label; Full keeps the untruncated key for
// tooltips.
type CategoryBucket struct {
	Key     string  `json:"key"`
	Display string  `json:"displayLabel"`
	Full    string  `json:"fullLabel"`
	Value   float64 `json:"value"`
}

// Keep the top 8 categories; the remainder collapses into "Others" only
// while it stays under half of the grand total, otherwise the long tail
// is dropped from the output entirely.
const topCategories = 8

// Aggregate buckets the given data rows by the stringified category
// column. Count mode adds 1 per qualifying row; sum mode adds the parsed
// numeric value of numericCol, excluding zero and non-finite
// contributions; a genuine zero reading is indistinguishable from
// non-numeric text and is dropped. Output is a fresh series per call.
func Aggregate(dataRows Grid, categoryCol, numericCol int, mode AggregationMode) []CategoryBucket {
	totals := make(map[string]float64)
	for _, row := range dataRows {
		cell := cellIn(row, categoryCol)
		if cell.IsEmpty() {
			continue
		}
		key := cell.String()
		if key == "" {
			continue
		}
		if mode == AggSum {
			num := NumericValue(cellIn(row, numericCol))
			if math.IsNaN(num) || math.IsInf(num, 0) || num == 0 {
				continue
			}
			totals[key] += num
		} else {
			totals[key]++
		}
	}
	if len(totals) == 0 {
		return []CategoryBucket{}
	}

	sorted := make([]CategoryBucket, 0, len(totals))
	grandTotal := 0.0
	for key, value := range totals {
		sorted = append(sorted, CategoryBucket{Key: key, Value: value})
		grandTotal += value
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		return sorted[i].Key < sorted[j].Key
	})

	if len(sorted) > topCategories {
		top := sorted[:topCategories]
		othersValue := 0.0
		for _, b := range sorted[topCategories:] {
			othersValue += b.Value
		}
		if othersValue > 0 && othersValue/grandTotal < 0.5 {
			sorted = append(top, CategoryBucket{Key: "Others", Value: othersValue})
		} else {
			sorted = top
		}
	}

	for i := range sorted {
		sorted[i].Full = sorted[i].Key
		sorted[i].Display = DisplayLabel(sorted[i].Key)
	}
	return sorted
}

func cellIn(row []Value, col int) Value {
	if col < 0 || col >= len(row) {
		return Value{}
	}
	return row[col]
}

// NumericValue extracts the numeric reading of a cell for sum
// aggregation: numbers pass through, booleans map to 1/0, dates to epoch
// milliseconds, and text goes through the locale-ambiguous parser.
func NumericValue(v Value) float64 {
	switch v.Kind {
	case CellNumber:
		return v.Num
	case CellBool:
		if v.Bool {
			return 1
		}
		return 0
	case CellTime:
		return float64(v.Time.UnixMilli())
	case CellText:
		return ParseNumeric(v.Text)
	}
	return 0
}

// ParseNumeric turns arbitrary text into a number, handling mixed
// thousands/decimal separators:
//   - both comma and dot: the rightmost is the decimal separator, the
//     other is stripped as thousands;
//   - comma only: decimal iff exactly one comma within 3 characters of
//     the end, otherwise all commas are thousands separators;
//   - dot only: 2+ dots are all thousands separators.
//
// Currency symbols and letters are stripped; non-leading minus signs are
// collapsed. Unparseable input yields 0. These rules are lossy for
// locale-ambiguous input by design.
func ParseNumeric(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	s = b.String()

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if strings.Count(s, ",") == 1 && len(s)-strings.LastIndex(s, ",") <= 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasDot:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	var cleaned strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '-' && i > 0 {
			continue
		}
		cleaned.WriteByte(s[i])
	}
	s = cleaned.String()

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

var longNumericID = regexp.MustCompile(`^[0-9]{10,}$`)

// DisplayLabel shortens a category key for axis/legend display: a run of
// 10+ digits keeps only its last 5 behind an ellipsis, and any other
// string longer than 20 runes is cut to 17 runes plus an ellipsis.
func DisplayLabel(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	if longNumericID.MatchString(trimmed) {
		return "…" + trimmed[len(trimmed)-5:]
	}
	runes := []rune(trimmed)
	if len(runes) > 20 {
		return string(runes[:17]) + "…"
	}
	return trimmed
}
