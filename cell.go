package main

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// CellKind enumerates the canonical value kinds a cell can hold after
// normalization. Raw nil never survives normalization.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellBool
	CellTime
)

// Value is one canonical cell. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	Kind CellKind
	Text string
	Num  float64
	Bool bool
	Time time.Time
}

func TextValue(s string) Value    { return Value{Kind: CellText, Text: s} }
func NumberValue(n float64) Value { return Value{Kind: CellNumber, Num: n} }
func BoolValue(b bool) Value      { return Value{Kind: CellBool, Bool: b} }
func TimeValue(t time.Time) Value { return Value{Kind: CellTime, Time: t} }

// sentinelValues are string cells that count as empty for filtering,
// trimming and aggregation purposes.
var sentinelValues = map[string]bool{
	"null":      true,
	"undefined": true,
	"N/A":       true,
	"n/a":       true,
	"#N/A":      true,
	"#VALUE!":   true,
	"#REF!":     true,
}

// String renders the cell for search, filtering, aggregation keys and CSV
// export. Dates render as yyyy-mm-dd so the same cell always produces the
// same filter key.
func (v Value) String() string {
	switch v.Kind {
	case CellText:
		return v.Text
	case CellNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case CellBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case CellTime:
		return v.Time.Format("2006-01-02")
	}
	return ""
}

// IsEmpty reports whether the cell counts as empty: nil-equivalent, blank
// or sentinel text, or a non-finite number. Dates, booleans and finite
// numbers are never empty.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case CellEmpty:
		return true
	case CellText:
		trimmed := strings.TrimSpace(v.Text)
		return trimmed == "" || sentinelValues[trimmed]
	case CellNumber:
		return math.IsNaN(v.Num) || math.IsInf(v.Num, 0)
	}
	return false
}

// MarshalJSON encodes the cell as a plain JSON scalar. Dates become
// RFC 3339 strings; UnmarshalJSON reconstructs them on read, which is the
// reversible encoding used by the durable store and broadcast payloads.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case CellText:
		return json.Marshal(v.Text)
	case CellNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return json.Marshal("")
		}
		return json.Marshal(v.Num)
	case CellBool:
		return json.Marshal(v.Bool)
	case CellTime:
		return json.Marshal(v.Time.Format(time.RFC3339))
	}
	return json.Marshal("")
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch c := raw.(type) {
	case nil:
		*v = Value{}
	case bool:
		*v = BoolValue(c)
	case float64:
		*v = NumberValue(c)
	case string:
		if c == "" {
			*v = Value{}
			return nil
		}
		if t, err := time.Parse(time.RFC3339, c); err == nil {
			*v = TimeValue(t)
			return nil
		}
		*v = TextValue(c)
	default:
		*v = TextValue(strings.TrimSpace(string(data)))
	}
	return nil
}

// Grid is the canonical in-memory table: row 0 is the header row, rows
// 1..N are data rows. Short rows are treated as having empty trailing
// cells; use CellAt for bounds-safe access.
type Grid [][]Value

// Clone returns a deep copy; used for edit-mode snapshots and rollback.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]Value(nil), row...)
	}
	return out
}

// Headers returns the stringified header row, or an empty slice when the
// grid has no rows.
func (g Grid) Headers() []string {
	if len(g) == 0 {
		return []string{}
	}
	out := make([]string, len(g[0]))
	for i, v := range g[0] {
		out[i] = v.String()
	}
	return out
}

// DataRows returns rows 1..N (may be empty, never nil).
func (g Grid) DataRows() Grid {
	if len(g) <= 1 {
		return Grid{}
	}
	return g[1:]
}

// CellAt returns the cell at (row, col), or an empty Value when the row is
// shorter than col or out of range.
func (g Grid) CellAt(row, col int) Value {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return Value{}
	}
	return g[row][col]
}
