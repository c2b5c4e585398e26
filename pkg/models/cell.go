package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CellKind identifies which variant a Cell holds.
type CellKind int

const (
	CellNull CellKind = iota
	CellText
	CellNumber
	CellBool
)

// String returns the lowercase name of the kind.
func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellBool:
		return "bool"
	default:
		return "null"
	}
}

// Cell is a single table value. It is a closed sum type: exactly one of
// null, text, number or bool. Format detectors operate on Text(), so a cell
// parsed from CSV ("3") and one parsed from a spreadsheet (3) behave the same.
type Cell struct {
	kind CellKind
	text string
	num  float64
	b    bool
}

// NullCell returns an empty cell.
func NullCell() Cell { return Cell{kind: CellNull} }

// TextCell returns a text cell.
func TextCell(s string) Cell { return Cell{kind: CellText, text: s} }

// NumberCell returns a numeric cell.
func NumberCell(f float64) Cell { return Cell{kind: CellNumber, num: f} }

// BoolCell returns a boolean cell.
func BoolCell(b bool) Cell { return Cell{kind: CellBool, b: b} }

// Kind returns the variant held by the cell.
func (c Cell) Kind() CellKind { return c.kind }

// Text renders the cell as the string every format detector parses.
// Numbers use the shortest decimal representation ("3", "1.5"), bools
// render as "true"/"false" and null renders as "".
func (c Cell) Text() string {
	switch c.kind {
	case CellText:
		return c.text
	case CellNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case CellBool:
		return strconv.FormatBool(c.b)
	default:
		return ""
	}
}

// IsEmpty reports whether the cell is null or whitespace-only text.
func (c Cell) IsEmpty() bool {
	switch c.kind {
	case CellNull:
		return true
	case CellText:
		return strings.TrimSpace(c.text) == ""
	default:
		return false
	}
}

// Number coerces the cell to a float. Text is trimmed and parsed as a
// decimal number; empty text, NaN and infinities are not numeric. Bools
// coerce to 1 and 0.
func (c Cell) Number() (float64, bool) {
	switch c.kind {
	case CellNumber:
		return c.num, true
	case CellBool:
		if c.b {
			return 1, true
		}
		return 0, true
	case CellText:
		return ParseNumber(c.text)
	default:
		return 0, false
	}
}

// ParseNumber parses s the way spreadsheet users expect a number to look:
// optional surrounding whitespace, optional sign, decimal or exponent form.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// Hex floats and digit separators parse but are not data.
	lower := strings.ToLower(s)
	if strings.Contains(lower, "x") || strings.Contains(lower, "_") {
		return 0, false
	}
	return f, true
}

// Equal reports whether two cells hold the same variant and value.
func (c Cell) Equal(other Cell) bool {
	return c == other
}

// MarshalJSON encodes the cell as its natural JSON value.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case CellText:
		return json.Marshal(c.text)
	case CellNumber:
		return json.Marshal(c.num)
	case CellBool:
		return json.Marshal(c.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a scalar JSON value into a cell. Arrays and objects
// are kept as their raw JSON text, since tables carry no nested structure.
func (c *Cell) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null" || trimmed == "":
		*c = NullCell()
	case trimmed == "true" || trimmed == "false":
		*c = BoolCell(trimmed == "true")
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextCell(s)
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		*c = TextCell(trimmed)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*c = NumberCell(f)
	}
	return nil
}

// CellFromAny converts a decoded Go value into a cell. Unsupported types are
// rendered as text with fmt-free conversions where possible.
func CellFromAny(v any) Cell {
	switch val := v.(type) {
	case nil:
		return NullCell()
	case Cell:
		return val
	case string:
		return TextCell(val)
	case bool:
		return BoolCell(val)
	case float64:
		return NumberCell(val)
	case float32:
		return NumberCell(float64(val))
	case int:
		return NumberCell(float64(val))
	case int64:
		return NumberCell(float64(val))
	case int32:
		return NumberCell(float64(val))
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return NumberCell(f)
		}
		return TextCell(val.String())
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return NullCell()
		}
		return TextCell(string(raw))
	}
}
